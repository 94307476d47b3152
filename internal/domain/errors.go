package domain

import "errors"

var (
	ErrCaseNotFound = errors.New("case not found")
	ErrUserNotFound = errors.New("user not found")
)
