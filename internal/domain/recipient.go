package domain

import "strings"

// Role is the organisational role a recipient holds. Message phrasing is
// keyed on it.
type Role string

const (
	RoleCEO      Role = "CEO"
	RoleVP       Role = "VP"
	RoleDirector Role = "DIRECTOR"
	RoleManager  Role = "MANAGER"
	RoleStaff    Role = "STAFF"
)

func NormalizeRole(s string) Role {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CEO":
		return RoleCEO
	case "VP", "VICE PRESIDENT":
		return RoleVP
	case "DIRECTOR":
		return RoleDirector
	case "MANAGER":
		return RoleManager
	default:
		return RoleStaff
	}
}

type Recipient struct {
	UserID            string
	Email             string
	DisplayName       string
	Role              Role
	NotificationLevel string
}

// Name returns the display name, falling back to the email address.
func (r Recipient) Name() string {
	if strings.TrimSpace(r.DisplayName) != "" {
		return r.DisplayName
	}
	return r.Email
}

type Profile struct {
	UserID      string
	Email       string
	DisplayName string
	Role        Role
}

func (p Profile) Recipient() Recipient {
	return Recipient{
		UserID:      p.UserID,
		Email:       p.Email,
		DisplayName: p.DisplayName,
		Role:        p.Role,
	}
}

// HierarchyNode is one user in the reports-to forest.
type HierarchyNode struct {
	UserID     string
	ManagerID  string // empty at a root
	Role       Role
	ScopeHints []string
}
