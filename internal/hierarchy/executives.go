// Package hierarchy resolves who should hear about a case: the executives
// scoped to its market/store, and the reports-to chain above a user.
package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"escalator/internal/domain"
)

// ErrRecipientResolution wraps any failure of the directory collaborator.
// The sweep treats it as "retry next pass", never as fatal.
var ErrRecipientResolution = errors.New("recipient resolution failed")

type ExecutiveDirectory interface {
	ResolveExecutives(ctx context.Context, market, storeNumber string) ([]domain.Recipient, error)
}

type ScopedExecutiveResolver struct {
	dir     ExecutiveDirectory
	timeout time.Duration
}

func NewScopedExecutiveResolver(dir ExecutiveDirectory, timeout time.Duration) *ScopedExecutiveResolver {
	return &ScopedExecutiveResolver{dir: dir, timeout: timeout}
}

// Resolve returns the notification-eligible leadership for a market/store.
// An empty slice is a valid answer. Recipients without an email are dropped
// and duplicates (same user ID) keep their first position.
func (r *ScopedExecutiveResolver) Resolve(ctx context.Context, market, storeNumber string) ([]domain.Recipient, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	found, err := r.dir.ResolveExecutives(ctx, market, storeNumber)
	if err != nil {
		return nil, fmt.Errorf("%w: market=%s store=%s: %v", ErrRecipientResolution, market, storeNumber, err)
	}

	seen := make(map[string]bool, len(found))
	out := make([]domain.Recipient, 0, len(found))
	for _, rcpt := range found {
		if strings.TrimSpace(rcpt.Email) == "" {
			continue
		}
		key := rcpt.UserID
		if key == "" {
			key = strings.ToLower(rcpt.Email)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, rcpt)
	}
	return out, nil
}
