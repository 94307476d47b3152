package hierarchy

import (
	"context"
	"log"
	"strings"
	"time"

	"escalator/internal/domain"
)

const DefaultMaxDepth = 50

type Store interface {
	// GetManager returns "" when userID has no manager.
	GetManager(ctx context.Context, userID string) (string, error)
	GetProfile(ctx context.Context, userID string) (domain.Profile, error)
}

// ManagerChainWalker follows single-parent reports-to pointers upward.
type ManagerChainWalker struct {
	store    Store
	maxDepth int
	timeout  time.Duration
}

func NewManagerChainWalker(store Store, maxDepth int, timeout time.Duration) *ManagerChainWalker {
	if maxDepth < 1 {
		maxDepth = DefaultMaxDepth
	}
	return &ManagerChainWalker{store: store, maxDepth: maxDepth, timeout: timeout}
}

// Walk returns start followed by its managers, nearest first, each id once.
// It stops at a root, at the first id already visited (a cycle), or once the
// chain holds maxDepth ids. None of these is an error. A failed manager
// lookup ends the walk and returns the chain gathered so far with the error.
func (w *ManagerChainWalker) Walk(ctx context.Context, start string) ([]string, error) {
	visited := map[string]bool{start: true}
	chain := []string{start}

	current, err := w.managerOf(ctx, start)
	if err != nil {
		return chain, err
	}
	for current != "" && !visited[current] && len(chain) < w.maxDepth {
		chain = append(chain, current)
		visited[current] = true
		if current, err = w.managerOf(ctx, current); err != nil {
			return chain, err
		}
	}

	switch {
	case current == "":
	case visited[current]:
		log.Printf("hierarchy: cycle detected start=%s revisit=%s depth=%d", start, current, len(chain))
	default:
		log.Printf("hierarchy: max depth %d reached start=%s", w.maxDepth, start)
	}
	return chain, nil
}

func (w *ManagerChainWalker) managerOf(ctx context.Context, userID string) (string, error) {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	manager, err := w.store.GetManager(ctx, userID)
	return strings.TrimSpace(manager), err
}

// ResolveRecipients maps user ids to recipients in order. Ids whose profile
// cannot be loaded or has no email are dropped.
func (w *ManagerChainWalker) ResolveRecipients(ctx context.Context, ids []string) []domain.Recipient {
	out := make([]domain.Recipient, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		p, err := w.profile(ctx, id)
		if err != nil {
			log.Printf("hierarchy: profile lookup user=%s: %v", id, err)
			continue
		}
		if strings.TrimSpace(p.Email) == "" {
			log.Printf("hierarchy: user=%s has no email, dropped", id)
			continue
		}
		out = append(out, p.Recipient())
	}
	return out
}

func (w *ManagerChainWalker) profile(ctx context.Context, userID string) (domain.Profile, error) {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	return w.store.GetProfile(ctx, userID)
}
