// Package memstore provides in-memory ledger, audit log and channel binding
// stores. Suitable for dev/testing.
package memstore

import (
	"context"
	"sync"
	"time"

	"escalator/internal/domain"
)

type ledgerKey struct {
	caseID string
	tier   domain.Tier
}

type bindingKey struct {
	email   string
	channel domain.Channel
}

// Store holds ledger, audit and binding records in memory.
type Store struct {
	mu       sync.RWMutex
	ledger   map[ledgerKey]time.Time
	log      []domain.EscalationLogEntry
	bindings map[bindingKey]domain.ChannelBinding
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		ledger:   make(map[ledgerKey]time.Time),
		bindings: make(map[bindingKey]domain.ChannelBinding),
	}
}

func (s *Store) TryRecord(_ context.Context, caseID string, tier domain.Tier) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := ledgerKey{caseID, tier}
	if _, ok := s.ledger[k]; ok {
		return false, nil
	}
	s.ledger[k] = time.Now()
	return true, nil
}

func (s *Store) HasSent(_ context.Context, caseID string, tier domain.Tier) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ledger[ledgerKey{caseID, tier}]
	return ok, nil
}

// LedgerLen returns the total number of ledger entries across all cases.
func (s *Store) LedgerLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ledger)
}

func (s *Store) Append(_ context.Context, e domain.EscalationLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = append(s.log, e)
	return nil
}

// Log returns a copy of every appended audit entry in append order.
func (s *Store) Log() []domain.EscalationLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.EscalationLogEntry, len(s.log))
	copy(out, s.log)
	return out
}

func (s *Store) GetBinding(_ context.Context, email string, channel domain.Channel) (domain.ChannelBinding, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bindings[bindingKey{email, channel}]
	return b, ok, nil
}

func (s *Store) PutBinding(_ context.Context, b domain.ChannelBinding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bindings[bindingKey{b.Email, b.Channel}] = b
	return nil
}

func (s *Store) DeleteBinding(_ context.Context, email string, channel domain.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bindings, bindingKey{email, channel})
	return nil
}
