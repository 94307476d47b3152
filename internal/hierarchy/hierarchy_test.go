package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"escalator/internal/domain"
)

type fakeStore struct {
	managers map[string]string
	profiles map[string]domain.Profile
	failOn   string
	calls    int
}

func (f *fakeStore) GetManager(_ context.Context, userID string) (string, error) {
	f.calls++
	if userID == f.failOn {
		return "", errors.New("directory unavailable")
	}
	return f.managers[userID], nil
}

func (f *fakeStore) GetProfile(_ context.Context, userID string) (domain.Profile, error) {
	p, ok := f.profiles[userID]
	if !ok {
		return p, fmt.Errorf("no profile for %s", userID)
	}
	return p, nil
}

func TestWalkLinearChain(t *testing.T) {
	store := &fakeStore{managers: map[string]string{"A": "B", "B": "C"}}
	w := NewManagerChainWalker(store, 0, 0)

	chain, err := w.Walk(context.Background(), "A")
	if err != nil {
		t.Fatalf("Walk returned error: %v", err)
	}
	if want := []string{"A", "B", "C"}; !reflect.DeepEqual(chain, want) {
		t.Fatalf("Walk(A) = %v, want %v", chain, want)
	}
}

func TestWalkStopsOnCycle(t *testing.T) {
	tests := []struct {
		name     string
		managers map[string]string
		start    string
		want     []string
	}{
		{name: "two node cycle", managers: map[string]string{"A": "B", "B": "A"}, start: "A", want: []string{"A", "B"}},
		{name: "self loop", managers: map[string]string{"A": "A"}, start: "A", want: []string{"A"}},
		{name: "cycle above start", managers: map[string]string{"A": "B", "B": "C", "C": "D", "D": "B"}, start: "A", want: []string{"A", "B", "C", "D"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewManagerChainWalker(&fakeStore{managers: tt.managers}, 50, 0)
			chain, err := w.Walk(context.Background(), tt.start)
			if err != nil {
				t.Fatalf("Walk returned error: %v", err)
			}
			if !reflect.DeepEqual(chain, tt.want) {
				t.Fatalf("Walk(%s) = %v, want %v", tt.start, chain, tt.want)
			}
		})
	}
}

func TestWalkRespectsMaxDepth(t *testing.T) {
	managers := make(map[string]string)
	for i := 0; i < 200; i++ {
		managers[fmt.Sprintf("u%d", i)] = fmt.Sprintf("u%d", i+1)
	}
	store := &fakeStore{managers: managers}
	w := NewManagerChainWalker(store, 5, 0)

	chain, err := w.Walk(context.Background(), "u0")
	if err != nil {
		t.Fatalf("Walk returned error: %v", err)
	}
	if want := []string{"u0", "u1", "u2", "u3", "u4"}; !reflect.DeepEqual(chain, want) {
		t.Fatalf("Walk(u0) = %v, want %v", chain, want)
	}
}

func TestWalkLookupErrorReturnsPartialChain(t *testing.T) {
	store := &fakeStore{managers: map[string]string{"A": "B", "B": "C"}, failOn: "B"}
	w := NewManagerChainWalker(store, 50, 0)

	chain, err := w.Walk(context.Background(), "A")
	if err == nil {
		t.Fatal("expected lookup error")
	}
	if want := []string{"A", "B"}; !reflect.DeepEqual(chain, want) {
		t.Fatalf("partial chain = %v, want %v", chain, want)
	}
}

func TestResolveRecipientsDropsUnresolved(t *testing.T) {
	store := &fakeStore{profiles: map[string]domain.Profile{
		"A": {UserID: "A", Email: "a@example.com", DisplayName: "Ann"},
		"C": {UserID: "C", Email: ""},
		"D": {UserID: "D", Email: "d@example.com", Role: domain.RoleDirector},
	}}
	w := NewManagerChainWalker(store, 50, 0)

	got := w.ResolveRecipients(context.Background(), []string{"A", "B", "C", "D", "A"})
	if len(got) != 2 || got[0].UserID != "A" || got[1].UserID != "D" {
		t.Fatalf("unexpected recipients: %+v", got)
	}
	if got[1].Role != domain.RoleDirector {
		t.Fatalf("expected role to carry over, got %q", got[1].Role)
	}
}

type fakeDirectory struct {
	recipients []domain.Recipient
	err        error
}

func (f fakeDirectory) ResolveExecutives(context.Context, string, string) ([]domain.Recipient, error) {
	return f.recipients, f.err
}

func TestScopedExecutiveResolver(t *testing.T) {
	dir := fakeDirectory{recipients: []domain.Recipient{
		{UserID: "ceo", Email: "ceo@example.com", Role: domain.RoleCEO},
		{UserID: "nomail", Email: " "},
		{UserID: "vp", Email: "vp@example.com", Role: domain.RoleVP},
		{UserID: "ceo", Email: "ceo@example.com", Role: domain.RoleCEO},
	}}
	r := NewScopedExecutiveResolver(dir, 0)

	got, err := r.Resolve(context.Background(), "north", "101")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if len(got) != 2 || got[0].UserID != "ceo" || got[1].UserID != "vp" {
		t.Fatalf("unexpected recipients: %+v", got)
	}
}

func TestScopedExecutiveResolverEmptyAndError(t *testing.T) {
	empty, err := NewScopedExecutiveResolver(fakeDirectory{}, 0).Resolve(context.Background(), "x", "1")
	if err != nil || len(empty) != 0 {
		t.Fatalf("empty directory = %v, %v; want no recipients and no error", empty, err)
	}

	_, err = NewScopedExecutiveResolver(fakeDirectory{err: errors.New("timeout")}, 0).Resolve(context.Background(), "x", "1")
	if !errors.Is(err, ErrRecipientResolution) {
		t.Fatalf("expected ErrRecipientResolution, got %v", err)
	}
}
