package channel

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"escalator/internal/domain"
	"escalator/internal/metrics"
)

// ErrHandleNotFound means the recipient cannot be reached on the channel.
// Callers skip that channel for that recipient.
var ErrHandleNotFound = errors.New("channel handle not found")

// ErrStaleHandle is returned by senders when a cached handle no longer
// addresses anyone; the binding should be invalidated.
var ErrStaleHandle = errors.New("channel handle is stale")

type BindingCache interface {
	GetBinding(ctx context.Context, email string, channel domain.Channel) (domain.ChannelBinding, bool, error)
	PutBinding(ctx context.Context, b domain.ChannelBinding) error
	DeleteBinding(ctx context.Context, email string, channel domain.Channel) error
}

// HandleLookup is the authoritative identity directory for one channel.
type HandleLookup interface {
	LookupHandle(ctx context.Context, email string) (string, error)
}

// Binder resolves an email to a channel handle, cache first.
type Binder struct {
	cache   BindingCache
	lookups map[domain.Channel]HandleLookup
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time
}

// NewBinder builds a Binder. ttl <= 0 keeps bindings until invalidated.
func NewBinder(cache BindingCache, ttl, timeout time.Duration) *Binder {
	return &Binder{
		cache:   cache,
		lookups: make(map[domain.Channel]HandleLookup),
		ttl:     ttl,
		timeout: timeout,
		now:     time.Now,
	}
}

func (b *Binder) Register(ch domain.Channel, lookup HandleLookup) {
	b.lookups[ch] = lookup
}

func (b *Binder) Resolve(ctx context.Context, email string, ch domain.Channel) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrHandleNotFound
	}

	cached, ok, err := b.cache.GetBinding(ctx, email, ch)
	if err != nil {
		log.Printf("binder: cache read email=%s channel=%s: %v", email, ch, err)
	} else if ok && cached.Handle != "" && b.fresh(cached) {
		metrics.BindingLookups.WithLabelValues("cache").Inc()
		return cached.Handle, nil
	}

	lookup, ok := b.lookups[ch]
	if !ok {
		metrics.BindingLookups.WithLabelValues("not_found").Inc()
		return "", ErrHandleNotFound
	}

	lookupCtx := ctx
	if b.timeout > 0 {
		var cancel context.CancelFunc
		lookupCtx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	handle, err := lookup.LookupHandle(lookupCtx, email)
	if err != nil || handle == "" {
		log.Printf("binder: lookup email=%s channel=%s failed: %v", email, ch, err)
		metrics.BindingLookups.WithLabelValues("not_found").Inc()
		return "", ErrHandleNotFound
	}

	metrics.BindingLookups.WithLabelValues("directory").Inc()
	binding := domain.ChannelBinding{Email: email, Channel: ch, Handle: handle, CachedAt: b.now().UTC()}
	if err := b.cache.PutBinding(ctx, binding); err != nil {
		log.Printf("binder: cache write email=%s channel=%s: %v", email, ch, err)
	}
	return handle, nil
}

// Invalidate drops a cached binding so the next Resolve asks the directory.
func (b *Binder) Invalidate(ctx context.Context, email string, ch domain.Channel) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := b.cache.DeleteBinding(ctx, email, ch); err != nil {
		log.Printf("binder: invalidate email=%s channel=%s: %v", email, ch, err)
	}
}

func (b *Binder) fresh(binding domain.ChannelBinding) bool {
	if b.ttl <= 0 {
		return true
	}
	return b.now().Sub(binding.CachedAt) < b.ttl
}
