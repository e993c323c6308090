package memory

import (
	"context"
	"sync"
	"time"

	"github.com/YinYang-Interactive-LLC/roguelike-analytics-api/internal/ratelimit"
)

// store maps client keys to bucket state. It does no locking of its own;
// every method must be called with Limiter.mu held.
type store struct {
	buckets map[string]*ratelimit.Bucket
}

func newStore() *store {
	return &store{buckets: make(map[string]*ratelimit.Bucket)}
}

func (s *store) getOrCreate(key string, maxTokens uint64, now time.Time) *ratelimit.Bucket {
	b, ok := s.buckets[key]
	if !ok {
		b = ratelimit.NewBucket(maxTokens, now)
		s.buckets[key] = b
	}
	return b
}

func (s *store) remove(key string) {
	delete(s.buckets, key)
}

type entry struct {
	key        string
	lastAccess time.Time
}

func (s *store) snapshot() []entry {
	out := make([]entry, 0, len(s.buckets))
	for k, b := range s.buckets {
		out = append(out, entry{key: k, lastAccess: b.LastAccess})
	}
	return out
}

func (s *store) len() int { return len(s.buckets) }

// Limiter is the in-process token-bucket limiter. A single mutex serializes
// admission checks and sweeps over the whole map.
type Limiter struct {
	mu        sync.Mutex
	cfg       ratelimit.Config
	maxTokens uint64
	store     *store
	now       func() time.Time
}

type Option func(*Limiter)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New validates cfg and returns an empty limiter.
func New(cfg ratelimit.Config, opts ...Option) (*Limiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l := &Limiter{
		cfg:       cfg,
		maxTokens: cfg.MaxTokens(),
		store:     newStore(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	return l, nil
}

func (l *Limiter) Close() error { return nil }

func (l *Limiter) Config() ratelimit.Config { return l.cfg }

// Allow refills the key's bucket, records the access and tries to spend cost
// tokens, all under one lock acquisition.
func (l *Limiter) Allow(_ context.Context, key string, cost uint64) ratelimit.Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b := l.store.getOrCreate(key, l.maxTokens, now)
	b.Refill(now, l.cfg.RatePerSecond, l.maxTokens)
	b.LastAccess = now

	allowed := b.TryConsume(cost)

	return ratelimit.Decision{
		Allowed:      allowed,
		Limit:        l.maxTokens,
		Remaining:    b.Tokens,
		ResetUnixSec: b.FullAt(l.cfg.RatePerSecond, l.maxTokens).Unix(),
	}
}

// CheckAndConsume is Allow reduced to its verdict.
func (l *Limiter) CheckAndConsume(key string, cost uint64) bool {
	return l.Allow(context.Background(), key, cost).Allowed
}

// Len returns the number of tracked clients.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.len()
}

// Tokens returns the key's current token count without refilling or touching
// its access time. ok is false for untracked keys.
func (l *Limiter) Tokens(key string) (tokens uint64, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.store.buckets[key]
	if !ok {
		return 0, false
	}
	return b.Tokens, true
}

var _ ratelimit.Limiter = (*Limiter)(nil)
