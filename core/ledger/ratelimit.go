package ledger

import (
	"sync"

	"golang.org/x/time/rate"
)

// Limiter throttles command submissions per actor. A denied submission is
// rejected before any aggregate is touched.
type Limiter interface {
	Allow(actorID, commandKind string) bool
}

// NopLimiter admits everything.
type NopLimiter struct{}

func (NopLimiter) Allow(string, string) bool { return true }

// ActorLimiter keeps a token bucket per (actor, command kind) pair. Buckets
// are created lazily and never evicted; actor populations in a game session
// are small enough that this stays bounded.
type ActorLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	buckets map[string]*rate.Limiter
}

func NewActorLimiter(limit rate.Limit, burst int) *ActorLimiter {
	return &ActorLimiter{
		limit:   limit,
		burst:   burst,
		buckets: map[string]*rate.Limiter{},
	}
}

func (l *ActorLimiter) Allow(actorID, commandKind string) bool {
	key := actorID + "|" + commandKind

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.buckets[key] = b
	}
	l.mu.Unlock()

	return b.Allow()
}

var (
	_ Limiter = NopLimiter{}
	_ Limiter = (*ActorLimiter)(nil)
)
