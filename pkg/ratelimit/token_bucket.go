// Package ratelimit provides local admission control for outbound API calls.
package ratelimit

import (
	"sync"
	"time"
)

// TokenBucket is a token-bucket rate limiter. Tokens refill continuously at
// a fixed rate up to a fixed capacity; each admitted call consumes tokens.
// A single bucket instance is shared by all query calls of one engine run,
// so its state is guarded by a mutex.
type TokenBucket struct {
	mu         sync.Mutex
	capacity   float64
	refillRate float64
	tokens     float64
	lastRefill time.Time

	// now is the clock source, replaceable in tests.
	now func() time.Time
}

// NewTokenBucket creates a full bucket with the given capacity and refill
// rate (tokens per second). Both are fixed for the lifetime of the bucket.
func NewTokenBucket(capacity int, refillRate float64) *TokenBucket {
	b := &TokenBucket{
		capacity:   float64(capacity),
		refillRate: refillRate,
		tokens:     float64(capacity),
		now:        time.Now,
	}
	b.lastRefill = b.now()
	return b
}

// Consume attempts to take n tokens from the bucket. It refills the bucket
// based on elapsed time first, then admits the call iff enough tokens are
// available. On rejection the token count is left unchanged and the caller
// is expected to back off and re-attempt rather than drop the work.
//
// n == 0 is always admitted (the refill still happens). A negative n adds
// tokens back, compensating for an earlier over-consumption; the balance
// may temporarily exceed capacity until the next refill clamps it.
func (b *TokenBucket) Consume(n int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()

	if float64(n) > b.tokens {
		return false
	}
	b.tokens -= float64(n)
	return true
}

// Tokens returns the current token balance after a refill. Primarily for
// tests and metrics.
func (b *TokenBucket) Tokens() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	return b.tokens
}

// refill credits tokens for the time elapsed since the last refill,
// clamping at capacity. Callers must hold b.mu.
func (b *TokenBucket) refill() {
	now := b.now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * b.refillRate
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
	}
	b.lastRefill = now
}
