package ratelimit

import (
	"testing"
	"time"
)

// fakeClock lets tests advance time explicitly.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func newTestBucket(capacity int, refillRate float64) (*TokenBucket, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	b := NewTokenBucket(capacity, refillRate)
	b.now = clock.now
	b.lastRefill = clock.t
	b.tokens = float64(capacity)
	return b, clock
}

func TestConsumeFromFullBucket(t *testing.T) {
	b, _ := newTestBucket(10, 5)

	if !b.Consume(5) {
		t.Fatal("expected consume of 5 from full bucket to succeed")
	}
	if got := b.Tokens(); got != 5 {
		t.Errorf("expected 5 tokens remaining, got %v", got)
	}
}

func TestConsumeExactCapacity(t *testing.T) {
	b, _ := newTestBucket(10, 5)

	if !b.Consume(10) {
		t.Fatal("expected consume of full capacity to succeed")
	}
	if got := b.Tokens(); got != 0 {
		t.Errorf("expected 0 tokens remaining, got %v", got)
	}
}

func TestConsumeMoreThanCapacity(t *testing.T) {
	b, _ := newTestBucket(10, 5)

	if b.Consume(15) {
		t.Fatal("expected consume beyond capacity to be rejected")
	}
	if got := b.Tokens(); got != 10 {
		t.Errorf("rejection must leave tokens unchanged, got %v", got)
	}
}

func TestConsumeZero(t *testing.T) {
	b, _ := newTestBucket(10, 5)

	if !b.Consume(0) {
		t.Fatal("consume(0) must always be admitted")
	}
	if got := b.Tokens(); got != 10 {
		t.Errorf("consume(0) must not change the balance, got %v", got)
	}
}

func TestConsumeNegativeAddsTokens(t *testing.T) {
	b, _ := newTestBucket(10, 5)

	if !b.Consume(-5) {
		t.Fatal("negative consume must be admitted")
	}
	if got := b.Tokens(); got != 15 {
		t.Errorf("expected compensation to raise balance to 15, got %v", got)
	}
}

func TestRefillOverTime(t *testing.T) {
	b, clock := newTestBucket(10, 5)

	if !b.Consume(10) {
		t.Fatal("expected initial consume to succeed")
	}

	clock.advance(1 * time.Second)

	// 1s at 5 tokens/s refills 5 tokens.
	if !b.Consume(3) {
		t.Fatal("expected consume after refill to succeed")
	}
	if got := b.Tokens(); got != 2 {
		t.Errorf("expected 2 tokens after refill and consume, got %v", got)
	}
}

func TestRefillClampsAtCapacity(t *testing.T) {
	b, clock := newTestBucket(10, 5)

	b.Consume(2)
	clock.advance(time.Hour)

	if got := b.Tokens(); got != 10 {
		t.Errorf("expected refill to clamp at capacity 10, got %v", got)
	}
}

func TestZeroRefillRate(t *testing.T) {
	b, clock := newTestBucket(10, 0)

	b.Consume(5)
	clock.advance(time.Hour)

	if !b.Consume(3) {
		t.Fatal("expected consume within balance to succeed")
	}
	if got := b.Tokens(); got != 2 {
		t.Errorf("expected no refill with zero rate, got %v", got)
	}
}

func TestSequentialConsumption(t *testing.T) {
	b, _ := newTestBucket(10, 5)

	if !b.Consume(3) || !b.Consume(4) || !b.Consume(2) {
		t.Fatal("expected consumptions within capacity to succeed")
	}
	if b.Consume(2) {
		t.Fatal("expected consume beyond remaining balance to be rejected")
	}
	if got := b.Tokens(); got != 1 {
		t.Errorf("expected 1 token remaining, got %v", got)
	}
}

func TestPartialRefill(t *testing.T) {
	b, clock := newTestBucket(10, 4)

	b.Consume(10)
	clock.advance(500 * time.Millisecond)

	// 0.5s at 4 tokens/s refills 2 tokens.
	if !b.Consume(2) {
		t.Fatal("expected consume of partially refilled tokens to succeed")
	}
	if b.Consume(1) {
		t.Fatal("expected bucket to be empty again")
	}
}
