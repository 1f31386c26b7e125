package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/port-labs/incremental-sync/pkg/telemetry"
)

// fakeSender records every Send call and fails a task the configured
// number of times before succeeding.
type fakeSender struct {
	mu       sync.Mutex
	calls    map[string]int
	failures map[string]int
	err      error

	inFlight    atomic.Int64
	maxInFlight atomic.Int64
}

func newFakeSender() *fakeSender {
	return &fakeSender{
		calls:    make(map[string]int),
		failures: make(map[string]int),
		err:      NewTransientError("send failed", nil),
	}
}

func (s *fakeSender) Send(_ context.Context, task DeliveryTask) error {
	cur := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		max := s.maxInFlight.Load()
		if cur <= max || s.maxInFlight.CompareAndSwap(max, cur) {
			break
		}
	}
	// Hold the slot briefly so concurrent waves actually overlap.
	time.Sleep(time.Millisecond)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[task.ID]++
	if s.failures[task.ID] > 0 {
		s.failures[task.ID]--
		return s.err
	}
	return nil
}

func (s *fakeSender) callCount(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[id]
}

func newTestDispatcher(sender Sender, concurrency int) *Dispatcher {
	d := NewDispatcher(sender, concurrency, telemetry.NopLogger(), nil)
	d.retryDelay = time.Millisecond
	return d
}

func tasks(n int) []DeliveryTask {
	out := make([]DeliveryTask, n)
	for i := range out {
		out[i] = DeliveryTask{
			ID:         fmt.Sprintf("/res/%d", i),
			Operation:  OperationUpsert,
			EntityType: EntityTypeResource,
		}
	}
	return out
}

func TestDispatchDeliversAllTasks(t *testing.T) {
	sender := newFakeSender()
	d := newTestDispatcher(sender, 10)

	d.Dispatch(context.Background(), tasks(150))

	if d.Delivered() != 150 {
		t.Errorf("expected 150 delivered, got %d", d.Delivered())
	}
	if d.Dropped() != 0 {
		t.Errorf("expected 0 dropped, got %d", d.Dropped())
	}
}

func TestDispatchRetriesTransientFailures(t *testing.T) {
	sender := newFakeSender()
	sender.failures["/res/0"] = 2
	d := newTestDispatcher(sender, 5)

	d.Dispatch(context.Background(), tasks(1))

	// First attempt plus two retries, then success.
	if got := sender.callCount("/res/0"); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
	if d.Delivered() != 1 {
		t.Errorf("expected task delivered after retries, got delivered=%d", d.Delivered())
	}
}

func TestDispatchDropsAfterExhaustedRetries(t *testing.T) {
	sender := newFakeSender()
	sender.failures["/res/0"] = 10
	d := newTestDispatcher(sender, 5)

	d.Dispatch(context.Background(), tasks(2))

	if got := sender.callCount("/res/0"); got != 3 {
		t.Errorf("expected 3 attempts before dropping, got %d", got)
	}
	if d.Dropped() != 1 {
		t.Errorf("expected 1 dropped, got %d", d.Dropped())
	}
	// The neighbor task must still go through.
	if d.Delivered() != 1 {
		t.Errorf("expected 1 delivered, got %d", d.Delivered())
	}
}

func TestDispatchDropsClientErrorsWithoutRetry(t *testing.T) {
	sender := newFakeSender()
	sender.err = NewClientError("rejected", nil).WithStatus(422)
	sender.failures["/res/0"] = 10
	d := newTestDispatcher(sender, 5)

	d.Dispatch(context.Background(), tasks(1))

	if got := sender.callCount("/res/0"); got != 1 {
		t.Errorf("client errors must not be retried, got %d attempts", got)
	}
	if d.Dropped() != 1 {
		t.Errorf("expected 1 dropped, got %d", d.Dropped())
	}
}

func TestDispatchRespectsConcurrencyBound(t *testing.T) {
	sender := newFakeSender()
	d := newTestDispatcher(sender, 4)

	d.Dispatch(context.Background(), tasks(60))

	if max := sender.maxInFlight.Load(); max > 4 {
		t.Errorf("concurrency bound exceeded: observed %d in flight", max)
	}
	if d.Delivered() != 60 {
		t.Errorf("expected 60 delivered, got %d", d.Delivered())
	}
}

func TestDispatchEmptyTaskList(t *testing.T) {
	d := newTestDispatcher(newFakeSender(), 5)

	d.Dispatch(context.Background(), nil)

	if d.Delivered() != 0 || d.Dropped() != 0 {
		t.Errorf("expected no activity, got delivered=%d dropped=%d", d.Delivered(), d.Dropped())
	}
}
