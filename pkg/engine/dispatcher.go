package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/port-labs/incremental-sync/pkg/telemetry"
)

const (
	// dispatchBatchSize is how many tasks are submitted together before
	// the dispatcher waits for the whole wave. The barrier couples
	// producer pace to delivery capacity.
	dispatchBatchSize = 100

	// maxDeliveryRetries is the number of additional attempts after the
	// first failure of a transient delivery error.
	maxDeliveryRetries = 2

	// defaultRetryDelay is the fixed pause between delivery attempts.
	defaultRetryDelay = 1 * time.Second

	// DefaultConcurrency bounds in-flight delivery calls when no explicit
	// limit is configured.
	DefaultConcurrency = 25
)

// Dispatcher executes delivery tasks against the catalog collaborator
// under a global concurrency bound shared across the whole engine run.
// Individual task failures are retried, then dropped; they never fail the
// run.
type Dispatcher struct {
	sender     Sender
	sem        *semaphore.Weighted
	log        *telemetry.Logger
	metrics    *telemetry.Metrics
	retryDelay time.Duration

	delivered atomic.Int64
	dropped   atomic.Int64
}

// NewDispatcher creates a dispatcher bounded to the given number of
// concurrent in-flight calls. A non-positive concurrency falls back to
// DefaultConcurrency.
func NewDispatcher(sender Sender, concurrency int, log *telemetry.Logger, metrics *telemetry.Metrics) *Dispatcher {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Dispatcher{
		sender:     sender,
		sem:        semaphore.NewWeighted(int64(concurrency)),
		log:        log.NewComponentLogger("dispatcher"),
		metrics:    metrics,
		retryDelay: defaultRetryDelay,
	}
}

// Dispatch delivers the given tasks in fixed-size waves. Within a wave
// tasks run concurrently, each bounded by the shared semaphore; Dispatch
// waits for the whole wave before starting the next and returns after the
// last wave drains.
func (d *Dispatcher) Dispatch(ctx context.Context, tasks []DeliveryTask) {
	if len(tasks) == 0 {
		return
	}

	for _, batch := range chunk(tasks, dispatchBatchSize) {
		var wg sync.WaitGroup
		for _, task := range batch {
			wg.Add(1)
			go func(task DeliveryTask) {
				defer wg.Done()
				if err := d.sem.Acquire(ctx, 1); err != nil {
					d.drop(task, err)
					return
				}
				defer d.sem.Release(1)
				d.deliver(ctx, task)
			}(task)
		}
		wg.Wait()
	}
}

// Delivered returns the number of tasks delivered successfully so far.
func (d *Dispatcher) Delivered() int {
	return int(d.delivered.Load())
}

// Dropped returns the number of tasks dropped after exhausted retries or
// client rejections so far.
func (d *Dispatcher) Dropped() int {
	return int(d.dropped.Load())
}

// deliver makes the delivery attempts for one task: transient failures
// get maxDeliveryRetries extra attempts with a fixed delay, client errors
// are dropped immediately.
func (d *Dispatcher) deliver(ctx context.Context, task DeliveryTask) {
	d.metrics.InFlight(1)
	defer d.metrics.InFlight(-1)

	for attempt := 0; ; attempt++ {
		err := d.sender.Send(ctx, task)
		if err == nil {
			d.delivered.Add(1)
			d.metrics.Delivery(string(task.Operation), task.EntityType, true)
			return
		}

		if IsClient(err) {
			d.drop(task, err)
			return
		}

		if attempt >= maxDeliveryRetries {
			d.drop(task, err)
			return
		}

		d.metrics.DeliveryRetry()
		d.log.WithError(err).
			WithField("id", task.ID).
			WithField("operation", string(task.Operation)).
			Warnf("Delivery failed, retrying (attempt %d/%d)", attempt+1, maxDeliveryRetries+1)

		select {
		case <-time.After(d.retryDelay):
		case <-ctx.Done():
			d.drop(task, ctx.Err())
			return
		}
	}
}

func (d *Dispatcher) drop(task DeliveryTask, err error) {
	d.dropped.Add(1)
	d.metrics.Delivery(string(task.Operation), task.EntityType, false)
	d.log.WithError(err).
		WithField("id", task.ID).
		WithField("operation", string(task.Operation)).
		WithField("type", task.EntityType).
		Warn("Dropping delivery task")
}
