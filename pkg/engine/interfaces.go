package engine

import (
	"context"
	"time"
)

// SubscriptionLister discovers the full subscription inventory. The
// returned list is finite and materialized; the orchestrator chunks it
// eagerly.
type SubscriptionLister interface {
	ListSubscriptions(ctx context.Context) ([]Subscription, error)
}

// QueryPage is one page of graph query results together with the
// continuation token to request the next page. An empty SkipToken means
// the sequence is exhausted.
type QueryPage struct {
	Records   []ChangeRecord
	SkipToken string
}

// GraphQuerier executes one graph query call with an optional continuation
// token. Implementations must return a fatal-classified error (see
// NewFatalError) for an uninitialized client or a non-retryable backend
// status, distinguishable from transient network failures.
type GraphQuerier interface {
	Query(ctx context.Context, queryText string, subscriptionIDs []string, skipToken string) (QueryPage, error)
}

// Sender delivers one entity call to the catalog. A 4xx-style rejection
// must be returned as a client-classified error; any other failure is
// treated as transient and retried.
type Sender interface {
	Send(ctx context.Context, task DeliveryTask) error
}

// RunRecorder persists run outcomes. Implemented by pkg/stores; a nil
// recorder disables persistence.
type RunRecorder interface {
	RecordRun(ctx context.Context, run RunRecord) error
}

// RunRecord is the persisted outcome of one engine run.
type RunRecord struct {
	ID          string
	Mode        SyncMode
	Status      string
	StartedAt   time.Time
	CompletedAt time.Time
	Error       string
	Summary     RunSummary
}
