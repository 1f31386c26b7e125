package engine

import (
	"context"
	"time"

	"github.com/port-labs/incremental-sync/pkg/ratelimit"
	"github.com/port-labs/incremental-sync/pkg/telemetry"
)

// defaultBackoff is how long the pagination loop waits after a rate-limit
// rejection before re-attempting the same call.
const defaultBackoff = 1 * time.Second

// QueryRunner streams result pages from the graph-query collaborator,
// pacing outbound calls through a shared token bucket. One runner is
// shared by all query passes of an engine run.
type QueryRunner struct {
	querier GraphQuerier
	limiter *ratelimit.TokenBucket
	log     *telemetry.Logger
	metrics *telemetry.Metrics
	backoff time.Duration
}

// NewQueryRunner creates a runner around the given querier and limiter.
func NewQueryRunner(querier GraphQuerier, limiter *ratelimit.TokenBucket, log *telemetry.Logger, metrics *telemetry.Metrics) *QueryRunner {
	return &QueryRunner{
		querier: querier,
		limiter: limiter,
		log:     log.NewComponentLogger("query-runner"),
		metrics: metrics,
		backoff: defaultBackoff,
	}
}

// Run opens a lazy page sequence for one query over one subscription
// batch. The sequence is finite and not restartable; open a fresh one for
// a re-run.
func (r *QueryRunner) Run(queryText string, subscriptionIDs []string) *PageSequence {
	return &PageSequence{
		runner:          r,
		queryText:       queryText,
		subscriptionIDs: subscriptionIDs,
	}
}

// PageSequence iterates over the pages of one query invocation in
// bufio.Scanner style:
//
//	seq := runner.Run(query, subs)
//	for seq.Next(ctx) {
//	    handle(seq.Page())
//	}
//	if err := seq.Err(); err != nil { ... }
type PageSequence struct {
	runner          *QueryRunner
	queryText       string
	subscriptionIDs []string

	skipToken string
	begun     bool
	done      bool
	page      []ChangeRecord
	err       error
}

// Next advances to the next page, suspending on rate-limit backoff as
// needed. It returns false when the sequence is exhausted or failed.
func (s *PageSequence) Next(ctx context.Context) bool {
	if s.done || s.err != nil {
		return false
	}
	// The backend signals exhaustion by omitting the continuation token.
	if s.begun && s.skipToken == "" {
		s.done = true
		return false
	}

	r := s.runner
	for {
		if !r.limiter.Consume(1) {
			r.metrics.RateLimitRejection()
			r.log.Debug("Query rate limited, backing off")
			select {
			case <-time.After(r.backoff):
				continue
			case <-ctx.Done():
				s.err = ctx.Err()
				return false
			}
		}
		break
	}

	page, err := r.querier.Query(ctx, s.queryText, s.subscriptionIDs, s.skipToken)
	if err != nil {
		// No retry here: rate-limit backoff is the only recovery this
		// layer performs. Anything else fails the whole sequence.
		s.err = err
		return false
	}

	r.metrics.QueryPage(len(page.Records))
	s.begun = true
	s.page = page.Records
	s.skipToken = page.SkipToken
	return true
}

// Page returns the records of the current page. Valid until the next call
// to Next.
func (s *PageSequence) Page() []ChangeRecord {
	return s.page
}

// Err returns the error that terminated the sequence, if any.
func (s *PageSequence) Err() error {
	return s.err
}
