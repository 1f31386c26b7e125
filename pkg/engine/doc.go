// Package engine implements the incremental synchronization engine that
// reconciles an Azure resource inventory (and its change feed) into the
// Port catalog.
//
// # Pipeline
//
// One run flows top-down through four stages:
//
//  1. Discovery - list all subscriptions and chunk them into batches
//  2. Paging - stream Resource Graph result pages behind a token-bucket
//     rate limiter (QueryRunner)
//  3. Reconciliation - classify each record into upsert/delete delivery
//     tasks and derive resource-group upserts (Reconciler)
//  4. Dispatch - deliver tasks under a bounded concurrency limit with
//     per-task retry (Dispatcher)
//
// The Orchestrator drives the stages per subscription batch; within a
// batch the resource-container pass runs before the resource pass.
//
// # Collaborators
//
// The engine is a client of three external collaborators, defined as
// interfaces in this package: SubscriptionLister (inventory discovery),
// GraphQuerier (cursor-paginated query execution) and Sender (catalog
// delivery). Implementations live in pkg/azure and pkg/port.
//
// # Error classification
//
// Errors are classified for retry logic: transient failures (network,
// 5xx) are retried with a fixed delay; client errors (4xx) are logged and
// dropped without retry; fatal errors (unconfigured client, rejected
// query) abort the run. Individual task failures never abort a run.
package engine
