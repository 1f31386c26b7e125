package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/port-labs/incremental-sync/pkg/query"
	"github.com/port-labs/incremental-sync/pkg/telemetry"
)

// DefaultSubscriptionBatchSize is how many subscriptions are queried
// together when no explicit batch size is configured. Resource Graph
// accepts up to 1000 subscriptions per call.
const DefaultSubscriptionBatchSize = 1000

// Options configures one orchestrated run.
type Options struct {
	// Mode selects incremental or full synchronization.
	Mode SyncMode

	// WindowMinutes scopes incremental queries to changes newer than this
	// many minutes.
	WindowMinutes int

	// SubscriptionBatchSize is the chunk size for subscription batches.
	SubscriptionBatchSize int

	// Filters scope which resource containers are synchronized.
	Filters query.TagFilters
}

// Orchestrator drives one synchronization run: discovery, then per batch
// the paging / reconciling / dispatching loop for resource containers and
// resources.
type Orchestrator struct {
	lister     SubscriptionLister
	runner     *QueryRunner
	reconciler *Reconciler
	dispatcher *Dispatcher
	opts       Options
	log        *telemetry.Logger
	metrics    *telemetry.Metrics
	tracer     *telemetry.Tracer

	// seenContainers dedupes derived resource-group upserts across the
	// whole run.
	seenContainers map[ContainerRef]struct{}
}

// NewOrchestrator wires the engine components for one run. The tracer may
// be nil.
func NewOrchestrator(
	lister SubscriptionLister,
	runner *QueryRunner,
	dispatcher *Dispatcher,
	opts Options,
	log *telemetry.Logger,
	metrics *telemetry.Metrics,
	tracer *telemetry.Tracer,
) *Orchestrator {
	if opts.SubscriptionBatchSize <= 0 {
		opts.SubscriptionBatchSize = DefaultSubscriptionBatchSize
	}
	if opts.Mode == "" {
		opts.Mode = SyncModeIncremental
	}
	return &Orchestrator{
		lister:         lister,
		runner:         runner,
		reconciler:     NewReconciler(opts.Mode, log),
		dispatcher:     dispatcher,
		opts:           opts,
		log:            log.NewComponentLogger("orchestrator"),
		metrics:        metrics,
		tracer:         tracer,
		seenContainers: make(map[ContainerRef]struct{}),
	}
}

// Run executes the full synchronization and returns its summary. A fatal
// discovery or pagination error aborts the run; individual delivery
// failures only show up in the summary's drop count.
func (o *Orchestrator) Run(ctx context.Context) (RunSummary, error) {
	started := time.Now()
	ctx, span := o.tracer.Start(ctx, "sync.run", attribute.String("mode", string(o.opts.Mode)))
	defer span.End()

	var summary RunSummary

	o.log.WithField("mode", string(o.opts.Mode)).Info("Starting synchronization run")

	subscriptions, err := o.lister.ListSubscriptions(ctx)
	if err != nil {
		fatal := NewFatalError("subscription discovery failed", err)
		telemetry.RecordError(span, fatal)
		o.metrics.RunCompleted("failed", time.Since(started))
		return summary, fatal
	}
	summary.Subscriptions = len(subscriptions)

	if len(subscriptions) == 0 {
		o.log.Warn("No subscriptions found, nothing to synchronize")
		o.metrics.RunCompleted("completed", time.Since(started))
		return summary, nil
	}

	o.log.Infof("Discovered %d subscriptions", len(subscriptions))

	batches := chunk(subscriptions, o.opts.SubscriptionBatchSize)
	summary.Batches = len(batches)

	containerQuery, resourceQuery := o.buildQueries()

	for i, batch := range batches {
		batchCtx, batchSpan := o.tracer.Start(ctx, "sync.batch", attribute.Int("batch", i))
		o.log.Infof("Processing batch %d/%d with %d subscriptions", i+1, len(batches), len(batch))

		o.upsertSubscriptions(batchCtx, batch, &summary)

		ids := make([]string, len(batch))
		for j, sub := range batch {
			ids[j] = sub.ID
		}

		if err := o.syncPass(batchCtx, containerQuery, ids, EntityTypeContainer, &summary); err != nil {
			telemetry.RecordError(batchSpan, err)
			batchSpan.End()
			o.metrics.RunCompleted("failed", time.Since(started))
			return summary, err
		}
		if err := o.syncPass(batchCtx, resourceQuery, ids, EntityTypeResource, &summary); err != nil {
			telemetry.RecordError(batchSpan, err)
			batchSpan.End()
			o.metrics.RunCompleted("failed", time.Since(started))
			return summary, err
		}
		batchSpan.End()
	}

	summary.Dropped = o.dispatcher.Dropped()
	o.metrics.RunCompleted("completed", time.Since(started))
	o.log.WithField("summary", summary).Info("Synchronization run completed")
	return summary, nil
}

// buildQueries selects the query texts for the configured mode. The tag
// filter only scopes container queries; leaf resources are not filtered.
func (o *Orchestrator) buildQueries() (containerQuery, resourceQuery string) {
	if o.opts.Mode == SyncModeFull {
		return query.ContainersFull(o.opts.Filters), query.ResourcesFull()
	}
	return query.ContainersIncremental(o.opts.WindowMinutes, o.opts.Filters),
		query.ResourcesIncremental(o.opts.WindowMinutes)
}

// upsertSubscriptions dispatches the direct upsert tasks for the batch's
// subscription entities.
func (o *Orchestrator) upsertSubscriptions(ctx context.Context, batch []Subscription, summary *RunSummary) {
	tasks := make([]DeliveryTask, len(batch))
	for i, sub := range batch {
		tasks[i] = SubscriptionTask(sub)
	}
	o.log.Infof("Upserting %d subscriptions", len(tasks))
	o.dispatcher.Dispatch(ctx, tasks)
	summary.Upserts += len(tasks)
}

// syncPass runs one query over one subscription batch and feeds every
// yielded page through reconciliation and dispatch before requesting the
// next page.
func (o *Orchestrator) syncPass(ctx context.Context, queryText string, subscriptionIDs []string, entityType string, summary *RunSummary) error {
	log := o.log.WithField("entity_type", entityType)
	log.Infof("Running query for subscription batch with %d subscriptions", len(subscriptionIDs))

	seq := o.runner.Run(queryText, subscriptionIDs)
	for seq.Next(ctx) {
		page := seq.Page()
		summary.Pages++
		summary.Records += len(page)

		if len(page) == 0 {
			log.Info("No changes found in this page")
			continue
		}
		log.Infof("Received page of %d records", len(page))

		result := o.reconciler.Reconcile(page, entityType)

		// Derived resource-group upserts go out once per distinct
		// container discovered during the run.
		containerTasks := o.newContainerTasks(result.Containers)
		if len(containerTasks) > 0 {
			o.dispatcher.Dispatch(ctx, containerTasks)
			summary.Upserts += len(containerTasks)
		}

		// Upsert wave and delete wave are dispatched separately so a
		// resource's create/update is not raced against its own delete.
		o.dispatcher.Dispatch(ctx, result.Upserts)
		summary.Upserts += len(result.Upserts)

		o.dispatcher.Dispatch(ctx, result.Deletes)
		summary.Deletes += len(result.Deletes)
	}
	if err := seq.Err(); err != nil {
		return NewFatalError("query pagination failed", err)
	}
	return nil
}

// newContainerTasks filters out containers already upserted earlier in
// the run and returns the tasks for the rest.
func (o *Orchestrator) newContainerTasks(refs []ContainerRef) []DeliveryTask {
	var tasks []DeliveryTask
	for _, ref := range refs {
		if _, ok := o.seenContainers[ref]; ok {
			continue
		}
		o.seenContainers[ref] = struct{}{}
		tasks = append(tasks, ref.Task())
	}
	return tasks
}
