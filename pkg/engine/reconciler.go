package engine

import (
	"github.com/port-labs/incremental-sync/pkg/telemetry"
)

// Reconciler classifies a page of change records into delivery tasks and
// derives the secondary resource-group upserts.
type Reconciler struct {
	mode SyncMode
	log  *telemetry.Logger
}

// NewReconciler creates a reconciler for the given sync mode.
func NewReconciler(mode SyncMode, log *telemetry.Logger) *Reconciler {
	return &Reconciler{
		mode: mode,
		log:  log.NewComponentLogger("reconciler"),
	}
}

// ReconcileResult is the classified output of one page. Upserts and
// Deletes are dispatched as separate waves so a resource's create/update
// never races its own deletion within the page.
type ReconcileResult struct {
	Upserts []DeliveryTask
	Deletes []DeliveryTask

	// Containers holds one derived resource-group upsert per distinct
	// (resourceGroup, subscriptionId) pair observed in the page.
	Containers []ContainerRef
}

// Empty reports whether the page produced no work at all.
func (r ReconcileResult) Empty() bool {
	return len(r.Upserts) == 0 && len(r.Deletes) == 0 && len(r.Containers) == 0
}

// ContainerRef identifies one resource group observed in a page.
type ContainerRef struct {
	ResourceGroup  string
	SubscriptionID string
}

// Task builds the derived upsert for the resource-group entity.
func (c ContainerRef) Task() DeliveryTask {
	return DeliveryTask{
		ID:         c.ResourceGroup,
		Operation:  OperationUpsert,
		EntityType: EntityTypeContainer,
		Payload:    containerPayload(c.ResourceGroup, c.SubscriptionID),
	}
}

// Reconcile classifies one page of records for the given entity type.
// In incremental mode a record whose change type is Delete becomes a
// delete task; everything else, and every record in full mode, becomes an
// upsert. An empty page yields an empty result and must trigger no
// delivery calls.
func (r *Reconciler) Reconcile(page []ChangeRecord, entityType string) ReconcileResult {
	var result ReconcileResult
	if len(page) == 0 {
		r.log.Debug("Empty page, nothing to reconcile")
		return result
	}

	seen := make(map[ContainerRef]struct{})

	for _, rec := range page {
		rec = rec.Normalize()

		if entityType == EntityTypeResource && rec.ResourceGroup != "" {
			ref := ContainerRef{ResourceGroup: rec.ResourceGroup, SubscriptionID: rec.SubscriptionID}
			if _, ok := seen[ref]; !ok {
				seen[ref] = struct{}{}
				result.Containers = append(result.Containers, ref)
			}
		}

		task := DeliveryTask{
			ID:         rec.ResourceID,
			Operation:  OperationUpsert,
			EntityType: entityType,
			Payload:    resourcePayload(rec),
		}
		if r.mode == SyncModeIncremental && rec.ChangeType == ChangeTypeDelete {
			task.Operation = OperationDelete
			result.Deletes = append(result.Deletes, task)
		} else {
			result.Upserts = append(result.Upserts, task)
		}
	}

	r.log.WithField("upserts", len(result.Upserts)).
		WithField("deletes", len(result.Deletes)).
		WithField("containers", len(result.Containers)).
		Debug("Reconciled page")
	return result
}
