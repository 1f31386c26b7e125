package engine

import (
	"strings"
	"time"
)

// SyncMode selects which query templates and classification path a run
// uses.
type SyncMode string

const (
	// SyncModeIncremental queries only records changed within the
	// configured time window and classifies by change type.
	SyncModeIncremental SyncMode = "incremental"

	// SyncModeFull queries the entire current inventory and treats every
	// record as an upsert.
	SyncModeFull SyncMode = "full"
)

// ChangeType is the kind of change reported by the change feed.
type ChangeType string

const (
	ChangeTypeCreate ChangeType = "Create"
	ChangeTypeUpdate ChangeType = "Update"
	ChangeTypeDelete ChangeType = "Delete"
)

// Operation is the catalog operation a delivery task performs.
type Operation string

const (
	OperationUpsert Operation = "upsert"
	OperationDelete Operation = "delete"
)

// Entity type names sent to the catalog.
const (
	EntityTypeResource     = "resource"
	EntityTypeContainer    = "resourceContainer"
	EntityTypeSubscription = "subscription"
)

// Subscription is one cloud subscription as reported by inventory
// discovery. Immutable for the duration of a run.
type Subscription struct {
	// ID is the opaque subscription identifier.
	ID string

	// DisplayName is the human-readable subscription name.
	DisplayName string

	// Properties carries provider-specific metadata, delivered as-is in
	// the subscription entity payload.
	Properties map[string]any
}

// ChangeRecord is one resource or resource-container observation returned
// by a graph query. In incremental mode ChangeType and ChangeTime are set;
// in full mode they are zero.
type ChangeRecord struct {
	ResourceID     string
	SubscriptionID string
	ResourceGroup  string
	Type           string
	Name           string
	Location       string
	Tags           map[string]string
	ChangeType     ChangeType
	ChangeTime     time.Time
}

// Normalize lower-cases the identifiers used for grouping and joining.
// Resource Graph is case-preserving but the change feed reports IDs in
// mixed case, so every record is normalized before classification.
func (r ChangeRecord) Normalize() ChangeRecord {
	r.ResourceID = strings.ToLower(r.ResourceID)
	r.ResourceGroup = strings.ToLower(r.ResourceGroup)
	return r
}

// DeliveryTask is one pending catalog call. Created by the reconciler or
// the orchestrator, consumed exactly once by the dispatcher and discarded
// after terminal success or exhausted retries.
type DeliveryTask struct {
	// ID identifies the entity the task concerns.
	ID string

	// Operation is upsert or delete.
	Operation Operation

	// EntityType is the catalog entity kind (resource, resourceContainer,
	// subscription).
	EntityType string

	// Payload is the entity body sent to the catalog.
	Payload map[string]any
}

// resourcePayload maps a change record to the delivery payload shape for a
// leaf resource or a resource container.
func resourcePayload(rec ChangeRecord) map[string]any {
	payload := map[string]any{
		"resourceId":     rec.ResourceID,
		"subscriptionId": rec.SubscriptionID,
		"resourceGroup":  rec.ResourceGroup,
		"type":           rec.Type,
		"name":           rec.Name,
		"location":       rec.Location,
		"tags":           rec.Tags,
	}
	if rec.ChangeType != "" {
		payload["changeType"] = string(rec.ChangeType)
		payload["changeTime"] = rec.ChangeTime.UTC().Format(time.RFC3339)
	}
	return payload
}

// containerPayload maps a derived (resourceGroup, subscriptionId) pair to
// the resource-group entity payload.
func containerPayload(resourceGroup, subscriptionID string) map[string]any {
	return map[string]any{
		"name":           resourceGroup,
		"subscriptionId": subscriptionID,
	}
}

// subscriptionPayload maps a subscription to its entity payload.
func subscriptionPayload(sub Subscription) map[string]any {
	payload := map[string]any{
		"subscriptionId": sub.ID,
		"displayName":    sub.DisplayName,
	}
	if len(sub.Properties) > 0 {
		payload["properties"] = sub.Properties
	}
	return payload
}

// SubscriptionTask builds the direct upsert task for a subscription
// entity.
func SubscriptionTask(sub Subscription) DeliveryTask {
	return DeliveryTask{
		ID:         sub.ID,
		Operation:  OperationUpsert,
		EntityType: EntityTypeSubscription,
		Payload:    subscriptionPayload(sub),
	}
}

// RunSummary aggregates the outcome counts of one engine run.
type RunSummary struct {
	Subscriptions int
	Batches       int
	Pages         int
	Records       int
	Upserts       int
	Deletes       int
	Dropped       int
}
