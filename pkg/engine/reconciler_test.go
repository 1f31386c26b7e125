package engine

import (
	"testing"
	"time"

	"github.com/port-labs/incremental-sync/pkg/telemetry"
)

func changed(id, group string, changeType ChangeType) ChangeRecord {
	return ChangeRecord{
		ResourceID:     id,
		SubscriptionID: "sub-1",
		ResourceGroup:  group,
		Type:           "microsoft.compute/virtualmachines",
		ChangeType:     changeType,
		ChangeTime:     time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
	}
}

func TestReconcileEmptyPage(t *testing.T) {
	r := NewReconciler(SyncModeIncremental, telemetry.NopLogger())

	result := r.Reconcile(nil, EntityTypeResource)
	if !result.Empty() {
		t.Fatalf("expected empty result, got %+v", result)
	}
}

func TestReconcileClassifiesByChangeType(t *testing.T) {
	r := NewReconciler(SyncModeIncremental, telemetry.NopLogger())

	page := []ChangeRecord{
		changed("/res/a", "rg-a", ChangeTypeCreate),
		changed("/res/b", "rg-a", ChangeTypeUpdate),
		changed("/res/c", "rg-a", ChangeTypeDelete),
	}
	result := r.Reconcile(page, EntityTypeResource)

	if len(result.Upserts) != 2 {
		t.Errorf("expected 2 upserts, got %d", len(result.Upserts))
	}
	if len(result.Deletes) != 1 {
		t.Fatalf("expected 1 delete, got %d", len(result.Deletes))
	}
	if result.Deletes[0].ID != "/res/c" {
		t.Errorf("expected /res/c deleted, got %s", result.Deletes[0].ID)
	}
	if result.Deletes[0].Operation != OperationDelete {
		t.Errorf("expected delete operation, got %s", result.Deletes[0].Operation)
	}
}

func TestReconcileFullModeIgnoresChangeType(t *testing.T) {
	r := NewReconciler(SyncModeFull, telemetry.NopLogger())

	page := []ChangeRecord{
		changed("/res/a", "rg-a", ChangeTypeDelete),
		changed("/res/b", "rg-a", ""),
	}
	result := r.Reconcile(page, EntityTypeResource)

	if len(result.Deletes) != 0 {
		t.Errorf("full mode must not produce deletes, got %d", len(result.Deletes))
	}
	if len(result.Upserts) != 2 {
		t.Errorf("expected 2 upserts, got %d", len(result.Upserts))
	}
}

func TestReconcileNormalizesIdentifiers(t *testing.T) {
	r := NewReconciler(SyncModeIncremental, telemetry.NopLogger())

	page := []ChangeRecord{changed("/Res/A", "RG-Mixed", ChangeTypeCreate)}
	result := r.Reconcile(page, EntityTypeResource)

	if result.Upserts[0].ID != "/res/a" {
		t.Errorf("expected lowercase resource id, got %s", result.Upserts[0].ID)
	}
	if result.Containers[0].ResourceGroup != "rg-mixed" {
		t.Errorf("expected lowercase resource group, got %s", result.Containers[0].ResourceGroup)
	}
}

func TestReconcileDerivesDistinctContainers(t *testing.T) {
	r := NewReconciler(SyncModeIncremental, telemetry.NopLogger())

	page := []ChangeRecord{
		changed("/res/a", "rg-a", ChangeTypeCreate),
		changed("/res/b", "RG-A", ChangeTypeUpdate),
		changed("/res/c", "rg-b", ChangeTypeCreate),
		changed("/res/d", "", ChangeTypeCreate),
	}
	result := r.Reconcile(page, EntityTypeResource)

	if len(result.Containers) != 2 {
		t.Fatalf("expected 2 distinct containers, got %d", len(result.Containers))
	}
	task := result.Containers[0].Task()
	if task.EntityType != EntityTypeContainer || task.Operation != OperationUpsert {
		t.Errorf("unexpected container task: %+v", task)
	}
	if task.Payload["name"] != "rg-a" {
		t.Errorf("expected container name rg-a, got %v", task.Payload["name"])
	}
}

func TestReconcileContainerPagesDeriveNoContainers(t *testing.T) {
	r := NewReconciler(SyncModeIncremental, telemetry.NopLogger())

	page := []ChangeRecord{changed("/rg/a", "rg-a", ChangeTypeCreate)}
	result := r.Reconcile(page, EntityTypeContainer)

	if len(result.Containers) != 0 {
		t.Errorf("container pages must not derive containers, got %d", len(result.Containers))
	}
	if len(result.Upserts) != 1 {
		t.Errorf("expected 1 upsert, got %d", len(result.Upserts))
	}
}

func TestReconcilePayloadCarriesChangeMetadata(t *testing.T) {
	r := NewReconciler(SyncModeIncremental, telemetry.NopLogger())

	result := r.Reconcile([]ChangeRecord{changed("/res/a", "rg-a", ChangeTypeUpdate)}, EntityTypeResource)

	payload := result.Upserts[0].Payload
	if payload["changeType"] != "Update" {
		t.Errorf("expected changeType Update, got %v", payload["changeType"])
	}
	if payload["changeTime"] != "2026-08-30T10:00:00Z" {
		t.Errorf("expected RFC3339 changeTime, got %v", payload["changeTime"])
	}
}
