package port

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/port-labs/incremental-sync/pkg/engine"
	"github.com/port-labs/incremental-sync/pkg/telemetry"
)

func upsertTask() engine.DeliveryTask {
	return engine.DeliveryTask{
		ID:         "/subscriptions/sub-1/resourcegroups/rg-a/x",
		Operation:  engine.OperationUpsert,
		EntityType: engine.EntityTypeResource,
		Payload:    map[string]any{"name": "vm1"},
	}
}

func TestSendPostsEnvelope(t *testing.T) {
	var got webhookBody
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	sender := NewWebhookSender(server.URL, time.Second, telemetry.NopLogger())
	require.NoError(t, sender.Send(context.Background(), upsertTask()))

	assert.Equal(t, "upsert", got.Operation)
	assert.Equal(t, engine.EntityTypeResource, got.Type)
	assert.Equal(t, "vm1", got.Data["name"])
}

func TestSendClassifiesRejectionAsClientError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad payload", http.StatusUnprocessableEntity)
	}))
	t.Cleanup(server.Close)

	sender := NewWebhookSender(server.URL, time.Second, telemetry.NopLogger())
	err := sender.Send(context.Background(), upsertTask())

	require.Error(t, err)
	assert.True(t, engine.IsClient(err))
	assert.False(t, engine.IsTransient(err))
}

func TestSendClassifiesServerErrorAsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	sender := NewWebhookSender(server.URL, time.Second, telemetry.NopLogger())
	err := sender.Send(context.Background(), upsertTask())

	require.Error(t, err)
	assert.True(t, engine.IsTransient(err))
}

func TestSendClassifiesNetworkFailureAsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	sender := NewWebhookSender(server.URL, time.Second, telemetry.NopLogger())
	err := sender.Send(context.Background(), upsertTask())

	require.Error(t, err)
	assert.True(t, engine.IsTransient(err))
}
