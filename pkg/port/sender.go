// Package port delivers entity changes to the Port catalog through its
// webhook ingestion endpoint.
package port

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/port-labs/incremental-sync/pkg/engine"
	"github.com/port-labs/incremental-sync/pkg/telemetry"
)

// WebhookSender posts delivery tasks to a Port webhook. It implements
// engine.Sender; retry and concurrency policy live in the dispatcher.
type WebhookSender struct {
	httpClient *http.Client
	ingestURL  string
	log        *telemetry.Logger
}

// NewWebhookSender builds a sender against the given ingestion URL.
func NewWebhookSender(ingestURL string, timeout time.Duration, log *telemetry.Logger) *WebhookSender {
	return &WebhookSender{
		httpClient: &http.Client{Timeout: timeout},
		ingestURL:  ingestURL,
		log:        log.NewComponentLogger("webhook-sender"),
	}
}

type webhookBody struct {
	Data      map[string]any `json:"data"`
	Operation string         `json:"operation"`
	Type      string         `json:"type"`
}

// Send posts one task. A 4xx response is a client-classified error and
// must not be retried; any other failure is transient.
func (s *WebhookSender) Send(ctx context.Context, task engine.DeliveryTask) error {
	payload, err := json.Marshal(webhookBody{
		Data:      task.Payload,
		Operation: string(task.Operation),
		Type:      task.EntityType,
	})
	if err != nil {
		return engine.NewClientError("failed to encode webhook body", err).WithEntity(task.ID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.ingestURL, bytes.NewReader(payload))
	if err != nil {
		return engine.NewClientError("failed to build webhook request", err).WithEntity(task.ID)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return engine.NewTransientError("webhook request failed", err).WithEntity(task.ID)
	}
	defer resp.Body.Close()

	// Drain so the connection is reusable.
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		s.log.WithField("entity", task.ID).
			WithField("operation", string(task.Operation)).
			Debug("Delivered webhook")
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return engine.NewClientError(
			fmt.Sprintf("webhook rejected with status %d", resp.StatusCode), nil,
		).WithStatus(resp.StatusCode).WithEntity(task.ID)
	default:
		return engine.NewTransientError(
			fmt.Sprintf("webhook returned status %d", resp.StatusCode), nil,
		).WithStatus(resp.StatusCode).WithEntity(task.ID)
	}
}
