package azure

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

const (
	subscriptionsAPIVersion = "2022-12-01"
	resourceGraphAPIVersion = "2022-10-01"
)

// TokenSource yields a bearer token for outbound API calls. Called once
// per request so rotating credentials stay fresh.
type TokenSource func(ctx context.Context) (string, error)

// Client calls the Azure management plane. It implements
// engine.SubscriptionLister and engine.GraphQuerier.
type Client struct {
	httpClient *http.Client
	endpoint   string
	tokens     TokenSource
	log        *telemetry.Logger
}

// NewClient builds a management-plane client against endpoint, normally
// https://management.azure.com.
func NewClient(endpoint string, timeout time.Duration, tokens TokenSource, log *telemetry.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   endpoint,
		tokens:     tokens,
		log:        log.NewComponentLogger("azure-client"),
	}
}

type subscriptionPage struct {
	Value []struct {
		SubscriptionID string         `json:"subscriptionId"`
		DisplayName    string         `json:"displayName"`
		Properties     map[string]any `json:"properties"`
	} `json:"value"`
	NextLink string `json:"nextLink"`
}

// ListSubscriptions returns every subscription the credential can see,
// following nextLink pagination until exhausted.
func (c *Client) ListSubscriptions(ctx context.Context) ([]engine.Subscription, error) {
	if c == nil || c.httpClient == nil {
		return nil, engine.NewFatalError("azure client not initialized", nil)
	}

	var subs []engine.Subscription
	url := fmt.Sprintf("%s/subscriptions?api-version=%s", c.endpoint, subscriptionsAPIVersion)
	for url != "" {
		body, err := c.do(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}

		var page subscriptionPage
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, engine.NewFatalError("failed to decode subscription list", err)
		}
		for _, sub := range page.Value {
			subs = append(subs, engine.Subscription{
				ID:          sub.SubscriptionID,
				DisplayName: sub.DisplayName,
				Properties:  sub.Properties,
			})
		}
		url = page.NextLink
	}

	c.log.WithField("count", len(subs)).Debug("Listed subscriptions")
	return subs, nil
}

type graphRequest struct {
	Query         string        `json:"query"`
	Subscriptions []string      `json:"subscriptions"`
	Options       *graphOptions `json:"options,omitempty"`
}

type graphOptions struct {
	SkipToken    string `json:"$skipToken,omitempty"`
	ResultFormat string `json:"resultFormat"`
}

type graphResponse struct {
	Data      []graphRow `json:"data"`
	SkipToken string     `json:"$skipToken"`
}

type graphRow struct {
	ResourceID     string            `json:"resourceId"`
	SubscriptionID string            `json:"subscriptionId"`
	ResourceGroup  string            `json:"resourceGroup"`
	Type           string            `json:"type"`
	Name           string            `json:"name"`
	Location       string            `json:"location"`
	Tags           map[string]string `json:"tags"`
	ChangeType     string            `json:"changeType"`
	ChangeTime     string            `json:"changeTime"`
}

// Query runs one Resource Graph call scoped to subscriptionIDs. A
// non-empty skipToken continues a previous page.
func (c *Client) Query(ctx context.Context, queryText string, subscriptionIDs []string, skipToken string) (engine.QueryPage, error) {
	if c == nil || c.httpClient == nil {
		return engine.QueryPage{}, engine.NewFatalError("azure client not initialized", nil)
	}

	req := graphRequest{
		Query:         queryText,
		Subscriptions: subscriptionIDs,
		Options:       &graphOptions{SkipToken: skipToken, ResultFormat: "objectArray"},
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return engine.QueryPage{}, engine.NewFatalError("failed to encode graph query", err)
	}

	url := fmt.Sprintf("%s/providers/Microsoft.ResourceGraph/resources?api-version=%s", c.endpoint, resourceGraphAPIVersion)
	body, err := c.do(ctx, http.MethodPost, url, payload)
	if err != nil {
		return engine.QueryPage{}, err
	}

	var resp graphResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return engine.QueryPage{}, engine.NewFatalError("failed to decode graph response", err)
	}

	page := engine.QueryPage{SkipToken: resp.SkipToken}
	for _, row := range resp.Data {
		rec := engine.ChangeRecord{
			ResourceID:     row.ResourceID,
			SubscriptionID: row.SubscriptionID,
			ResourceGroup:  row.ResourceGroup,
			Type:           row.Type,
			Name:           row.Name,
			Location:       row.Location,
			Tags:           row.Tags,
			ChangeType:     engine.ChangeType(row.ChangeType),
		}
		if row.ChangeTime != "" {
			if ts, err := time.Parse(time.RFC3339, row.ChangeTime); err == nil {
				rec.ChangeTime = ts
			}
		}
		page.Records = append(page.Records, rec)
	}
	return page, nil
}

// do executes one authenticated call and classifies failures: 400 and
// auth rejections are fatal, everything else is transient and left to
// the caller's retry policy.
func (c *Client) do(ctx context.Context, method, url string, payload []byte) ([]byte, error) {
	token, err := c.tokens(ctx)
	if err != nil {
		return nil, engine.NewFatalError("failed to acquire access token", err)
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, engine.NewFatalError("failed to build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, engine.NewTransientError("azure request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, engine.NewTransientError("failed to read azure response", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusBadRequest ||
		resp.StatusCode == http.StatusUnauthorized ||
		resp.StatusCode == http.StatusForbidden:
		return nil, engine.NewFatalError(
			fmt.Sprintf("azure rejected the request: %s", truncate(body)), nil,
		).WithStatus(resp.StatusCode)
	default:
		return nil, engine.NewTransientError(
			fmt.Sprintf("azure returned status %d", resp.StatusCode), nil,
		).WithStatus(resp.StatusCode)
	}
}

func truncate(body []byte) string {
	const max = 256
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
