package azure

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/port-labs/incremental-sync/pkg/engine"
)

// StaticTokenSource returns the same token for every call. Used in tests
// and in environments where a token is provisioned externally.
func StaticTokenSource(token string) TokenSource {
	return func(context.Context) (string, error) { return token, nil }
}

// expiryMargin forces a refresh slightly before the token actually
// expires so requests in flight never carry a stale one.
const expiryMargin = 2 * time.Minute

type credentialCache struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// ClientCredentialsTokenSource acquires tokens from Microsoft Entra ID
// with the OAuth2 client-credentials grant, scoped to the management
// plane. Tokens are cached and refreshed shortly before expiry.
func ClientCredentialsTokenSource(tenantID, clientID, clientSecret string, httpClient *http.Client) TokenSource {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	cache := &credentialCache{}
	tokenURL := fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", tenantID)

	return func(ctx context.Context) (string, error) {
		cache.mu.Lock()
		defer cache.mu.Unlock()

		if cache.token != "" && time.Now().Before(cache.expiresAt.Add(-expiryMargin)) {
			return cache.token, nil
		}

		form := url.Values{
			"grant_type":    {"client_credentials"},
			"client_id":     {clientID},
			"client_secret": {clientSecret},
			"scope":         {"https://management.azure.com/.default"},
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
		if err != nil {
			return "", engine.NewFatalError("failed to build token request", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := httpClient.Do(req)
		if err != nil {
			return "", engine.NewTransientError("token request failed", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", engine.NewTransientError("failed to read token response", err)
		}
		if resp.StatusCode != http.StatusOK {
			return "", engine.NewFatalError(
				fmt.Sprintf("token endpoint rejected the credentials: %s", truncate(body)), nil,
			).WithStatus(resp.StatusCode)
		}

		var token tokenResponse
		if err := json.Unmarshal(body, &token); err != nil {
			return "", engine.NewFatalError("failed to decode token response", err)
		}

		cache.token = token.AccessToken
		cache.expiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
		return cache.token, nil
	}
}
