// Package client provides an HTTP client for the frontier poller's API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/HatiCode/frontier/pkg/sink"
)

// StaleHeader is set by the poller on snapshots older than its stale threshold.
const StaleHeader = "X-Frontier-Stale"

// ErrNoSnapshot is returned when the poller has not completed a cycle yet.
var ErrNoSnapshot = errors.New("no snapshot available yet")

// FrontierClient fetches ready-set snapshots from a running poller.
// It is safe for concurrent use by multiple goroutines.
type FrontierClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewFrontierClient creates a client with a 5 second request timeout.
// The baseURL should include the scheme and host (e.g., "http://localhost:8083").
func NewFrontierClient(baseURL string) *FrontierClient {
	return NewFrontierClientWithTimeout(baseURL, 5*time.Second)
}

// NewFrontierClientWithTimeout creates a new client with a custom timeout.
func NewFrontierClientWithTimeout(baseURL string, timeout time.Duration) *FrontierClient {
	return &FrontierClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Result contains the snapshot and whether the poller marked it stale.
type Result struct {
	Snapshot sink.Snapshot
	Stale    bool
}

// GetCurrent fetches the latest snapshot from GET /frontier/current.
// It returns ErrNoSnapshot when the poller answers 404.
func (c *FrontierClient) GetCurrent(ctx context.Context) (*Result, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	u.Path = "/frontier/current"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNoSnapshot
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var snap sink.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &Result{
		Snapshot: snap,
		Stale:    resp.Header.Get(StaleHeader) == "true",
	}, nil
}

// IsStale reports whether snap is older than staleAfter.
func IsStale(snap sink.Snapshot, staleAfter time.Duration) bool {
	return time.Since(snap.GeneratedAt) > staleAfter
}
