// Package coreapi is the HTTP client for the internal core API that owns
// apps and their datasets. All calls authorize downstream by forwarding the
// caller's session cookie verbatim; the client holds no credentials itself.
package coreapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ljoukov/dust/internal/domain"
	"github.com/ljoukov/dust/internal/metrics"
)

// Client talks to the core API at a fixed base URL. The base URL is injected
// at construction time, never read from the environment at call time.
//
// Calls carry no client-side timeout and are never retried; a failed or hung
// call surfaces to the caller as-is.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
}

// GetApp fetches an app's metadata by its sId.
func (c *Client) GetApp(ctx context.Context, cookie, sID string) (*domain.App, error) {
	var envelope struct {
		App domain.App `json:"app"`
	}
	path := fmt.Sprintf("/api/apps/%s", url.PathEscape(sID))
	if err := c.do(ctx, "get_app", http.MethodGet, path, cookie, nil, &envelope); err != nil {
		return nil, err
	}
	return &envelope.App, nil
}

// ListDatasets fetches the names of all datasets belonging to an app.
func (c *Client) ListDatasets(ctx context.Context, cookie, sID string) ([]domain.DatasetSummary, error) {
	var envelope struct {
		Datasets []domain.DatasetSummary `json:"datasets"`
	}
	path := fmt.Sprintf("/api/apps/%s/datasets", url.PathEscape(sID))
	if err := c.do(ctx, "list_datasets", http.MethodGet, path, cookie, nil, &envelope); err != nil {
		return nil, err
	}
	return envelope.Datasets, nil
}

// GetDatasetLatest fetches the latest version of a named dataset.
func (c *Client) GetDatasetLatest(ctx context.Context, cookie, sID, name string) (*domain.Dataset, error) {
	var envelope struct {
		Dataset domain.Dataset `json:"dataset"`
	}
	path := fmt.Sprintf("/api/apps/%s/datasets/%s/latest", url.PathEscape(sID), url.PathEscape(name))
	if err := c.do(ctx, "get_dataset_latest", http.MethodGet, path, cookie, nil, &envelope); err != nil {
		return nil, err
	}
	return &envelope.Dataset, nil
}

// UpdateDataset posts an edited dataset as its new version. The response
// body is decoded and discarded.
func (c *Client) UpdateDataset(ctx context.Context, cookie, sID, name string, dataset domain.Dataset) error {
	var envelope json.RawMessage
	path := fmt.Sprintf("/api/apps/%s/datasets/%s", url.PathEscape(sID), url.PathEscape(name))
	return c.do(ctx, "update_dataset", http.MethodPost, path, cookie, dataset, &envelope)
}

// Ping reports whether the core API answers HTTP at all. Used by readiness.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("failed to create ping request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("core api unreachable: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) do(ctx context.Context, endpoint, method, path, cookie string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", path, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", path, err)
	}
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	timer := prometheus.NewTimer(metrics.CoreAPIRequestDuration.WithLabelValues(endpoint))
	resp, err := c.http.Do(req)
	timer.ObserveDuration()
	if err != nil {
		metrics.CoreAPIRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return fmt.Errorf("core api request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	metrics.CoreAPIRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("core api %s returned status %d", path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", path, err)
		}
	}
	return nil
}
