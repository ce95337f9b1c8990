// Package cluster provides a thin client for the Kubernetes API surface the
// snapshot/provisioning component needs: persistent volume claims and
// snapshot custom resources. It deliberately covers only those calls.
package cluster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"
)

// Default client settings.
const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = 1 * time.Second
)

// Config holds the API server connection settings.
type Config struct {
	// BaseURL is the API server address, e.g. "https://10.0.0.1:443".
	BaseURL string

	// Token is the bearer token presented on every request.
	Token string

	// Namespace scopes all namespaced operations.
	Namespace string

	// Timeout is the HTTP client timeout for each request.
	Timeout time.Duration

	// MaxRetries is the maximum number of retry attempts for failed requests.
	MaxRetries int

	// RetryDelay is the initial delay between retries (exponential backoff applied).
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with default client settings. BaseURL,
// Token, and Namespace must be supplied by the caller.
func DefaultConfig() Config {
	return Config{
		Timeout:    DefaultTimeout,
		MaxRetries: DefaultMaxRetries,
		RetryDelay: DefaultRetryDelay,
	}
}

// Client issues requests against the Kubernetes API server.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     *slog.Logger
}

// NewClient creates an API client with the given configuration.
func NewClient(config Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		config: config,
		logger: logger.With("component", "cluster-client"),
	}
}

// Namespace returns the namespace all namespaced calls are scoped to.
func (c *Client) Namespace() string {
	return c.config.Namespace
}

// ReadPVC fetches a persistent volume claim by name.
func (c *Client) ReadPVC(ctx context.Context, name string) (*PVC, error) {
	path := fmt.Sprintf("/api/v1/namespaces/%s/persistentvolumeclaims/%s", c.config.Namespace, name)
	var pvc PVC
	if err := c.do(ctx, http.MethodGet, path, "", nil, &pvc); err != nil {
		return nil, fmt.Errorf("read pvc %q: %w", name, err)
	}
	return &pvc, nil
}

// CreatePVC creates a persistent volume claim in the client's namespace.
func (c *Client) CreatePVC(ctx context.Context, pvc *PVC) (*PVC, error) {
	path := fmt.Sprintf("/api/v1/namespaces/%s/persistentvolumeclaims", c.config.Namespace)
	var created PVC
	if err := c.do(ctx, http.MethodPost, path, "application/json", pvc, &created); err != nil {
		return nil, fmt.Errorf("create pvc %q: %w", pvc.Metadata.Name, err)
	}
	return &created, nil
}

// PatchPVC applies a strategic merge patch to a persistent volume claim.
func (c *Client) PatchPVC(ctx context.Context, name string, patch map[string]any) (*PVC, error) {
	path := fmt.Sprintf("/api/v1/namespaces/%s/persistentvolumeclaims/%s", c.config.Namespace, name)
	var patched PVC
	if err := c.do(ctx, http.MethodPatch, path, "application/strategic-merge-patch+json", patch, &patched); err != nil {
		return nil, fmt.Errorf("patch pvc %q: %w", name, err)
	}
	return &patched, nil
}

// CreateNamespacedCustomObject creates a custom resource in the client's
// namespace, e.g. a snapshot.storage.k8s.io VolumeSnapshot.
func (c *Client) CreateNamespacedCustomObject(ctx context.Context, group, version, plural string, body map[string]any) (map[string]any, error) {
	path := fmt.Sprintf("/apis/%s/%s/namespaces/%s/%s", group, version, c.config.Namespace, plural)
	var created map[string]any
	if err := c.do(ctx, http.MethodPost, path, "application/json", body, &created); err != nil {
		return nil, fmt.Errorf("create %s/%s %s: %w", group, version, plural, err)
	}
	return created, nil
}

// GetNamespacedCustomObject fetches a custom resource by name.
func (c *Client) GetNamespacedCustomObject(ctx context.Context, group, version, plural, name string) (map[string]any, error) {
	path := fmt.Sprintf("/apis/%s/%s/namespaces/%s/%s/%s", group, version, c.config.Namespace, plural, name)
	var obj map[string]any
	if err := c.do(ctx, http.MethodGet, path, "", nil, &obj); err != nil {
		return nil, fmt.Errorf("get %s/%s %s %q: %w", group, version, plural, name, err)
	}
	return obj, nil
}

// ListSnapshotClasses lists the cluster's volume snapshot classes.
func (c *Client) ListSnapshotClasses(ctx context.Context) ([]map[string]any, error) {
	var list struct {
		Items []map[string]any `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/apis/snapshot.storage.k8s.io/v1/volumesnapshotclasses", "", nil, &list); err != nil {
		return nil, fmt.Errorf("list snapshot classes: %w", err)
	}
	return list.Items, nil
}

// do executes one API call with bounded retries and decodes the response
// into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path, contentType string, body, out any) error {
	logger := c.logger.With("method", method, "path", path)

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.config.RetryDelay * time.Duration(math.Pow(2, float64(attempt-1)))
			logger.Debug("retrying after delay", "attempt", attempt, "delay", delay)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := c.doRequest(ctx, method, path, contentType, payload, out)
		if err == nil {
			return nil
		}
		lastErr = err

		httpErr, ok := err.(*HTTPError)
		if ok && !httpErr.IsRetryable() {
			return err
		}
		logger.Debug("request failed, will retry", "error", err, "attempt", attempt)
	}

	return fmt.Errorf("all retries exhausted: %w", lastErr)
}

// doRequest performs a single HTTP request and parses the response.
func (c *Client) doRequest(ctx context.Context, method, path, contentType string, payload []byte, out any) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating HTTP request: %w", err)
	}

	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.config.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return &HTTPError{StatusCode: httpResp.StatusCode, Body: string(respBody)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshaling response: %w", err)
	}
	return nil
}
