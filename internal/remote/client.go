// Package remote delivers sync payloads to the aggregation service.
//
// Client speaks the wire protocol. Resilient decorates any core.Remote with
// a circuit breaker, bounded retries and a per-attempt timeout.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/OnlyOnCloud/TallySyncService/internal/core"
)

const (
	DefaultSyncPath   = "/api/sync"
	DefaultHealthPath = "/health"

	// maxErrorBody bounds how much of a failed response is kept for the error.
	maxErrorBody = 4 << 10
)

// ErrMalformedResponse is returned when a 2xx acknowledgement cannot be decoded.
// The chunk may have been applied, so it is not retried.
var ErrMalformedResponse = errors.New("malformed remote response")

// StatusError is returned when the remote answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("remote returned status %d", e.Code)
	}
	return fmt.Sprintf("remote returned status %d: %s", e.Code, e.Body)
}

// Temporary reports whether repeating the request may succeed.
func (e *StatusError) Temporary() bool {
	switch {
	case e.Code == http.StatusRequestTimeout, e.Code == http.StatusTooManyRequests:
		return true
	case e.Code >= 500:
		return true
	default:
		return false
	}
}

// ClientOptions configures a Client.
type ClientOptions struct {
	BaseURL    string
	SyncPath   string
	HealthPath string

	// Token is sent as a bearer credential when set.
	Token string

	HTTPClient *http.Client
}

// Client posts chunk payloads as JSON.
type Client struct {
	syncURL   string
	healthURL string
	token     string
	http      *http.Client
}

var _ core.Remote = (*Client)(nil)

// NewClient creates a Client. It panics if BaseURL is empty.
func NewClient(opts ClientOptions) *Client {
	if opts.BaseURL == "" {
		panic("remote: base URL must not be empty")
	}
	if opts.SyncPath == "" {
		opts.SyncPath = DefaultSyncPath
	}
	if opts.HealthPath == "" {
		opts.HealthPath = DefaultHealthPath
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 2 * time.Minute}
	}

	base := strings.TrimRight(opts.BaseURL, "/")
	return &Client{
		syncURL:   base + opts.SyncPath,
		healthURL: base + opts.HealthPath,
		token:     opts.Token,
		http:      opts.HTTPClient,
	}
}

// Send posts one chunk and decodes the acknowledgement. A 2xx response with
// an empty body counts as accepted.
func (c *Client) Send(ctx context.Context, payload *core.SyncPayload) (*core.SendResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.syncURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return &core.SendResult{Success: true, Processed: len(payload.Records)}, nil
	}

	var result core.SendResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &result, nil
}

// Health probes the remote health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.healthURL, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
}
