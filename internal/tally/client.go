// Package tally extracts table exports from the Tally XML server.
package tally

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/OnlyOnCloud/TallySyncService/internal/core"
	"github.com/OnlyOnCloud/TallySyncService/internal/logging"
)

// DefaultTimeout bounds one export request when Options.Timeout is zero.
const DefaultTimeout = 60 * time.Second

// maxResponseSize caps a single export body.
const maxResponseSize = 512 << 20

// Options configures a Client.
type Options struct {
	// URL of the Tally XML server, e.g. http://localhost:9000.
	URL string

	// Company selects the loaded company; empty uses the active one.
	Company string

	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client implements core.Extractor against a running Tally instance.
type Client struct {
	url     string
	company string
	http    *http.Client
	logger  *slog.Logger
}

var _ core.Extractor = (*Client)(nil)

// New creates a Client. It panics if URL is empty.
func New(opts Options) *Client {
	if opts.URL == "" {
		panic("tally: URL must not be empty")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{
		url:     opts.URL,
		company: opts.Company,
		http:    opts.HTTPClient,
		logger:  opts.Logger,
	}
}

// Extract requests the export of one table. A nil window requests every record.
// Responses the server produced but that carry no export (error envelopes,
// HTML pages) are reported as core.ErrSourceRejected.
func (c *Client) Extract(ctx context.Context, def core.TableDefinition, window *core.DateRange) ([]byte, error) {
	reqBody, err := buildRequest(def, c.company, window)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(body) > maxResponseSize {
		return nil, fmt.Errorf("%w: response exceeds %d bytes", core.ErrSourceRejected, maxResponseSize)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", core.ErrSourceRejected, resp.StatusCode)
	}

	out, err := decodeResponse(body)
	if err != nil {
		return nil, err
	}

	logging.Enrich(c.logger, ctx).Debug("export received",
		"collection", def.Info.Collection,
		"bytes", len(out),
		"windowed", window != nil,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return out, nil
}
