// Package remote is the HTTP client of the sync endpoint.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/time/rate"

	"raccolta/internal/core/apperror"
	"raccolta/internal/domain/counter"
	"raccolta/internal/domain/syncer"
	"raccolta/pkg/logger"
)

// Endpoint paths.
const (
	PathSyncOrder    = "/raccolta/sync_order"
	PathSyncPicking  = "/raccolta/sync_picking"
	PathSyncDdt      = "/raccolta/sync_ddt"
	PathSyncCounters = "/raccolta/sync_counters"
	PathPing         = "/api/ping"
)

// maxResponseBody bounds how much of a response is read.
const maxResponseBody = 4 << 20

// Config configures the client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// Compress gzips request bodies.
	Compress bool
	// RequestsPerSecond paces outbound calls; zero disables pacing.
	RequestsPerSecond float64
	Burst             int
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:           baseURL,
		Timeout:           30 * time.Second,
		Compress:          true,
		RequestsPerSecond: 10,
		Burst:             1,
	}
}

// Client talks JSON to the sync endpoint.
type Client struct {
	baseURL  string
	http     *http.Client
	limiter  *rate.Limiter
	compress bool
	log      *logger.Logger
}

var (
	_ syncer.Remote  = (*Client)(nil)
	_ counter.Remote = (*Client)(nil)
)

// New creates a client. A nil httpClient gets one with cfg.Timeout.
func New(cfg Config, httpClient *http.Client, log *logger.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if log == nil {
		log = logger.Default()
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		http:     httpClient,
		limiter:  limiter,
		compress: cfg.Compress,
		log:      log.WithComponent("remote"),
	}
}

// SyncOrder implements syncer.Remote.
func (c *Client) SyncOrder(ctx context.Context, req syncer.OrderRequest) (syncer.DocumentResponse, error) {
	var resp syncer.DocumentResponse
	err := c.post(ctx, PathSyncOrder, req, &resp)
	return resp, err
}

// SyncPicking implements syncer.Remote.
func (c *Client) SyncPicking(ctx context.Context, req syncer.PickingRequest) (syncer.DocumentResponse, error) {
	var resp syncer.DocumentResponse
	err := c.post(ctx, PathSyncPicking, req, &resp)
	return resp, err
}

// SyncDeliveryNote implements syncer.Remote.
func (c *Client) SyncDeliveryNote(ctx context.Context, req syncer.DeliveryNoteRequest) (syncer.DocumentResponse, error) {
	var resp syncer.DocumentResponse
	err := c.post(ctx, PathSyncDdt, req, &resp)
	return resp, err
}

// SyncCounters implements counter.Remote.
func (c *Client) SyncCounters(ctx context.Context, req counter.SyncRequest) (counter.SyncResponse, error) {
	var resp counter.SyncResponse
	err := c.post(ctx, PathSyncCounters, req, &resp)
	return resp, err
}

// Ping checks that the endpoint answers. It is not paced.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+PathPing, nil)
	if err != nil {
		return apperror.NewInternal(err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return apperror.NewSync("remote unreachable", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 300 {
		return apperror.NewSync(fmt.Sprintf("ping returned HTTP %d", resp.StatusCode), nil)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return apperror.NewSync("request cancelled", err)
	}

	body, err := c.encode(in)
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("encode %s: %w", path, err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return apperror.NewInternal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.compress {
		req.Header.Set("Content-Encoding", "gzip")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.WithContext(ctx).Debugw("request failed", "path", path, "error", err)
		return apperror.NewSync("remote unreachable", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return apperror.NewSync("read response", err)
	}
	c.log.WithContext(ctx).Debugw("request done",
		"path", path, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperror.NewSync(statusMessage(resp.StatusCode, data), nil).
			WithDetail("status", resp.StatusCode).
			WithDetail("path", path)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperror.NewSync("invalid response body", err)
	}
	return nil
}

func (c *Client) encode(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if !c.compress {
		return raw, nil
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// statusMessage prefers the server's own error text.
func statusMessage(status int, body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if payload.Error != "" {
			return fmt.Sprintf("HTTP %d: %s", status, payload.Error)
		}
		if payload.Message != "" {
			return fmt.Sprintf("HTTP %d: %s", status, payload.Message)
		}
	}
	return fmt.Sprintf("HTTP %d", status)
}
