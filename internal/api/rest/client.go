// Package rest implements the backend services over JSON/HTTP.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"nbbang/internal/api"
)

const maxErrorBody = 64 << 10

// Config holds client settings.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	// HTTPClient overrides the default pooled client.
	HTTPClient *http.Client
}

// Client talks to the backend REST API.
type Client struct {
	baseURL *url.URL
	token   string
	http    *http.Client
	logger  *slog.Logger
}

var (
	_ api.GroupService      = (*Client)(nil)
	_ api.ExpenseService    = (*Client)(nil)
	_ api.SettlementService = (*Client)(nil)
	_ api.VoteService       = (*Client)(nil)
)

// New validates cfg and builds a client.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("missing base URL")
	}
	u, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported base URL scheme %q", u.Scheme)
	}
	if logger == nil {
		logger = slog.Default()
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = newHTTPClientWithPooling(cfg.Timeout)
	}
	return &Client{baseURL: u, token: cfg.Token, http: hc, logger: logger}, nil
}

func newHTTPClientWithPooling(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// do sends one request. body and out may be nil.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return &api.Error{Op: op, Kind: api.ErrInvalid, Err: fmt.Errorf("encode request: %w", err)}
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return &api.Error{Op: op, Kind: api.ErrInvalid, Err: err}
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "API request failed",
			"operation", op, "request_id", requestID, "error", err)
		return &api.Error{Op: op, Kind: api.ErrUnavailable, Err: err}
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "API request",
		"operation", op,
		"method", method,
		"path", path,
		"status_code", resp.StatusCode,
		"request_id", requestID,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode >= 300 {
		return decodeError(op, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &api.Error{Op: op, Kind: api.ErrUnavailable, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func decodeError(op string, resp *http.Response) error {
	var eb errorBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if len(raw) > 0 {
		if json.Unmarshal(raw, &eb) != nil {
			eb.Message = strings.TrimSpace(string(raw))
		}
	}

	e := &api.Error{Op: op, Status: resp.StatusCode, Message: eb.Message}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		e.Kind = api.ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		e.Kind = api.ErrConflict
		e.Conflict = api.Conflict(eb.Code)
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		e.Kind = api.ErrUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		e.Kind = api.ErrUnavailable
	default:
		e.Kind = api.ErrInvalid
	}
	return e
}

func esc(id string) string {
	return url.PathEscape(id)
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}
