// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api is the HTTP client for the StarMind chat backend.
//
// The backend authenticates with a session cookie. The client keeps it in a
// cookie jar and exposes it through Token/SetToken so callers can persist
// it across restarts.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Configuration constants.
const (
	// DefaultTimeout bounds each request. Chat replies from the upstream
	// model can be slow.
	DefaultTimeout = 120 * time.Second

	// MaxResponseSize is the maximum accepted response body.
	MaxResponseSize = 4 * 1024 * 1024

	// TokenCookie is the backend's session cookie name.
	TokenCookie = "starmind_token"

	instrumentationName = "github.com/starmind/starmind-tui/internal/api"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrUnreachable wraps transport failures: the backend could not be reached
// or the connection broke before a response arrived.
var ErrUnreachable = errors.New("server unreachable")

// StatusError is a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
	}
	return fmt.Sprintf("HTTP %d", e.Code)
}

// Text is what the UI shows for the failure: the body when present,
// otherwise the numeric status.
func (e *StatusError) Text() string {
	if body := strings.TrimSpace(e.Body); body != "" {
		return body
	}
	return strconv.Itoa(e.Code)
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusUnauthorized
}

// =============================================================================
// WIRE TYPES
// =============================================================================

type loginRequest struct {
	User     string `json:"user"`
	Password string `json:"password"`
	Code     string `json:"code,omitempty"`
}

// LoginResponse is the body of a successful login.
type LoginResponse struct {
	OK        bool `json:"ok"`
	ExpiresIn int  `json:"expiresIn"`
}

type chatRequest struct {
	Message string `json:"message"`
}

// chatResponse is the subset of the completion shape the client reads.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to one StarMind backend.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	log        *zap.Logger

	tracer   trace.Tracer
	requests metric.Int64Counter
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithLogger sets the logger. Request bodies are never logged.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithHTTPClient replaces the transport. Its jar is replaced by the
// client's own.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			jar := c.httpClient.Jar
			c.httpClient = hc
			c.httpClient.Jar = jar
		}
	}
}

// NewClient creates a client for baseURL, e.g. "http://127.0.0.1:8090".
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server URL %q: scheme must be http or https", baseURL)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: DefaultTimeout, Jar: jar},
		log:        zap.NewNop(),
		tracer:     otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.requests, _ = otel.Meter(instrumentationName).Int64Counter("starmind.api.requests",
		metric.WithDescription("Requests made to the StarMind backend"))
	return c, nil
}

// BaseURL returns the backend URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// =============================================================================
// ENDPOINTS
// =============================================================================

// Me checks whether the current session is authenticated.
func (c *Client) Me(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/api/me", nil)
	return err
}

// Login authenticates and stores the session cookie. code is the optional
// one-time password.
func (c *Client) Login(ctx context.Context, user, password, code string) (*LoginResponse, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/login", loginRequest{User: user, Password: password, Code: code})
	if err != nil {
		return nil, err
	}
	var resp LoginResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse login response: %w", err)
	}
	return &resp, nil
}

// Chat sends one user message and returns the assistant reply. A 2xx
// response without reply content yields "".
func (c *Client) Chat(ctx context.Context, message string) (string, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/chat", chatRequest{Message: message})
	if err != nil {
		return "", err
	}
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		c.log.Debug("unparseable chat response", zap.Error(err))
		return "", nil
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// Clear resets the backend's conversational context for this session.
func (c *Client) Clear(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/api/clear", struct{}{})
	return err
}

// Logout revokes the session. The local cookie is dropped even when the
// request fails.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/api/logout", struct{}{})
	c.SetToken("")
	return err
}

// =============================================================================
// TOKEN
// =============================================================================

// Token returns the session cookie value, or "".
func (c *Client) Token() string {
	for _, ck := range c.httpClient.Jar.Cookies(c.baseURL) {
		if ck.Name == TokenCookie {
			return ck.Value
		}
	}
	return ""
}

// SetToken installs a session cookie. An empty token removes it.
func (c *Client) SetToken(token string) {
	ck := &http.Cookie{Name: TokenCookie, Value: token, Path: "/"}
	if token == "" {
		ck.MaxAge = -1
	}
	c.httpClient.Jar.SetCookies(c.baseURL, []*http.Cookie{ck})
}

// =============================================================================
// TRANSPORT
// =============================================================================

// do performs one request. payload nil sends no body.
func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, method+" "+path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.request.method", method), attribute.String("url.path", path)))
	defer span.End()

	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record(ctx, path, "error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		c.log.Debug("api request failed", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		c.record(ctx, path, "error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "read")
		return nil, fmt.Errorf("%w: failed to read response: %w", ErrUnreachable, err)
	}

	status := strconv.Itoa(resp.StatusCode)
	c.record(ctx, path, status)
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	c.log.Debug("api request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		span.SetStatus(codes.Error, status)
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

func (c *Client) record(ctx context.Context, path, status string) {
	if c.requests == nil {
		return
	}
	c.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("path", path), attribute.String("status", status)))
}
