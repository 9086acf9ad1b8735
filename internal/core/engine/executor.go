package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quipkit/quipkit/internal/core"
)

// Request is one API call. Form holds body parameters for POST requests.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Form   url.Values
}

// Response is the raw result of a transport call.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Success reports whether the status code is 2xx.
func (r *Response) Success() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Transport sends a request and returns the raw response.
type Transport interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// HTTPTransport sends requests to BaseURL with a bearer token.
type HTTPTransport struct {
	Client    *http.Client
	BaseURL   string
	Token     string
	UserAgent string
}

// DefaultBaseURL is the public automation API endpoint.
const DefaultBaseURL = "https://platform.quip.com"

// Send implements Transport.
func (t *HTTPTransport) Send(ctx context.Context, req *Request) (*Response, error) {
	if t == nil {
		return nil, errors.New("http transport is not configured")
	}
	if req == nil {
		return nil, errors.New("request is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	target, err := t.resolve(req)
	if err != nil {
		return nil, err
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if len(req.Form) > 0 {
		body = strings.NewReader(req.Form.Encode())
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if token := strings.TrimSpace(t.Token); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	if t.UserAgent != "" {
		httpReq.Header.Set("User-Agent", t.UserAgent)
	}

	client := t.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, req.Path, err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func (t *HTTPTransport) resolve(req *Request) (string, error) {
	base := strings.TrimSpace(t.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}

	// Request paths are appended to any path prefix on the base URL.
	target := *parsed
	target.Path = strings.TrimRight(parsed.Path, "/") + "/" + strings.TrimLeft(req.Path, "/")
	target.RawPath = ""
	target.RawQuery = ""
	target.Fragment = ""
	if len(req.Query) > 0 {
		target.RawQuery = req.Query.Encode()
	}
	return target.String(), nil
}

// Executor is the single call path to the network: every request waits on
// the coordinator, is sent through the transport, and reports its rate limit
// headers back.
type Executor struct {
	Transport   Transport
	Coordinator *Coordinator
	Logger      *logging.Logger

	disableAutoLimit bool
}

// NewExecutor returns an executor with automatic rate limiting enabled.
func NewExecutor(transport Transport, coordinator *Coordinator) *Executor {
	if coordinator == nil {
		coordinator = NewCoordinator()
	}
	return &Executor{Transport: transport, Coordinator: coordinator}
}

// SetAutoLimit toggles the pre-request wait. When disabled, callers are
// responsible for invoking Coordinator.Wait themselves.
func (e *Executor) SetAutoLimit(enabled bool) {
	e.disableAutoLimit = !enabled
}

// AutoLimit reports whether the pre-request wait is enabled.
func (e *Executor) AutoLimit() bool {
	return !e.disableAutoLimit
}

// Execute performs req. Non-2xx responses are returned as *core.APIError.
func (e *Executor) Execute(ctx context.Context, req *Request) (*Response, error) {
	if e == nil || e.Transport == nil {
		return nil, errors.New("executor is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if e.AutoLimit() && e.Coordinator != nil {
		if err := e.Coordinator.Wait(ctx); err != nil {
			return nil, err
		}
	}

	requestID := uuid.New().String()
	started := time.Now()

	resp, err := e.Transport.Send(ctx, req)
	if err != nil {
		e.logDebug("api request failed", zap.String("request_id", requestID), zap.String("path", req.Path), zap.Error(err))
		return nil, err
	}

	if e.Coordinator != nil {
		e.Coordinator.UpdateFromHeaders(resp.Header)
	}

	e.logDebug("api request",
		zap.String("request_id", requestID),
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)))

	if !resp.Success() {
		return resp, core.NewAPIError(resp.StatusCode, resp.Body)
	}

	return resp, nil
}

// Do performs req and decodes a JSON body into out. A nil out discards the body.
func (e *Executor) Do(ctx context.Context, req *Request, out any) error {
	resp, err := e.Execute(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.Path, err)
	}
	return nil
}

func (e *Executor) logDebug(msg string, fields ...zap.Field) {
	if e.Logger == nil {
		return
	}
	e.Logger.Debug(msg, fields...)
}
