// Package quip provides typed wrappers for the thread, folder, user and
// message endpoints. Every wrapper goes through one engine.Executor, so rate
// limiting and error translation are shared by composition.
package quip

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/fulmenhq/gofulmen/logging"

	"github.com/quipkit/quipkit/internal/core/engine"
)

// Options configures a Client.
type Options struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Timeout    time.Duration
	UserAgent  string

	// Classifier routes rate limit headers to a window; nil uses the minute window.
	Classifier engine.WindowClassifier

	// DisableAutoLimit turns off the pre-request wait.
	DisableAutoLimit bool

	// MaxPages bounds ThreadHTML pagination; zero means unbounded.
	MaxPages int

	Logger *logging.Logger
}

// Client is an API client bound to one token. Its coordinator is never
// shared with other clients.
type Client struct {
	Executor    *engine.Executor
	Coordinator *engine.Coordinator
	Paginator   engine.Paginator
}

// New builds a client backed by HTTPTransport.
func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	transport := &engine.HTTPTransport{
		Client:    httpClient,
		BaseURL:   opts.BaseURL,
		Token:     opts.Token,
		UserAgent: opts.UserAgent,
	}

	return NewWithTransport(transport, opts)
}

// NewWithTransport builds a client over an arbitrary transport.
func NewWithTransport(transport engine.Transport, opts Options) *Client {
	coordinator := engine.NewCoordinator()
	if opts.Classifier != nil {
		coordinator.Classifier = opts.Classifier
	}

	executor := engine.NewExecutor(transport, coordinator)
	executor.SetAutoLimit(!opts.DisableAutoLimit)
	executor.Logger = opts.Logger

	return &Client{
		Executor:    executor,
		Coordinator: coordinator,
		Paginator:   engine.Paginator{MaxPages: opts.MaxPages},
	}
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Executor.Do(ctx, &engine.Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

func (c *Client) post(ctx context.Context, path string, form url.Values, out any) error {
	return c.Executor.Do(ctx, &engine.Request{Method: http.MethodPost, Path: path, Form: form}, out)
}
