package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"
)

// Client is the entry point for callers. It routes every request through the
// Dispatcher, unless a RequestCustomizer takes over, and then the Transport.
type Client struct {
	transport  *Transport
	dispatcher *Dispatcher
	hooks      Hooks
	logger     zerolog.Logger
}

type Option func(*Client)

// WithDefaultHooks sets process-wide hooks used when a request has none.
func WithDefaultHooks(h Hooks) Option {
	return func(c *Client) {
		c.hooks = h
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a Client. A nil dispatcher disables credential handling.
func New(transport *Transport, dispatcher *Dispatcher, opts ...Option) (*Client, error) {
	if transport == nil {
		return nil, &ConfigError{Msg: "transport is required"}
	}

	c := &Client{
		transport:  transport,
		dispatcher: dispatcher,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Dispatcher returns the dispatcher the client authorizes requests with.
func (c *Client) Dispatcher() *Dispatcher {
	return c.dispatcher
}

// Do sends req. The caller's descriptor is copied, so its header map is left
// untouched; Response.Request holds the headers that were actually sent.
func (c *Client) Do(ctx context.Context, req *Descriptor) (*Response, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	r := req.clone()
	r.Hooks = r.Hooks.withDefaults(c.hooks)
	return c.transport.Exchange(ctx, r, c.prepare)
}

func (c *Client) prepare(ctx context.Context, req *Descriptor) error {
	if req.Hooks.Customizer != nil {
		c.logger.Debug().Str("url", req.URL).Msg("Request customizer set, skipping credential handling")
		return req.Hooks.Customizer.CustomizeRequest(req)
	}
	if c.dispatcher == nil {
		return nil
	}
	return c.dispatcher.Authorize(ctx, req)
}

// Config carries per-call options for Request, Get and Post.
type Config struct {
	Header http.Header
	Body   any
	Hooks  Hooks
}

// Request sends a request and decodes the JSON payload into T. If a response
// interceptor returned a value of type T, that value is returned instead.
func Request[T any](ctx context.Context, c *Client, method, rawURL string, params url.Values, cfg *Config) (T, error) {
	var zero T

	req := &Descriptor{Method: method, URL: rawURL, Params: params}
	if cfg != nil {
		req.Header = cfg.Header
		req.Body = cfg.Body
		req.Hooks = cfg.Hooks
	}

	resp, err := c.Do(ctx, req)
	if err != nil {
		return zero, err
	}
	return Decode[T](resp)
}

// Get sends a GET with params as the query string.
func Get[T any](ctx context.Context, c *Client, rawURL string, params url.Values, cfg *Config) (T, error) {
	return Request[T](ctx, c, http.MethodGet, rawURL, params, cfg)
}

// Post sends body as a JSON POST. A body in cfg is overridden.
func Post[T any](ctx context.Context, c *Client, rawURL string, body any, cfg *Config) (T, error) {
	merged := Config{Body: body}
	if cfg != nil {
		merged.Header = cfg.Header
		merged.Hooks = cfg.Hooks
	}
	return Request[T](ctx, c, http.MethodPost, rawURL, nil, &merged)
}

// Decode returns the interceptor value when it is a T and otherwise decodes
// the payload into T. []byte and string targets get the raw payload.
func Decode[T any](resp *Response) (T, error) {
	var out T

	if resp.Value != nil {
		if v, ok := resp.Value.(T); ok {
			return v, nil
		}
		return out, fmt.Errorf("client: interceptor returned %T, want %T", resp.Value, out)
	}

	switch p := any(&out).(type) {
	case *[]byte:
		*p = resp.Body
		return out, nil
	case *string:
		*p = string(resp.Body)
		return out, nil
	}

	if len(resp.Body) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return out, fmt.Errorf("client: decoding response: %w", err)
	}
	return out, nil
}
