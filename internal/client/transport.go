package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// DefaultTimeout applies to every exchange, refresh calls included.
	DefaultTimeout = 10 * time.Second

	userAgent       = "bearer-proxy/0.1"
	headerRequestID = "X-Request-ID"
)

// HTTPClient is an interface for making HTTP requests
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewHTTPClient creates the default HTTP client with the given timeout.
func NewHTTPClient(timeout time.Duration) HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
	}
}

// PrepareFunc runs inside the exchange lifecycle, before the request is
// built. The Client uses it for credential handling.
type PrepareFunc func(ctx context.Context, req *Descriptor) error

// Transport performs the network exchange. Every exchange is bracketed by
// Progress.Start and Progress.Done, and every failure comes back as a
// *RequestError.
type Transport struct {
	baseURL    string
	httpClient HTTPClient
	header     http.Header
	progress   Progress
	logger     zerolog.Logger
}

type TransportOption func(*Transport)

func WithHTTPClient(c HTTPClient) TransportOption {
	return func(t *Transport) {
		t.httpClient = c
	}
}

func WithProgress(p Progress) TransportOption {
	return func(t *Transport) {
		t.progress = p
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) TransportOption {
	return func(t *Transport) {
		t.header.Set(key, value)
	}
}

func WithTransportLogger(logger zerolog.Logger) TransportOption {
	return func(t *Transport) {
		t.logger = logger
	}
}

// NewTransport creates a Transport resolving relative URLs against baseURL.
func NewTransport(baseURL string, timeout time.Duration, opts ...TransportOption) *Transport {
	t := &Transport{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: NewHTTPClient(timeout),
		header: http.Header{
			"Accept":           {"application/json, text/plain, */*"},
			"Content-Type":     {"application/json"},
			"X-Requested-With": {"XMLHttpRequest"},
		},
		progress: NopProgress{},
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// BaseURL returns the URL relative request paths are resolved against.
func (t *Transport) BaseURL() string {
	return t.baseURL
}

// Send performs a plain exchange with no preparation step.
func (t *Transport) Send(ctx context.Context, req *Descriptor) (*Response, error) {
	return t.Exchange(ctx, req, nil)
}

// Exchange runs prepare and then sends req. Invalid requests fail with a
// *ConfigError before the lifecycle starts; everything after that settles
// with exactly one Progress.Done.
func (t *Transport) Exchange(ctx context.Context, req *Descriptor, prepare PrepareFunc) (*Response, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	t.progress.Start()
	defer t.progress.Done()

	start := time.Now()
	resp, err := t.exchange(ctx, req, prepare)
	if err != nil {
		reqErr := &RequestError{
			Method:   strings.ToUpper(req.Method),
			URL:      req.URL,
			Canceled: errors.Is(err, context.Canceled),
			Err:      err,
		}
		t.logger.Warn().
			Str("method", reqErr.Method).
			Str("url", req.URL).
			Bool("canceled", reqErr.Canceled).
			Dur("duration", time.Since(start)).
			Err(err).
			Msg("Request failed")
		return nil, reqErr
	}

	t.logger.Debug().
		Str("method", strings.ToUpper(req.Method)).
		Str("url", req.URL).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Request succeeded")
	return resp, nil
}

func (t *Transport) exchange(ctx context.Context, req *Descriptor, prepare PrepareFunc) (*Response, error) {
	var gate *sendGate
	if prepare != nil {
		gate = newSendGate()
		req.sent = gate
		defer gate.open()

		if err := prepare(ctx, req); err != nil {
			return nil, err
		}
		ctx = httptrace.WithClientTrace(ctx, &httptrace.ClientTrace{
			WroteRequest: func(httptrace.WroteRequestInfo) { gate.open() },
		})
	}

	httpReq, err := t.buildRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	httpResp, err := t.httpClient.Do(httpReq)
	// Clients that bypass net/http tracing count as sent once Do returns.
	gate.open()
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	reqID := httpResp.Header.Get(headerRequestID)
	if reqID == "" {
		reqID = httpReq.Header.Get(headerRequestID)
	}

	if httpResp.StatusCode < http.StatusOK || httpResp.StatusCode >= http.StatusMultipleChoices {
		return nil, &HTTPError{
			StatusCode: httpResp.StatusCode,
			RequestID:  reqID,
			Body:       body,
			Err:        classifyStatus(httpResp.StatusCode),
		}
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       body,
		Request:    req,
	}

	if ic := req.Hooks.Interceptor; ic != nil {
		value, err := ic.InterceptResponse(resp)
		if err != nil {
			return nil, fmt.Errorf("intercepting response: %w", err)
		}
		resp.Value = value
	}
	return resp, nil
}

func (t *Transport) buildRequest(ctx context.Context, req *Descriptor) (*http.Request, error) {
	target, err := t.resolve(req.URL, req.Params)
	if err != nil {
		return nil, err
	}

	body, err := encodeBody(req.Body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, strings.ToUpper(req.Method), target, body)
	if err != nil {
		return nil, err
	}

	for key, values := range t.header {
		httpReq.Header[key] = append([]string(nil), values...)
	}
	if body == nil {
		httpReq.Header.Del("Content-Type")
	}
	for key, values := range req.Header {
		httpReq.Header[http.CanonicalHeaderKey(key)] = append([]string(nil), values...)
	}

	if httpReq.Header.Get(headerRequestID) == "" {
		httpReq.Header.Set(headerRequestID, uuid.NewString())
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", userAgent)
	}
	return httpReq, nil
}

// resolve joins a relative path to the base URL and merges params into the
// query string. Repeated keys are kept.
func (t *Transport) resolve(rawURL string, params url.Values) (string, error) {
	target := rawURL
	if !strings.Contains(rawURL, "://") {
		target = t.baseURL + "/" + strings.TrimLeft(rawURL, "/")
	}

	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("parsing URL %q: %w", rawURL, err)
	}

	if len(params) > 0 {
		q := u.Query()
		for key, values := range params {
			for _, v := range values {
				q.Add(key, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func encodeBody(body any) (io.Reader, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return bytes.NewReader(b), nil
	case string:
		return strings.NewReader(b), nil
	case io.Reader:
		return b, nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		return bytes.NewReader(data), nil
	}
}
