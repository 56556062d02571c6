package client

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
)

const headerAuthorization = "Authorization"

// supportedMethods are the HTTP methods a Descriptor may carry.
var supportedMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodDelete:  true,
	http.MethodPatch:   true,
	http.MethodOptions: true,
	http.MethodHead:    true,
}

// Descriptor describes one outbound request. Header is mutable until the
// request reaches the Transport; credentials are injected into it.
type Descriptor struct {
	Method string
	// URL is either absolute or a path resolved against the Transport base URL.
	URL    string
	Params url.Values
	// Body is sent as-is for []byte, string and io.Reader, JSON-encoded otherwise.
	Body   any
	Header http.Header
	Hooks  Hooks

	// sent is installed by the Transport for the duration of one exchange.
	sent *sendGate
}

// sendGate opens once the request has been written upstream, or once its
// exchange ends without sending.
type sendGate struct {
	once sync.Once
	ch   chan struct{}
}

func newSendGate() *sendGate {
	return &sendGate{ch: make(chan struct{})}
}

func (g *sendGate) open() {
	if g == nil {
		return
	}
	g.once.Do(func() { close(g.ch) })
}

func (g *sendGate) done() <-chan struct{} {
	if g == nil {
		return nil
	}
	return g.ch
}

// Response is a successful (2xx) exchange.
type Response struct {
	StatusCode int
	Header     http.Header
	// Body is the payload with the transport envelope stripped.
	Body    []byte
	Request *Descriptor
	// Value is what the response interceptor returned, if it returned anything.
	Value any
}

// FormatToken renders an access token as an Authorization header value.
func FormatToken(token string) string {
	return "Bearer " + token
}

func (d *Descriptor) setAuthorization(token string) {
	if d.Header == nil {
		d.Header = make(http.Header)
	}
	d.Header.Set(headerAuthorization, FormatToken(token))
}

// clone copies the descriptor so the caller's header map is never mutated
// from another goroutine.
func (d *Descriptor) clone() *Descriptor {
	c := *d
	c.Method = strings.ToUpper(d.Method)
	c.Header = d.Header.Clone()
	c.sent = nil
	if c.Header == nil {
		c.Header = make(http.Header)
	}
	return &c
}

func (d *Descriptor) validate() error {
	if d == nil {
		return &ConfigError{Msg: "nil request"}
	}
	if d.Method == "" {
		return &ConfigError{Msg: "request method is required"}
	}
	if !supportedMethods[strings.ToUpper(d.Method)] {
		return &ConfigError{Msg: "unsupported request method " + d.Method}
	}
	if d.URL == "" {
		return &ConfigError{Msg: "request URL is required"}
	}
	return nil
}
