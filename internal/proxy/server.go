// Package proxy is an HTTP server that forwards every request to the
// upstream API through the authenticating client, so callers never handle
// tokens themselves.
package proxy

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/dvcrn/bearer-proxy/internal/client"
	"github.com/dvcrn/bearer-proxy/internal/credentials"
	"github.com/rs/zerolog"
)

// StatusClientClosedRequest is reported when the caller went away before the
// upstream answered.
const StatusClientClosedRequest = 499

// hopHeaders are never copied between the inbound and upstream exchanges.
var hopHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
	"Content-Length":      true,
	"Authorization":       true,
	"X-Api-Key":           true,
}

type Server struct {
	client   *client.Client
	store    credentials.Store
	adminKey string
	mux      *http.ServeMux
	logger   zerolog.Logger
}

// New creates the proxy. An empty adminKey disables the admin endpoints.
func New(logger zerolog.Logger, c *client.Client, store credentials.Store, adminKey string) *Server {
	s := &Server{
		client:   c,
		store:    store,
		adminKey: adminKey,
		mux:      http.NewServeMux(),
		logger:   logger,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/health", s.healthHandler)
	s.mux.HandleFunc("/admin/credentials", s.adminMiddleware(s.credentialsHandler))
	s.mux.HandleFunc("/admin/credentials/status", s.adminMiddleware(s.credentialsStatusHandler))
	s.mux.HandleFunc("/admin/credentials/refresh", s.adminMiddleware(s.credentialsRefreshHandler))
	s.mux.HandleFunc("/", s.forwardHandler)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.loggingMiddleware(s.mux).ServeHTTP(w, r)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		s.logger.Debug().
			Str("method", r.Method).
			Str("uri", r.RequestURI).
			Str("remote_addr", r.RemoteAddr).
			Str("user_agent", r.UserAgent()).
			Msg("Incoming request")

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.logger.Info().
			Str("method", r.Method).
			Str("uri", r.RequestURI).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("Finished request")
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status": "ok"}`))
}

// forwardHandler relays the request upstream with the stored credential.
func (s *Server) forwardHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error reading request body")
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	req := &client.Descriptor{
		Method: r.Method,
		URL:    r.URL.Path,
		Params: r.URL.Query(),
		Header: make(http.Header),
	}
	if len(body) > 0 {
		req.Body = body
	}
	copyHeaders(req.Header, r.Header)

	resp, err := s.client.Do(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	copyHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	if _, err := w.Write(resp.Body); err != nil {
		s.logger.Error().Err(err).Msg("Failed to write response body")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var httpErr *client.HTTPError
	var cfgErr *client.ConfigError

	// A failed refresh can carry the refresh endpoint's HTTPError, so the
	// session check comes first.
	switch {
	case client.IsCanceled(err):
		s.logger.Debug().Str("path", r.URL.Path).Msg("Client went away before upstream answered")
		w.WriteHeader(StatusClientClosedRequest)
	case errors.Is(err, client.ErrSessionExpired):
		s.logger.Error().Err(err).Msg("❌ Session expired, login required")
		http.Error(w, "Session expired", http.StatusUnauthorized)
	case errors.As(err, &httpErr):
		s.logger.Warn().
			Int("status_code", httpErr.StatusCode).
			Str("request_id", httpErr.RequestID).
			Str("path", r.URL.Path).
			Msg("Received error response from upstream API")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(httpErr.StatusCode)
		_, _ = w.Write(httpErr.Body)
	case errors.As(err, &cfgErr):
		http.Error(w, cfgErr.Error(), http.StatusBadRequest)
	default:
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("Upstream request failed")
		http.Error(w, "Bad gateway", http.StatusBadGateway)
	}
}

func copyHeaders(dst, src http.Header) {
	for key, values := range src {
		if hopHeaders[http.CanonicalHeaderKey(key)] {
			continue
		}
		dst[key] = append([]string(nil), values...)
	}
}
