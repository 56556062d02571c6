// Package mockapi is a small authentication backend for local development and
// tests. It issues short-lived JWT access tokens and single-use refresh
// tokens, so a client that refreshes twice with the same token is caught.
package mockapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dvcrn/bearer-proxy/internal/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

const defaultAccessTTL = 2 * time.Minute

// Config configures the mock backend.
type Config struct {
	Username  string
	Password  string
	Secret    string
	AccessTTL time.Duration
	// Now overrides time.Now, for tests.
	Now func() time.Time
}

// Route is one entry of the async route table.
type Route struct {
	Path     string    `json:"path"`
	Name     string    `json:"name,omitempty"`
	Meta     RouteMeta `json:"meta"`
	Children []Route   `json:"children,omitempty"`
}

type RouteMeta struct {
	Title string   `json:"title"`
	Icon  string   `json:"icon,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// Server is the mock backend.
type Server struct {
	cfg    Config
	tokens *tokenIssuer
	logger zerolog.Logger
	router *mux.Router

	mu            sync.Mutex
	refreshTokens map[string]string // refresh token -> username

	logins    atomic.Int64
	refreshes atomic.Int64
	rejected  atomic.Int64
}

func New(cfg Config, logger zerolog.Logger) *Server {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = defaultAccessTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := &Server{
		cfg: cfg,
		tokens: &tokenIssuer{
			secret: []byte(cfg.Secret),
			ttl:    cfg.AccessTTL,
			now:    cfg.Now,
		},
		logger:        logger,
		refreshTokens: make(map[string]string),
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/refresh-token", s.handleRefresh).Methods(http.MethodPost)
	r.HandleFunc("/get-async-routes", s.requireAuth(s.handleAsyncRoutes)).Methods(http.MethodGet)
	s.router = r

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Logins returns the number of successful logins.
func (s *Server) Logins() int64 { return s.logins.Load() }

// Refreshes returns the number of successful refresh calls.
func (s *Server) Refreshes() int64 { return s.refreshes.Load() }

// Rejected returns the number of requests turned away with 401.
func (s *Server) Rejected() int64 { return s.rejected.Load() }

// AccessTTL is the lifetime of issued access tokens.
func (s *Server) AccessTTL() time.Duration { return s.cfg.AccessTTL }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Username != s.cfg.Username || req.Password != s.cfg.Password {
		s.logger.Warn().Str("username", req.Username).Msg("Login rejected")
		s.fail(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	tokens, err := s.issue(req.Username)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.logins.Add(1)
	s.logger.Info().Str("username", req.Username).Msg("✅ Login successful")
	writeJSON(w, http.StatusOK, auth.Envelope[auth.UserData]{
		Success: true,
		Data: auth.UserData{
			Username:  req.Username,
			Nickname:  req.Username,
			Roles:     []string{"admin"},
			TokenData: tokens,
		},
	})
}

// handleRefresh rotates the refresh token: the presented one stops working.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req auth.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		s.fail(w, http.StatusBadRequest, "refreshToken is required")
		return
	}

	s.mu.Lock()
	username, ok := s.refreshTokens[req.RefreshToken]
	delete(s.refreshTokens, req.RefreshToken)
	s.mu.Unlock()

	if !ok {
		s.logger.Warn().Msg("Refresh with unknown or reused refresh token")
		s.fail(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	tokens, err := s.issue(username)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.refreshes.Add(1)
	s.logger.Info().Str("username", username).Int64("refreshes", s.refreshes.Load()).Msg("🔄 Token refreshed")
	writeJSON(w, http.StatusOK, auth.Envelope[auth.TokenData]{Success: true, Data: tokens})
}

func (s *Server) handleAsyncRoutes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, auth.Envelope[[]Route]{Success: true, Data: asyncRoutes})
}

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			s.fail(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		if _, err := s.tokens.verify(token); err != nil {
			msg := "invalid access token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "access token expired"
			}
			s.logger.Debug().Err(err).Str("path", r.URL.Path).Msg("Rejected bearer token")
			s.fail(w, http.StatusUnauthorized, msg)
			return
		}
		next(w, r)
	}
}

func (s *Server) issue(username string) (auth.TokenData, error) {
	access, exp, err := s.tokens.issue(username, []string{"admin"})
	if err != nil {
		return auth.TokenData{}, err
	}

	refresh := uuid.NewString()
	s.mu.Lock()
	s.refreshTokens[refresh] = username
	s.mu.Unlock()

	return auth.TokenData{
		AccessToken:  access,
		RefreshToken: refresh,
		Expires:      auth.Expiry{Time: exp},
	}, nil
}

func (s *Server) fail(w http.ResponseWriter, status int, msg string) {
	if status == http.StatusUnauthorized {
		s.rejected.Add(1)
	}
	writeJSON(w, status, auth.Envelope[any]{Success: false, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var asyncRoutes = []Route{
	{
		Path: "/permission",
		Meta: RouteMeta{Title: "Permissions", Icon: "lollipop"},
		Children: []Route{
			{Path: "/permission/page/index", Name: "PermissionPage", Meta: RouteMeta{Title: "Page permissions", Roles: []string{"admin", "common"}}},
			{Path: "/permission/button/index", Name: "PermissionButton", Meta: RouteMeta{Title: "Button permissions", Roles: []string{"admin", "common"}}},
		},
	},
}
