package mockapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dvcrn/bearer-proxy/internal/auth"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestServer(t *testing.T) (*Server, *clock) {
	t.Helper()
	c := &clock{now: time.Now()}
	s := New(Config{
		Username:  "admin",
		Password:  "admin123",
		Secret:    "test-secret",
		AccessTTL: time.Minute,
		Now:       c.Now,
	}, zerolog.Nop())
	return s, c
}

func do(t *testing.T, h http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, s *Server) auth.UserData {
	t.Helper()

	rec := do(t, s, http.MethodPost, "/login", auth.LoginRequest{Username: "admin", Password: "admin123"}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var env auth.Envelope[auth.UserData]
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	require.True(t, env.Success)
	return env.Data
}

func TestLogin(t *testing.T) {
	s, c := newTestServer(t)

	user := login(t, s)
	assert.Equal(t, "admin", user.Username)
	assert.NotEmpty(t, user.AccessToken)
	assert.NotEmpty(t, user.RefreshToken)
	assert.Equal(t, c.Now().Add(time.Minute).Truncate(time.Second).UnixMilli(), user.Expires.Millis())
	assert.Equal(t, int64(1), s.Logins())

	exp, err := auth.ExpiryFromJWT(user.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.Expires.Millis(), exp)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/login", auth.LoginRequest{Username: "admin", Password: "nope"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"invalid username or password","data":null}`, rec.Body.String())
	assert.Equal(t, int64(0), s.Logins())
}

func TestAsyncRoutesRequiresValidToken(t *testing.T) {
	s, c := newTestServer(t)
	user := login(t, s)

	rec := do(t, s, http.MethodGet, "/get-async-routes", nil, user.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)

	var env auth.Envelope[[]Route]
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	assert.Equal(t, "/permission", env.Data[0].Path)

	rec = do(t, s, http.MethodGet, "/get-async-routes", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, s, http.MethodGet, "/get-async-routes", nil, "garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	c.Advance(2 * time.Minute)
	rec = do(t, s, http.MethodGet, "/get-async-routes", nil, user.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "access token expired")
	assert.Equal(t, int64(3), s.Rejected())
}

func TestRefreshRotatesToken(t *testing.T) {
	s, c := newTestServer(t)
	user := login(t, s)
	c.Advance(2 * time.Minute)

	rec := do(t, s, http.MethodPost, "/refresh-token", auth.RefreshRequest{RefreshToken: user.RefreshToken}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var env auth.Envelope[auth.TokenData]
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	assert.NotEqual(t, user.RefreshToken, env.Data.RefreshToken)
	assert.Equal(t, int64(1), s.Refreshes())

	rec = do(t, s, http.MethodGet, "/get-async-routes", nil, env.Data.AccessToken)
	assert.Equal(t, http.StatusOK, rec.Code)

	// The old refresh token is single-use.
	rec = do(t, s, http.MethodPost, "/refresh-token", auth.RefreshRequest{RefreshToken: user.RefreshToken}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, int64(1), s.Refreshes())
}

func TestRefreshRequiresToken(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/refresh-token", auth.RefreshRequest{}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/login", nil, "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
