package proxy

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dvcrn/bearer-proxy/internal/auth"
	"github.com/dvcrn/bearer-proxy/internal/client"
	"github.com/dvcrn/bearer-proxy/internal/credentials"
	"github.com/dvcrn/bearer-proxy/internal/mockapi"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAdminKey = "admin-key"

type fixture struct {
	proxy    *Server
	upstream *mockapi.Server
	client   *client.Client
	store    *credentials.MemoryStore
}

func newFixture(t *testing.T, adminKey string) *fixture {
	t.Helper()

	upstream := mockapi.New(mockapi.Config{
		Username:  "admin",
		Password:  "admin123",
		Secret:    "test-secret",
		AccessTTL: time.Minute,
	}, zerolog.Nop())
	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	store := credentials.NewMemoryStore(nil)
	tr := client.NewTransport(srv.URL, 5*time.Second)
	d := client.NewDispatcher(store, auth.NewHTTPRefresher(tr, ""))
	c, err := client.New(tr, d)
	require.NoError(t, err)

	return &fixture{
		proxy:    New(zerolog.Nop(), c, store, adminKey),
		upstream: upstream,
		client:   c,
		store:    store,
	}
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	_, err := auth.Login(context.Background(), f.client, f.store, "admin", "admin123")
	require.NoError(t, err)
}

// expire marks the stored access token as expired without touching the
// refresh token.
func (f *fixture) expire(t *testing.T) {
	t.Helper()
	rec, err := f.store.Read(context.Background())
	require.NoError(t, err)
	rec.ExpiresAt = time.Now().Add(-time.Second).UnixMilli()
	require.NoError(t, f.store.Write(context.Background(), *rec))
}

func serve(h http.Handler, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func adminHeader() http.Header {
	return http.Header{"X-Api-Key": {testAdminKey}}
}

func TestHealth(t *testing.T) {
	f := newFixture(t, "")

	rec := serve(f.proxy, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = serve(f.proxy, http.MethodPost, "/health", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestForwardWithoutCredentialsRelaysUpstreamStatus(t *testing.T) {
	f := newFixture(t, "")

	rec := serve(f.proxy, http.MethodGet, "/get-async-routes", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing bearer token")
}

func TestForwardAttachesCredential(t *testing.T) {
	f := newFixture(t, "")
	f.login(t)

	// Inbound credentials are stripped and replaced with the stored one.
	rec := serve(f.proxy, http.MethodGet, "/get-async-routes", "", http.Header{"Authorization": {"Bearer bogus"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var env auth.Envelope[[]mockapi.Route]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.True(t, env.Success)
	assert.NotEmpty(t, env.Data)
}

func TestForwardConcurrentExpiredRefreshesOnce(t *testing.T) {
	const n = 12

	f := newFixture(t, "")
	f.login(t)
	f.expire(t)

	srv := httptest.NewServer(f.proxy)
	defer srv.Close()

	var wg sync.WaitGroup
	codes := make(chan int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := http.Get(srv.URL + "/get-async-routes")
			if !assert.NoError(t, err) {
				codes <- 0
				return
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			codes <- resp.StatusCode
		}()
	}
	wg.Wait()
	close(codes)

	for code := range codes {
		assert.Equal(t, http.StatusOK, code)
	}
	assert.Equal(t, int64(1), f.upstream.Refreshes())
}

func TestForwardSessionExpired(t *testing.T) {
	f := newFixture(t, "")
	require.NoError(t, f.store.Write(context.Background(), credentials.Record{
		AccessToken:  "old",
		RefreshToken: "revoked",
		ExpiresAt:    time.Now().Add(-time.Minute).UnixMilli(),
	}))

	rec := serve(f.proxy, http.MethodGet, "/get-async-routes", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Session expired")
}

func TestForwardUnsupportedMethod(t *testing.T) {
	f := newFixture(t, "")

	rec := serve(f.proxy, "BREW", "/coffee", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestForwardUpstreamUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c, err := client.New(client.NewTransport(base, time.Second), nil)
	require.NoError(t, err)
	p := New(zerolog.Nop(), c, credentials.NewMemoryStore(nil), "")

	rec := serve(p, http.MethodGet, "/anything", "", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestForwardCanceledClient(t *testing.T) {
	f := newFixture(t, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/get-async-routes", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	f.proxy.ServeHTTP(rec, req)

	assert.Equal(t, StatusClientClosedRequest, rec.Code)
}

func TestAdminRequiresKey(t *testing.T) {
	f := newFixture(t, testAdminKey)

	rec := serve(f.proxy, http.MethodGet, "/admin/credentials/status", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(f.proxy, http.MethodGet, "/admin/credentials/status", "", http.Header{"Authorization": {"Token abc"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(f.proxy, http.MethodGet, "/admin/credentials/status", "", http.Header{"Authorization": {"Bearer wrong"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(f.proxy, http.MethodGet, "/admin/credentials/status", "", http.Header{"Authorization": {"Bearer " + testAdminKey}})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminKeyFrom(t *testing.T) {
	tests := []struct {
		name    string
		header  http.Header
		want    string
		wantErr error
	}{
		{"bearer", http.Header{"Authorization": {"Bearer k1"}}, "k1", nil},
		{"bearer scheme is case-insensitive", http.Header{"Authorization": {"bearer k1"}}, "k1", nil},
		{"x-api-key", http.Header{"X-Api-Key": {"k2"}}, "k2", nil},
		{"authorization wins", http.Header{"Authorization": {"Bearer k1"}, "X-Api-Key": {"k2"}}, "k1", nil},
		{"wrong scheme", http.Header{"Authorization": {"Basic k1"}}, "", errAdminKeyFormat},
		{"extra fields", http.Header{"Authorization": {"Bearer k1 k2"}}, "", errAdminKeyFormat},
		{"empty key", http.Header{"Authorization": {"Bearer "}}, "", errAdminKeyFormat},
		{"missing", http.Header{}, "", errAdminKeyMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/admin/credentials/status", nil)
			r.Header = tt.header

			got, err := adminKeyFrom(r)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAdminNotConfigured(t *testing.T) {
	f := newFixture(t, "")

	rec := serve(f.proxy, http.MethodGet, "/admin/credentials/status", "", adminHeader())
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAdminSetAndStatus(t *testing.T) {
	f := newFixture(t, testAdminKey)

	rec := serve(f.proxy, http.MethodGet, "/admin/credentials/status", "", adminHeader())
	assert.JSONEq(t, `{"hasCredentials":false}`, rec.Body.String())

	expires := time.Now().Add(90 * time.Minute).UnixMilli()
	body := `{"accessToken":"at","refreshToken":"rt","expires":` + jsonInt(expires) + `,"userID":"u1"}`
	rec = serve(f.proxy, http.MethodPost, "/admin/credentials", body, adminHeader())
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := f.store.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "at", stored.AccessToken)

	rec = serve(f.proxy, http.MethodGet, "/admin/credentials/status", "", adminHeader())
	var status map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, true, status["hasCredentials"])
	assert.Equal(t, "u1", status["userID"])
	assert.Equal(t, false, status["isExpired"])
	assert.InDelta(t, 89, status["minutesUntilExpiry"], 1)

	rec = serve(f.proxy, http.MethodPost, "/admin/credentials", `{"refreshToken":"rt"}`, adminHeader())
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(f.proxy, http.MethodGet, "/admin/credentials", "", adminHeader())
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAdminReadOnlyStore(t *testing.T) {
	c, err := client.New(client.NewTransport("http://unused.invalid", time.Second), nil)
	require.NoError(t, err)
	p := New(zerolog.Nop(), c, credentials.NewEnvStore(), testAdminKey)

	rec := serve(p, http.MethodPost, "/admin/credentials", `{"accessToken":"at"}`, adminHeader())
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAdminForceRefresh(t *testing.T) {
	f := newFixture(t, testAdminKey)

	rec := serve(f.proxy, http.MethodPost, "/admin/credentials/refresh", "", adminHeader())
	assert.Equal(t, http.StatusNotFound, rec.Code)

	f.login(t)
	before, err := f.store.Read(context.Background())
	require.NoError(t, err)

	rec = serve(f.proxy, http.MethodPost, "/admin/credentials/refresh", "", adminHeader())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), f.upstream.Refreshes())

	after, err := f.store.Read(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, before.RefreshToken, after.RefreshToken)
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
