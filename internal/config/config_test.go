package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dvcrn/bearer-proxy/internal/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func strPtr(s string) *string { return &s }

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, Validate(DefaultConfig()))
}

func TestLoadFullConfig(t *testing.T) {
	path := writeTestConfig(t, `
[upstream]
base_url = "https://api.example.com"
timeout = "5s"

[upstream.headers]
X-Tenant = "acme"

[auth]
login_path = "/v1/login"
refresh_path = "/v1/refresh-token"
whitelist = ["/v1/login", "/v1/refresh-token"]
expiry_skew = "30s"

[refresh]
mode = "oauth2"
token_url = "https://auth.example.com/oauth/token"
client_id = "cli"
scopes = ["openid"]

[credentials]
backend = "redis"
redis_addr = "localhost:6379"
redis_db = 2

[server]
listen = ":9000"
admin_key = "secret"

[logging]
level = "debug"
format = "json"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com", cfg.Upstream.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, map[string]string{"X-Tenant": "acme"}, cfg.Upstream.Headers)
	assert.Equal(t, "/v1/refresh-token", cfg.Auth.RefreshPath)
	assert.Equal(t, 30*time.Second, cfg.Auth.ExpirySkew)
	assert.Equal(t, RefreshOAuth2, cfg.Refresh.Mode)
	assert.Equal(t, []string{"openid"}, cfg.Refresh.Scopes)
	assert.Equal(t, BackendRedis, cfg.Credentials.Backend)
	assert.Equal(t, 2, cfg.Credentials.RedisDB)
	assert.Equal(t, "bearer-proxy:credentials", cfg.Credentials.RedisKey)
	assert.Equal(t, ":9000", cfg.Server.Listen)
	assert.Equal(t, "json", cfg.Logging.Format)

	// Untouched sections keep their defaults.
	assert.Equal(t, "admin", cfg.Mock.Username)
}

func TestLoadUnknownKeySuggests(t *testing.T) {
	path := writeTestConfig(t, `
[upstream]
base_ur = "https://api.example.com"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown config key "upstream.base_ur"`)
	assert.Contains(t, err.Error(), `did you mean "upstream.base_url"`)
}

func TestLoadInvalidTOML(t *testing.T) {
	_, err := Load(writeTestConfig(t, "[upstream\n"))
	assert.ErrorContains(t, err, "parsing config file")
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Upstream.BaseURL = "not a url"
	cfg.Upstream.Timeout = 0
	cfg.Auth.Whitelist = []string{"/login"}
	cfg.Refresh.Mode = "magic"
	cfg.Credentials.Backend = "floppy"
	cfg.Logging.Level = "loud"

	err := Validate(cfg)
	require.Error(t, err)

	var cfgErr *client.ConfigError
	assert.ErrorAs(t, err, &cfgErr)

	for _, want := range []string{
		"upstream.base_url",
		"upstream.timeout",
		"auth.whitelist",
		"refresh.mode",
		"credentials.backend",
		"logging.level",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidateWhitelistCoversEndpoints(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AuthConfig)
		wantErr string
	}{
		{
			name:    "custom login path outside whitelist",
			mutate:  func(a *AuthConfig) { a.LoginPath = "/auth/signin" },
			wantErr: `must cover login_path "/auth/signin"`,
		},
		{
			name:    "custom refresh path outside whitelist",
			mutate:  func(a *AuthConfig) { a.RefreshPath = "/auth/renew" },
			wantErr: `must cover refresh_path "/auth/renew"`,
		},
		{
			name: "both paths whitelisted",
			mutate: func(a *AuthConfig) {
				a.LoginPath = "/auth/signin"
				a.RefreshPath = "/auth/renew"
				a.Whitelist = []string{"/auth/signin", "/auth/renew"}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg.Auth)

			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), "auth.whitelist")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateOAuth2RequiresEndpoint(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Refresh.Mode = RefreshOAuth2

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refresh.token_url")
	assert.Contains(t, err.Error(), "refresh.client_id")
}

func TestValidateRedisRequiresAddr(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Credentials.Backend = BackendRedis

	assert.ErrorContains(t, Validate(cfg), "credentials.redis_addr")
}

func TestResolvePrecedence(t *testing.T) {
	path := writeTestConfig(t, `
[upstream]
base_url = "https://file.example.com"

[server]
listen = ":7000"
`)

	t.Setenv(EnvConfig, path)
	t.Setenv(EnvBaseURL, "https://env.example.com")
	t.Setenv(EnvListen, ":7100")
	t.Setenv(EnvAdminKey, "env-key")

	cfg, err := Resolve(ReadEnvOverrides(), CLIOverrides{Listen: strPtr(":7200")})
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.com", cfg.Upstream.BaseURL)
	assert.Equal(t, ":7200", cfg.Server.Listen)
	assert.Equal(t, "env-key", cfg.Server.AdminKey)
}

func TestResolveCLIConfigPathWins(t *testing.T) {
	envPath := writeTestConfig(t, "[upstream]\nbase_url = \"https://env-file.example.com\"\n")
	cliPath := writeTestConfig(t, "[upstream]\nbase_url = \"https://cli-file.example.com\"\n")

	cfg, err := Resolve(EnvOverrides{ConfigPath: envPath}, CLIOverrides{ConfigPath: cliPath, Backend: strPtr("MEMORY")})
	require.NoError(t, err)
	assert.Equal(t, "https://cli-file.example.com", cfg.Upstream.BaseURL)
	assert.Equal(t, BackendMemory, cfg.Credentials.Backend)
}

func TestResolveRejectsInvalidOverride(t *testing.T) {
	_, err := Resolve(EnvOverrides{ConfigPath: filepath.Join(t.TempDir(), "missing.toml")}, CLIOverrides{BaseURL: strPtr("relative/path")})
	assert.ErrorContains(t, err, "upstream.base_url")
}

func TestClosestMatch(t *testing.T) {
	assert.Equal(t, "server.listen", closestMatch("server.lisen", knownKeys))
	assert.Empty(t, closestMatch("totally.unrelated.key", knownKeys))
	assert.Equal(t, 3, levenshtein("kitten", "sitting"))
}
