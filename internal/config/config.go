// Package config loads bearer-proxy settings from TOML, environment variables
// and command-line flags, in that order of increasing precedence.
package config

import "time"

// Credential store backends.
const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendEnv      = "env"
	BackendRedis    = "redis"
	BackendKeychain = "keychain"
	BackendKV       = "kv"
)

// Refresh modes.
const (
	RefreshEndpoint = "endpoint"
	RefreshOAuth2   = "oauth2"
)

// Log formats.
const (
	LogFormatAuto    = "auto"
	LogFormatConsole = "console"
	LogFormatJSON    = "json"
)

// Config is the whole configuration file.
type Config struct {
	Upstream    UpstreamConfig    `toml:"upstream"`
	Auth        AuthConfig        `toml:"auth"`
	Refresh     RefreshConfig     `toml:"refresh"`
	Credentials CredentialsConfig `toml:"credentials"`
	Server      ServerConfig      `toml:"server"`
	Mock        MockConfig        `toml:"mock"`
	Logging     LoggingConfig     `toml:"logging"`
}

// UpstreamConfig describes the API the client talks to.
type UpstreamConfig struct {
	BaseURL string            `toml:"base_url"`
	Timeout time.Duration     `toml:"timeout"`
	Headers map[string]string `toml:"headers"`
}

// AuthConfig holds the credential endpoints and expiry handling.
type AuthConfig struct {
	LoginPath   string        `toml:"login_path"`
	RefreshPath string        `toml:"refresh_path"`
	Whitelist   []string      `toml:"whitelist"`
	ExpirySkew  time.Duration `toml:"expiry_skew"`
}

// RefreshConfig selects how expired credentials are renewed. The OAuth2
// fields only apply in oauth2 mode.
type RefreshConfig struct {
	Mode         string   `toml:"mode"`
	TokenURL     string   `toml:"token_url"`
	ClientID     string   `toml:"client_id"`
	ClientSecret string   `toml:"client_secret"`
	Scopes       []string `toml:"scopes"`
}

// CredentialsConfig selects and configures the credential store.
type CredentialsConfig struct {
	Backend         string `toml:"backend"`
	Path            string `toml:"path"`
	RedisAddr       string `toml:"redis_addr"`
	RedisKey        string `toml:"redis_key"`
	RedisDB         int    `toml:"redis_db"`
	KeychainService string `toml:"keychain_service"`
}

// ServerConfig configures the authenticating proxy.
type ServerConfig struct {
	Listen   string `toml:"listen"`
	AdminKey string `toml:"admin_key"`
}

// MockConfig configures the mock authentication backend.
type MockConfig struct {
	Listen    string        `toml:"listen"`
	Username  string        `toml:"username"`
	Password  string        `toml:"password"`
	Secret    string        `toml:"secret"`
	AccessTTL time.Duration `toml:"access_ttl"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}
