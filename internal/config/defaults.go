package config

import (
	"time"

	"github.com/dvcrn/bearer-proxy/internal/credentials"
)

const (
	defaultBaseURL    = "http://localhost:8848"
	defaultTimeout    = 10 * time.Second
	defaultListen     = ":8080"
	defaultMockListen = ":8848"
	defaultAccessTTL  = 2 * time.Minute
)

// DefaultConfig returns a Config with every field set to its default.
func DefaultConfig() *Config {
	return &Config{
		Upstream: UpstreamConfig{
			BaseURL: defaultBaseURL,
			Timeout: defaultTimeout,
		},
		Auth: AuthConfig{
			LoginPath:   "/login",
			RefreshPath: "/refresh-token",
			Whitelist:   []string{"/refresh-token", "/login"},
		},
		Refresh: RefreshConfig{
			Mode: RefreshEndpoint,
		},
		Credentials: CredentialsConfig{
			Backend:         BackendFile,
			Path:            credentials.DefaultCredsPath(),
			RedisKey:        credentials.DefaultRedisKey,
			KeychainService: credentials.DefaultKeychainService,
		},
		Server: ServerConfig{
			Listen: defaultListen,
		},
		Mock: MockConfig{
			Listen:    defaultMockListen,
			Username:  "admin",
			Password:  "admin123",
			Secret:    "bearer-proxy-mock-secret",
			AccessTTL: defaultAccessTTL,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: LogFormatAuto,
		},
	}
}
