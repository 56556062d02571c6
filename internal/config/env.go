package config

import (
	"os"
	"strings"
)

// Environment variable names for overrides.
const (
	EnvConfig    = "BEARER_PROXY_CONFIG"
	EnvBaseURL   = "BEARER_PROXY_BASE_URL"
	EnvBackend   = "BEARER_PROXY_CREDENTIALS_BACKEND"
	EnvRedisAddr = "BEARER_PROXY_REDIS_ADDR"
	EnvListen    = "BEARER_PROXY_LISTEN"
	EnvAdminKey  = "BEARER_PROXY_ADMIN_KEY"
	EnvLogLevel  = "BEARER_PROXY_LOG_LEVEL"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath string
	BaseURL    string
	Backend    string
	RedisAddr  string
	Listen     string
	AdminKey   string
	LogLevel   string
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		BaseURL:    os.Getenv(EnvBaseURL),
		Backend:    os.Getenv(EnvBackend),
		RedisAddr:  os.Getenv(EnvRedisAddr),
		Listen:     os.Getenv(EnvListen),
		AdminKey:   os.Getenv(EnvAdminKey),
		LogLevel:   os.Getenv(EnvLogLevel),
	}
}

func (e EnvOverrides) apply(cfg *Config) {
	if e.BaseURL != "" {
		cfg.Upstream.BaseURL = e.BaseURL
	}
	if e.Backend != "" {
		cfg.Credentials.Backend = strings.ToLower(e.Backend)
	}
	if e.RedisAddr != "" {
		cfg.Credentials.RedisAddr = e.RedisAddr
	}
	if e.Listen != "" {
		cfg.Server.Listen = e.Listen
	}
	if e.AdminKey != "" {
		cfg.Server.AdminKey = e.AdminKey
	}
	if e.LogLevel != "" {
		cfg.Logging.Level = e.LogLevel
	}
}
