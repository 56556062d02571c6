package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dvcrn/bearer-proxy/internal/client"
)

const (
	minTimeout = 100 * time.Millisecond
	maxSkew    = time.Hour
)

var validBackends = map[string]bool{
	BackendFile: true, BackendMemory: true, BackendEnv: true,
	BackendRedis: true, BackendKeychain: true, BackendKV: true,
}

// Validate checks every value and returns all errors found. Failures are
// reported as *client.ConfigError.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateUpstream(&cfg.Upstream)...)
	errs = append(errs, validateAuth(&cfg.Auth)...)
	errs = append(errs, validateRefresh(&cfg.Refresh)...)
	errs = append(errs, validateCredentials(&cfg.Credentials)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)

	return errors.Join(errs...)
}

func configErr(format string, args ...any) error {
	return &client.ConfigError{Msg: fmt.Sprintf(format, args...)}
}

func validateUpstream(u *UpstreamConfig) []error {
	var errs []error

	if u.BaseURL == "" {
		errs = append(errs, configErr("upstream.base_url: must not be empty"))
	} else if parsed, err := url.Parse(u.BaseURL); err != nil || parsed.Scheme == "" || parsed.Host == "" {
		errs = append(errs, configErr("upstream.base_url: %q is not an absolute URL", u.BaseURL))
	}

	if u.Timeout < minTimeout {
		errs = append(errs, configErr("upstream.timeout: must be at least %s, got %s", minTimeout, u.Timeout))
	}

	return errs
}

func validateAuth(a *AuthConfig) []error {
	var errs []error

	for name, path := range map[string]string{"login_path": a.LoginPath, "refresh_path": a.RefreshPath} {
		if !strings.HasPrefix(path, "/") {
			errs = append(errs, configErr("auth.%s: must start with /, got %q", name, path))
		}
	}

	// Login and refresh must not wait on a refresh themselves.
	whitelist := client.Whitelist(a.Whitelist)
	for _, ep := range []struct{ name, path string }{
		{"login_path", a.LoginPath},
		{"refresh_path", a.RefreshPath},
	} {
		if ep.path != "" && !whitelist.Match(ep.path) {
			errs = append(errs, configErr("auth.whitelist: must cover %s %q", ep.name, ep.path))
		}
	}

	if a.ExpirySkew < 0 || a.ExpirySkew > maxSkew {
		errs = append(errs, configErr("auth.expiry_skew: must be between 0 and %s, got %s", maxSkew, a.ExpirySkew))
	}

	return errs
}

func validateRefresh(r *RefreshConfig) []error {
	switch r.Mode {
	case RefreshEndpoint:
		return nil
	case RefreshOAuth2:
		var errs []error
		if r.TokenURL == "" {
			errs = append(errs, configErr("refresh.token_url: required in oauth2 mode"))
		}
		if r.ClientID == "" {
			errs = append(errs, configErr("refresh.client_id: required in oauth2 mode"))
		}
		return errs
	default:
		return []error{configErr("refresh.mode: must be %q or %q, got %q", RefreshEndpoint, RefreshOAuth2, r.Mode)}
	}
}

func validateCredentials(c *CredentialsConfig) []error {
	if !validBackends[c.Backend] {
		return []error{configErr("credentials.backend: unknown backend %q", c.Backend)}
	}

	var errs []error
	switch c.Backend {
	case BackendFile:
		if c.Path == "" {
			errs = append(errs, configErr("credentials.path: required for the file backend"))
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			errs = append(errs, configErr("credentials.redis_addr: required for the redis backend"))
		}
		if c.RedisDB < 0 {
			errs = append(errs, configErr("credentials.redis_db: must not be negative"))
		}
	}
	return errs
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	switch strings.ToLower(l.Level) {
	case "trace", "debug", "info", "warn", "error":
	default:
		errs = append(errs, configErr("logging.level: unknown level %q", l.Level))
	}

	switch l.Format {
	case LogFormatAuto, LogFormatConsole, LogFormatJSON:
	default:
		errs = append(errs, configErr("logging.format: must be auto, console or json, got %q", l.Format))
	}

	return errs
}
