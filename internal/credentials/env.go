package credentials

import (
	"context"
	"fmt"
	"os"
	"strconv"
)

const (
	EnvAccessToken  = "BEARER_PROXY_ACCESS_TOKEN"
	EnvRefreshToken = "BEARER_PROXY_REFRESH_TOKEN"
	EnvExpiresAt    = "BEARER_PROXY_EXPIRES_AT"
	EnvUserID       = "BEARER_PROXY_USER_ID"
)

// EnvStore reads credentials from environment variables. It cannot persist
// refreshed tokens, so Write and Clear return ErrReadOnly.
type EnvStore struct{}

// NewEnvStore creates a new environment-based credential store
func NewEnvStore() *EnvStore {
	return &EnvStore{}
}

// Read returns nil when BEARER_PROXY_ACCESS_TOKEN is unset
func (e *EnvStore) Read(_ context.Context) (*Record, error) {
	access := os.Getenv(EnvAccessToken)
	if access == "" {
		return nil, nil
	}

	rec := &Record{
		AccessToken:  access,
		RefreshToken: os.Getenv(EnvRefreshToken),
		UserID:       os.Getenv(EnvUserID),
	}
	if raw := os.Getenv(EnvExpiresAt); raw != "" {
		expiresAt, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", EnvExpiresAt, raw, err)
		}
		rec.ExpiresAt = expiresAt
	}
	return rec, nil
}

func (e *EnvStore) Write(_ context.Context, _ Record) error {
	return fmt.Errorf("environment credentials do not support token updates: %w", ErrReadOnly)
}

func (e *EnvStore) Clear(_ context.Context) error {
	return fmt.Errorf("environment credentials cannot be cleared: %w", ErrReadOnly)
}
