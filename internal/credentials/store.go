package credentials

import (
	"context"
	"errors"
	"time"
)

// ErrReadOnly is returned by stores that cannot persist refreshed tokens.
var ErrReadOnly = errors.New("credentials: store is read-only")

// Record is the persisted credential set for one session.
type Record struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	// ExpiresAt is the access token expiry in unix milliseconds. Zero means unknown.
	ExpiresAt int64  `json:"expires"`
	UserID    string `json:"userID,omitempty"`
}

// Expired reports whether the access token is expired at now, treating it as
// expired skew early. A record without expiry never expires.
func (r Record) Expired(now time.Time, skew time.Duration) bool {
	if r.ExpiresAt == 0 {
		return false
	}
	return now.Add(skew).UnixMilli() >= r.ExpiresAt
}

// Until returns the time left before expiry. It is negative once expired and
// zero when the expiry is unknown.
func (r Record) Until(now time.Time) time.Duration {
	if r.ExpiresAt == 0 {
		return 0
	}
	return time.UnixMilli(r.ExpiresAt).Sub(now)
}

// Store persists a single credential Record.
//
// Read returns (nil, nil) when no session exists.
type Store interface {
	Read(ctx context.Context) (*Record, error)
	Write(ctx context.Context, rec Record) error
	Clear(ctx context.Context) error
}
