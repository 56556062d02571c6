package auth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// expiryLayout is the wall-clock format the backend uses for expires.
const expiryLayout = "2006/01/02 15:04:05"

// Envelope wraps every backend payload.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    T      `json:"data"`
}

// TokenData is the credential part of login and refresh replies.
type TokenData struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	Expires      Expiry `json:"expires"`
}

// UserData is the login reply.
type UserData struct {
	Avatar   string   `json:"avatar,omitempty"`
	Username string   `json:"username"`
	Nickname string   `json:"nickname,omitempty"`
	Roles    []string `json:"roles,omitempty"`
	TokenData
}

// LoginRequest is the body posted to the login endpoint.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RefreshRequest is the body posted to the refresh endpoint.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Expiry is an access token expiry. On the wire it is either unix
// milliseconds, an RFC 3339 timestamp or "2006/01/02 15:04:05" in local time.
// It is always written back as unix milliseconds.
type Expiry struct {
	time.Time
}

// ExpiryFromMillis converts unix milliseconds; zero stays the zero Expiry.
func ExpiryFromMillis(ms int64) Expiry {
	if ms == 0 {
		return Expiry{}
	}
	return Expiry{time.UnixMilli(ms)}
}

// Millis returns the expiry in unix milliseconds, zero when unknown.
func (e Expiry) Millis() int64 {
	if e.IsZero() {
		return 0
	}
	return e.UnixMilli()
}

func (e Expiry) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(e.Millis(), 10)), nil
}

func (e *Expiry) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*e = Expiry{}
		return nil
	}

	if data[0] != '"' {
		var ms int64
		if err := json.Unmarshal(data, &ms); err != nil {
			return fmt.Errorf("invalid expires %s: %w", data, err)
		}
		*e = ExpiryFromMillis(ms)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*e = Expiry{}
		return nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		*e = ExpiryFromMillis(ms)
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		*e = Expiry{t}
		return nil
	}
	t, err := time.ParseInLocation(expiryLayout, s, time.Local)
	if err != nil {
		return fmt.Errorf("invalid expires %q", s)
	}
	*e = Expiry{t}
	return nil
}
