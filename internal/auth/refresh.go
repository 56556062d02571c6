// Package auth talks to the credential issuing endpoints: login, the JSON
// refresh endpoint and OAuth2 token endpoints.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dvcrn/bearer-proxy/internal/client"
	"github.com/dvcrn/bearer-proxy/internal/credentials"
	"github.com/dvcrn/bearer-proxy/internal/logger"
	"github.com/rs/zerolog"
)

const (
	DefaultLoginPath   = "/login"
	DefaultRefreshPath = "/refresh-token"
)

// ErrRejected is returned when the backend answers with success=false.
var ErrRejected = errors.New("auth: request rejected by backend")

// Sender sends a request without credential handling. *client.Transport
// implements it.
type Sender interface {
	Send(ctx context.Context, req *client.Descriptor) (*client.Response, error)
}

// HTTPRefresher refreshes credentials by posting the refresh token to a JSON
// endpoint. The endpoint must be whitelisted, which it is by default.
type HTTPRefresher struct {
	sender Sender
	path   string
	logger zerolog.Logger
}

type RefresherOption func(*HTTPRefresher)

func WithRefresherLogger(logger zerolog.Logger) RefresherOption {
	return func(r *HTTPRefresher) {
		r.logger = logger
	}
}

func NewHTTPRefresher(sender Sender, path string, opts ...RefresherOption) *HTTPRefresher {
	if path == "" {
		path = DefaultRefreshPath
	}
	r := &HTTPRefresher{
		sender: sender,
		path:   path,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Refresh implements client.Refresher.
func (r *HTTPRefresher) Refresh(ctx context.Context, refreshToken string) (*credentials.Record, error) {
	resp, err := r.sender.Send(ctx, &client.Descriptor{
		Method: http.MethodPost,
		URL:    r.path,
		Body:   RefreshRequest{RefreshToken: refreshToken},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to make refresh request: %w", err)
	}

	data, err := decodeEnvelope[TokenData](resp)
	if err != nil {
		return nil, fmt.Errorf("failed to decode refresh response: %w", err)
	}

	rec := data.record(r.logger)
	r.logger.Debug().
		Str("access_token", logger.MaskToken(rec.AccessToken)).
		Int64("expires", rec.ExpiresAt).
		Msg("Refresh endpoint issued new token")
	return &rec, nil
}

// record converts the wire reply into a stored record. A missing expiry is
// taken from the access token's exp claim when it is a JWT.
func (t TokenData) record(log zerolog.Logger) credentials.Record {
	rec := credentials.Record{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    t.Expires.Millis(),
	}
	if rec.ExpiresAt == 0 && rec.AccessToken != "" {
		exp, err := ExpiryFromJWT(rec.AccessToken)
		if err != nil {
			log.Debug().Err(err).Msg("No expiry in reply or token, treating token as non-expiring")
		}
		rec.ExpiresAt = exp
	}
	return rec
}

func decodeEnvelope[T any](resp *client.Response) (T, error) {
	var zero T

	env, err := client.Decode[Envelope[T]](resp)
	if err != nil {
		return zero, err
	}
	if !env.Success {
		if env.Message != "" {
			return zero, fmt.Errorf("%w: %s", ErrRejected, env.Message)
		}
		return zero, ErrRejected
	}
	return env.Data, nil
}
