package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dvcrn/bearer-proxy/internal/client"
	"github.com/dvcrn/bearer-proxy/internal/credentials"
	"github.com/rs/zerolog"
)

// Doer sends a request through the full client pipeline. *client.Client
// implements it.
type Doer interface {
	Do(ctx context.Context, req *client.Descriptor) (*client.Response, error)
}

// Login posts username and password to DefaultLoginPath and stores the
// issued credentials.
func Login(ctx context.Context, doer Doer, store credentials.Store, username, password string) (*UserData, error) {
	return LoginAt(ctx, doer, store, DefaultLoginPath, username, password)
}

// LoginAt is Login against a custom path. The path must be whitelisted so
// that an expired session does not trigger a refresh first.
func LoginAt(ctx context.Context, doer Doer, store credentials.Store, path, username, password string) (*UserData, error) {
	resp, err := doer.Do(ctx, &client.Descriptor{
		Method: http.MethodPost,
		URL:    path,
		Body:   LoginRequest{Username: username, Password: password},
	})
	if err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}

	user, err := decodeEnvelope[UserData](resp)
	if err != nil {
		return nil, fmt.Errorf("failed to decode login response: %w", err)
	}
	if user.AccessToken == "" {
		return nil, fmt.Errorf("%w: login reply carries no access token", ErrRejected)
	}

	rec := user.TokenData.record(zerolog.Nop())
	rec.UserID = user.Username
	if err := store.Write(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to store credentials: %w", err)
	}
	return &user, nil
}
