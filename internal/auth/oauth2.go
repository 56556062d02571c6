package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dvcrn/bearer-proxy/internal/client"
	"github.com/dvcrn/bearer-proxy/internal/credentials"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// OAuth2Refresher refreshes credentials with the OAuth2 refresh_token grant.
type OAuth2Refresher struct {
	config     *oauth2.Config
	httpClient *http.Client
}

// NewOAuth2Refresher creates a refresher for the given token endpoint. A nil
// httpClient gets one with client.DefaultTimeout.
func NewOAuth2Refresher(tokenURL, clientID, clientSecret string, scopes []string, httpClient *http.Client) *OAuth2Refresher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: client.DefaultTimeout}
	}
	return &OAuth2Refresher{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: httpClient,
	}
}

// Refresh implements client.Refresher.
func (o *OAuth2Refresher) Refresh(ctx context.Context, refreshToken string) (*credentials.Record, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)

	tok, err := o.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			return nil, fmt.Errorf("token refresh failed with status %d: %w", retrieveErr.Response.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}

	data := TokenData{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	if !tok.Expiry.IsZero() {
		data.Expires = Expiry{tok.Expiry}
	}
	rec := data.record(zerolog.Nop())
	return &rec, nil
}
