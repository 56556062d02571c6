// Package app wires configuration into a ready-to-use client and proxy. The
// CLI and the Workers entry point share it.
package app

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dvcrn/bearer-proxy/internal/auth"
	"github.com/dvcrn/bearer-proxy/internal/client"
	"github.com/dvcrn/bearer-proxy/internal/config"
	"github.com/dvcrn/bearer-proxy/internal/credentials"
	"github.com/dvcrn/bearer-proxy/internal/proxy"
	"github.com/rs/zerolog"
)

// App holds every long-lived component built from a Config.
type App struct {
	Config     *config.Config
	Store      credentials.Store
	Transport  *client.Transport
	Refresher  client.Refresher
	Dispatcher *client.Dispatcher
	Client     *client.Client
	Server     *proxy.Server
	Progress   *client.LogProgress

	closers []func() error
}

// New builds the application. The returned App must be closed.
func New(cfg *config.Config, logger zerolog.Logger) (*App, error) {
	if cfg == nil {
		return nil, &client.ConfigError{Msg: "config is required"}
	}

	a := &App{Config: cfg}

	store, closer, err := newStore(cfg.Credentials)
	if err != nil {
		return nil, fmt.Errorf("creating credential store: %w", err)
	}
	a.Store = store
	if closer != nil {
		a.closers = append(a.closers, closer)
	}

	a.Progress = client.NewLogProgress(logger.With().Str("component", "progress").Logger())

	opts := []client.TransportOption{
		client.WithProgress(a.Progress),
		client.WithTransportLogger(logger.With().Str("component", "transport").Logger()),
	}
	for key, value := range cfg.Upstream.Headers {
		opts = append(opts, client.WithHeader(key, value))
	}
	a.Transport = client.NewTransport(cfg.Upstream.BaseURL, cfg.Upstream.Timeout, opts...)

	a.Refresher = newRefresher(cfg, a.Transport, logger)

	a.Dispatcher = client.NewDispatcher(a.Store, a.Refresher,
		client.WithWhitelist(client.Whitelist(cfg.Auth.Whitelist)),
		client.WithExpirySkew(cfg.Auth.ExpirySkew),
		client.WithDispatcherLogger(logger.With().Str("component", "dispatcher").Logger()),
	)

	a.Client, err = client.New(a.Transport, a.Dispatcher, client.WithLogger(logger))
	if err != nil {
		return nil, errors.Join(err, a.Close())
	}

	a.Server = proxy.New(logger, a.Client, a.Store, cfg.Server.AdminKey)

	logger.Info().
		Str("base_url", cfg.Upstream.BaseURL).
		Str("credentials", cfg.Credentials.Backend).
		Str("refresh", cfg.Refresh.Mode).
		Msg("🔑 Client configured")
	return a, nil
}

// Close releases connections held by the store.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func newRefresher(cfg *config.Config, tr *client.Transport, logger zerolog.Logger) client.Refresher {
	if cfg.Refresh.Mode == config.RefreshOAuth2 {
		return auth.NewOAuth2Refresher(
			cfg.Refresh.TokenURL,
			cfg.Refresh.ClientID,
			cfg.Refresh.ClientSecret,
			cfg.Refresh.Scopes,
			&http.Client{Timeout: cfg.Upstream.Timeout},
		)
	}
	return auth.NewHTTPRefresher(tr, cfg.Auth.RefreshPath,
		auth.WithRefresherLogger(logger.With().Str("component", "refresher").Logger()))
}
