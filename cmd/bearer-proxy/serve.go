package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dvcrn/bearer-proxy/internal/mockapi"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the authenticating proxy",
		RunE:  runServe,
	}
	cmd.Flags().String("listen", "", "listen address (overrides server.listen)")
	return cmd
}

func newMockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mock",
		Short: "Run the mock authentication backend",
		RunE:  runMock,
	}
	cmd.Flags().String("listen", "", "listen address (overrides mock.listen)")
	cmd.Flags().Duration("access-ttl", 0, "access token lifetime (overrides mock.access_ttl)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, log, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a, log)

	addr := resolvedCfg.Server.Listen
	if v, _ := cmd.Flags().GetString("listen"); v != "" {
		addr = v
	}

	if rec, err := a.Store.Read(cmd.Context()); err != nil {
		log.Error().Err(err).Msg("⚠️  Failed to read credentials at startup")
	} else if rec == nil {
		log.Warn().Msg("⚠️  No stored credentials, requests are forwarded without Authorization")
	} else if rec.Expired(time.Now(), 0) {
		log.Warn().Msg("⚠️  Token is already expired, will refresh on first request")
	}

	return listenAndServe(cmd.Context(), addr, a.Server, log)
}

func runMock(cmd *cobra.Command, _ []string) error {
	log := buildLogger(cmd)

	mc := resolvedCfg.Mock
	if v, _ := cmd.Flags().GetString("listen"); v != "" {
		mc.Listen = v
	}
	if v, _ := cmd.Flags().GetDuration("access-ttl"); v > 0 {
		mc.AccessTTL = v
	}

	srv := mockapi.New(mockapi.Config{
		Username:  mc.Username,
		Password:  mc.Password,
		Secret:    mc.Secret,
		AccessTTL: mc.AccessTTL,
	}, log)

	log.Info().Str("username", mc.Username).Dur("access_ttl", mc.AccessTTL).Msg("Mock backend ready")
	return listenAndServe(cmd.Context(), mc.Listen, srv, log)
}

// listenAndServe runs handler until ctx is cancelled or a signal arrives,
// then shuts down gracefully.
func listenAndServe(parent context.Context, addr string, handler http.Handler, log zerolog.Logger) error {
	ctx := shutdownContext(parent, log)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", ln.Addr().String()).Msg("Starting server")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		log.Info().Msg("Shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
