package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
)

// shutdownContext returns a context that cancels on the first SIGINT/SIGTERM
// and force-exits on the second.
func shutdownContext(parent context.Context, log zerolog.Logger) context.Context {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			log.Info().Str("signal", sig.String()).Msg("Received signal, shutting down")
			cancel()
		case <-ctx.Done():
			return
		}

		select {
		case sig := <-sigCh:
			log.Warn().Str("signal", sig.String()).Msg("Received second signal, forcing exit")
			os.Exit(1)
		case <-parent.Done():
			return
		}
	}()

	return ctx
}
