//go:build js && wasm

package main

import (
	"os"

	"github.com/syumai/workers"

	"github.com/dvcrn/bearer-proxy/internal/app"
	"github.com/dvcrn/bearer-proxy/internal/config"
	"github.com/dvcrn/bearer-proxy/internal/logger"
)

func main() {
	env := config.ReadEnvOverrides()
	if env.Backend == "" {
		env.Backend = config.BackendKV
	}

	cfg, err := config.Resolve(env, config.CLIOverrides{})
	if err != nil {
		log := logger.New(logger.Options{Out: os.Stderr})
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Workers logs are collected as JSON.
	log := logger.New(logger.Options{
		Level:  cfg.Logging.Level,
		Format: logger.FormatJSON,
		Out:    os.Stderr,
	})

	log.Info().Msg("📦 Using Cloudflare KV credentials store")
	a, err := app.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create application")
	}

	workers.Serve(a.Server)
}
