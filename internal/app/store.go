package app

import (
	"github.com/dvcrn/bearer-proxy/internal/config"
	"github.com/dvcrn/bearer-proxy/internal/credentials"
)

// newStore creates the configured credential store and, when it holds a
// connection, the function that releases it.
func newStore(cfg config.CredentialsConfig) (credentials.Store, func() error, error) {
	switch cfg.Backend {
	case config.BackendFile:
		return credentials.NewFSStore(cfg.Path), nil, nil
	case config.BackendMemory:
		return credentials.NewMemoryStore(nil), nil, nil
	case config.BackendEnv:
		return credentials.NewEnvStore(), nil, nil
	default:
		return newPlatformStore(cfg)
	}
}
