//go:build js && wasm

package app

import (
	"fmt"

	"github.com/dvcrn/bearer-proxy/internal/config"
	"github.com/dvcrn/bearer-proxy/internal/credentials"
)

func newPlatformStore(cfg config.CredentialsConfig) (credentials.Store, func() error, error) {
	if cfg.Backend != config.BackendKV {
		return nil, nil, fmt.Errorf("the %s backend is not available in the Workers build", cfg.Backend)
	}
	store, err := credentials.NewKVStore()
	if err != nil {
		return nil, nil, err
	}
	return store, nil, nil
}
