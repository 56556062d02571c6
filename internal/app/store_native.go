//go:build !js || !wasm

package app

import (
	"fmt"

	"github.com/dvcrn/bearer-proxy/internal/config"
	"github.com/dvcrn/bearer-proxy/internal/credentials"
	"github.com/redis/go-redis/v9"
)

func newPlatformStore(cfg config.CredentialsConfig) (credentials.Store, func() error, error) {
	switch cfg.Backend {
	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		})
		return credentials.NewRedisStore(rdb, cfg.RedisKey), rdb.Close, nil
	case config.BackendKeychain:
		return credentials.NewKeychainStore(cfg.KeychainService), nil, nil
	case config.BackendKV:
		return nil, nil, fmt.Errorf("the %s backend is only available in the Workers build", cfg.Backend)
	default:
		return nil, nil, fmt.Errorf("unknown credentials backend %q", cfg.Backend)
	}
}
