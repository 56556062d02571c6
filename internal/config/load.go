package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/dvcrn/bearer-proxy/internal/credentials"
)

// Load reads and parses a TOML config file on top of the defaults, rejects
// unknown keys and validates the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads path if it exists and returns the defaults otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// CLIOverrides holds flag values. Nil means the flag was not given.
type CLIOverrides struct {
	ConfigPath string
	BaseURL    *string
	Listen     *string
	Backend    *string
	LogLevel   *string
}

// Resolve applies defaults, the config file, environment variables and CLI
// flags, in that order, and validates the merged result.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Config, error) {
	cfgPath := credentials.DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}
	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
	}

	cfg, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}

	env.apply(cfg)

	if cli.BaseURL != nil {
		cfg.Upstream.BaseURL = *cli.BaseURL
	}
	if cli.Listen != nil {
		cfg.Server.Listen = *cli.Listen
	}
	if cli.Backend != nil {
		cfg.Credentials.Backend = strings.ToLower(*cli.Backend)
	}
	if cli.LogLevel != nil {
		cfg.Logging.Level = *cli.LogLevel
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}
