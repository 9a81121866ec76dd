package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix  = "LEADERBOARD_"
	envFileKey = "LEADERBOARD_ENV_FILE"
	configKey  = "LEADERBOARD_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if LEADERBOARD_CONFIG is set
//  3. env (prefix LEADERBOARD_), including values from a .env file
//
// The .env file (LEADERBOARD_ENV_FILE, default ".env") never overrides
// variables already present in the process environment.
func Load(_ context.Context) (*Config, error) {
	envFile := os.Getenv(envFileKey)
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: env file %s: %w", ErrLoadConfig, envFile, err)
	}

	k := koanf.New(".")

	if path := os.Getenv(configKey); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// LEADERBOARD_DB_HOST -> db_host; underscores stay to match the koanf tags.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}
	// Both keys only steer loading.
	k.Delete("config")
	k.Delete("env_file")

	cfg := New()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
