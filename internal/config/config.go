// Package config reads process configuration from the environment.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go-chi-calculator/internal/history"
	"go-chi-calculator/internal/storage"
)

// Store backends accepted in CALC_STORE.
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StorePostgres = "postgres"
)

type Config struct {
	Addr            string
	Store           string
	StoreDir        string
	PostgresDSN     string
	HistoryCapacity int
	StoreTimeout    time.Duration
	SessionIdle     time.Duration
	Telemetry       bool
	Development     bool
}

// Load reads configuration through getenv, usually os.Getenv.
func Load(getenv func(string) string) (Config, error) {
	cfg := Config{
		Addr:            ":8080",
		Store:           StoreMemory,
		HistoryCapacity: history.DefaultCapacity,
		StoreTimeout:    2 * time.Second,
		SessionIdle:     30 * time.Minute,
		Telemetry:       true,
	}

	if v := getenv("CALC_ADDR"); v != "" {
		cfg.Addr = v
	}

	if v := getenv("CALC_STORE"); v != "" {
		cfg.Store = strings.ToLower(v)
	}
	switch cfg.Store {
	case StoreMemory, StoreFile, StorePostgres:
	default:
		return Config{}, fmt.Errorf("CALC_STORE: unknown backend %q", cfg.Store)
	}

	cfg.StoreDir = getenv("CALC_STORE_DIR")
	if cfg.Store == StoreFile && cfg.StoreDir == "" {
		dir, err := DefaultStoreDir()
		if err != nil {
			return Config{}, err
		}
		cfg.StoreDir = dir
	}

	cfg.PostgresDSN = getenv("CALC_POSTGRES_DSN")
	if cfg.Store == StorePostgres && cfg.PostgresDSN == "" {
		return Config{}, fmt.Errorf("CALC_POSTGRES_DSN is required when CALC_STORE=%s", StorePostgres)
	}

	if v := getenv("CALC_HISTORY_CAPACITY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("CALC_HISTORY_CAPACITY: expected a positive integer, got %q", v)
		}
		cfg.HistoryCapacity = n
	}

	if v := getenv("CALC_STORE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("CALC_STORE_TIMEOUT: %w", err)
		}
		if d <= 0 {
			return Config{}, fmt.Errorf("CALC_STORE_TIMEOUT: expected a positive duration, got %q", v)
		}
		cfg.StoreTimeout = d
	}

	if v := getenv("CALC_SESSION_IDLE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("CALC_SESSION_IDLE: %w", err)
		}
		cfg.SessionIdle = d
	}

	if v := getenv("CALC_TELEMETRY"); v != "" {
		on, err := parseSwitch(v)
		if err != nil {
			return Config{}, fmt.Errorf("CALC_TELEMETRY: %w", err)
		}
		cfg.Telemetry = on
	}

	if v := getenv("CALC_DEV"); v != "" {
		on, err := parseSwitch(v)
		if err != nil {
			return Config{}, fmt.Errorf("CALC_DEV: %w", err)
		}
		cfg.Development = on
	}

	return cfg, nil
}

// DefaultStoreDir is where the file store lives when CALC_STORE_DIR is unset.
func DefaultStoreDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "desk-calculator"), nil
}

func parseSwitch(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "on", "true", "1", "yes":
		return true, nil
	case "off", "false", "0", "no":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", v)
}

// OpenStore opens the configured history backend. The returned close
// function is never nil.
func (c Config) OpenStore(ctx context.Context) (storage.Store, func() error, error) {
	noop := func() error { return nil }

	switch c.Store {
	case StoreFile:
		s, err := storage.NewFileStore(c.StoreDir)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	case StorePostgres:
		if c.StoreTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.StoreTimeout)
			defer cancel()
		}

		s, err := storage.OpenPostgres(ctx, c.PostgresDSN)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	}
	return storage.NewMemory(), noop, nil
}
