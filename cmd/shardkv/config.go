package main

import (
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// config holds the demo's settings, read from the environment:
//   - SHARDKV_SHARDS: shards per store (default 8)
//   - SHARDKV_WORKERS: fan-out pool size (default 4)
//   - SHARDKV_KEYS: keys inserted by the direct-access phase (default 100)
//   - SHARDKV_LOG_LEVEL: zap level name (default "info")
type config struct {
	LogLevel string
	Shards   int
	Workers  int
	Keys     int
}

func loadConfig() (config, error) {
	var (
		cfg config
		err error
	)
	if cfg.Shards, err = getenvInt("SHARDKV_SHARDS", 8); err != nil {
		return config{}, err
	}
	if cfg.Workers, err = getenvInt("SHARDKV_WORKERS", 4); err != nil {
		return config{}, err
	}
	if cfg.Keys, err = getenvInt("SHARDKV_KEYS", 100); err != nil {
		return config{}, err
	}
	cfg.LogLevel = getenv("SHARDKV_LOG_LEVEL", "info")

	// key-50 is the contended key of the transaction phase.
	if cfg.Keys <= 50 {
		return config{}, fmt.Errorf("SHARDKV_KEYS must be > 50, got %d", cfg.Keys)
	}
	return cfg, nil
}

// getenv returns the environment variable k, or def when it is unset or
// empty.
func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) (int, error) {
	v := getenv(k, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return n, nil
}

// newZapLogger builds a production zap logger at the given level.
func newZapLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("SHARDKV_LOG_LEVEL: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
