package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/shardkv/internal/parallel"
	"github.com/dreamware/shardkv/internal/storage"
)

// TestGetenv tests the getenv utility function
func TestGetenv(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		def      string
		expected string
	}{
		{name: "environment variable set", value: "test_value", def: "default", expected: "test_value"},
		{name: "empty environment variable returns default", value: "", def: "fallback", expected: "fallback"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SHARDKV_TEST_VAR", tt.value)
			assert.Equal(t, tt.expected, getenv("SHARDKV_TEST_VAR", tt.def))
		})
	}
}

// TestLoadConfig tests environment parsing
func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := loadConfig()
		require.NoError(t, err)
		assert.Equal(t, config{LogLevel: "info", Shards: 8, Workers: 4, Keys: 100}, cfg)
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("SHARDKV_SHARDS", "16")
		t.Setenv("SHARDKV_WORKERS", "2")
		t.Setenv("SHARDKV_KEYS", "500")
		t.Setenv("SHARDKV_LOG_LEVEL", "debug")

		cfg, err := loadConfig()
		require.NoError(t, err)
		assert.Equal(t, config{LogLevel: "debug", Shards: 16, Workers: 2, Keys: 500}, cfg)
	})

	t.Run("not a number", func(t *testing.T) {
		t.Setenv("SHARDKV_SHARDS", "eight")
		_, err := loadConfig()
		assert.ErrorContains(t, err, "SHARDKV_SHARDS")
	})

	t.Run("too few keys", func(t *testing.T) {
		t.Setenv("SHARDKV_KEYS", "10")
		_, err := loadConfig()
		assert.Error(t, err)
	})
}

func TestNewZapLogger(t *testing.T) {
	zl, err := newZapLogger("debug")
	require.NoError(t, err)
	assert.NotNil(t, zl)

	_, err = newZapLogger("chatty")
	assert.Error(t, err)
}

// TestRun runs every phase end to end
func TestRun(t *testing.T) {
	t.Run("prints metrics for every store", func(t *testing.T) {
		var out bytes.Buffer
		cfg := config{LogLevel: "info", Shards: 8, Workers: 4, Keys: 100}

		require.NoError(t, run(context.Background(), cfg, testr.New(t), &out))

		text := out.String()
		// 100 inserts + 100 transactions + 8 ForEach shards + 100 actor inserts + 1 remove
		assert.Contains(t, text, `shardkv_store_operations_total{store_id="1"} 309`)
		for _, id := range []string{"2", "3", "4"} {
			assert.Contains(t, text, `shardkv_store_operations_total{store_id="`+id+`"} 10`)
			assert.Contains(t, text, `shardkv_store_shards{store_id="`+id+`"} 8`)
		}
		assert.Equal(t, 8*4, strings.Count(text, "shardkv_shard_entries{"))
	})

	t.Run("invalid shard count fails fast", func(t *testing.T) {
		cfg := config{LogLevel: "info", Shards: 0, Workers: 4, Keys: 100}
		err := run(context.Background(), cfg, testr.New(t), &bytes.Buffer{})
		assert.True(t, errors.Is(err, storage.ErrInvalidConfig))
	})

	t.Run("invalid pool size fails fast", func(t *testing.T) {
		cfg := config{LogLevel: "info", Shards: 8, Workers: 0, Keys: 100}
		err := run(context.Background(), cfg, testr.New(t), &bytes.Buffer{})
		assert.True(t, errors.Is(err, parallel.ErrInvalidSize))
	})
}
