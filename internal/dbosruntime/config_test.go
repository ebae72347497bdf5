package dbosruntime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_WithDefaults(t *testing.T) {
	var cfg Config
	cfg.WithDefaults()

	assert.Equal(t, "simple-generation-pipeline", cfg.AppName)
	assert.Equal(t, "generation", cfg.QueueName)
	assert.Equal(t, 1, cfg.Concurrency)
	assert.False(t, cfg.Enabled())
}

func TestConfig_KeepsExplicitValues(t *testing.T) {
	cfg := Config{DatabaseURL: "postgres://x", AppName: "a", QueueName: "q", Concurrency: 3}
	cfg.WithDefaults()

	assert.Equal(t, Config{DatabaseURL: "postgres://x", AppName: "a", QueueName: "q", Concurrency: 3}, cfg)
	assert.True(t, cfg.Enabled())
}

func TestNewRuntime_RequiresDatabaseURL(t *testing.T) {
	_, err := NewRuntime(context.Background(), Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DBOS_SYSTEM_DATABASE_URL")
}
