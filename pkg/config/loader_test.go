package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifycore/pkg/config"
)

type drainConfig struct {
	Interval  time.Duration `env:"DRAIN_INTERVAL" envDefault:"30s"`
	BatchSize int           `env:"DRAIN_BATCH" envDefault:"100"`
	Enabled   bool          `env:"DRAIN_ENABLED" envDefault:"true"`
}

type requiredConfig struct {
	DSN string `env:"REQUIRED_DSN,required"`
}

type validatedConfig struct {
	Workers int `env:"VALIDATED_WORKERS" envDefault:"4"`
}

func (c *validatedConfig) Validate() error {
	if c.Workers <= 0 {
		return errors.New("workers must be positive")
	}
	return nil
}

func TestLoad_Defaults(t *testing.T) {
	var cfg drainConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, 30*time.Second, cfg.Interval)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.True(t, cfg.Enabled)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DRAIN_INTERVAL", "5s")
	t.Setenv("DRAIN_BATCH", "7")
	t.Setenv("DRAIN_ENABLED", "false")

	var cfg drainConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, 5*time.Second, cfg.Interval)
	assert.Equal(t, 7, cfg.BatchSize)
	assert.False(t, cfg.Enabled)
}

func TestLoadPrefixed(t *testing.T) {
	t.Setenv("SECONDARY_DRAIN_BATCH", "3")

	var cfg drainConfig
	require.NoError(t, config.LoadPrefixed("SECONDARY_", &cfg))
	assert.Equal(t, 3, cfg.BatchSize)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("nil pointer", func(t *testing.T) {
		var cfg *drainConfig
		assert.ErrorIs(t, config.Load(cfg), config.ErrNilPointer)
	})

	t.Run("missing required", func(t *testing.T) {
		var cfg requiredConfig
		assert.ErrorIs(t, config.Load(&cfg), config.ErrParsingConfig)
	})

	t.Run("parse failure", func(t *testing.T) {
		t.Setenv("DRAIN_BATCH", "many")
		var cfg drainConfig
		assert.ErrorIs(t, config.Load(&cfg), config.ErrParsingConfig)
	})

	t.Run("validation", func(t *testing.T) {
		t.Setenv("VALIDATED_WORKERS", "0")
		var cfg validatedConfig
		assert.ErrorIs(t, config.Load(&cfg), config.ErrInvalidConfig)
	})

	t.Run("must load panics", func(t *testing.T) {
		var cfg requiredConfig
		assert.Panics(t, func() { config.MustLoad(&cfg) })
	})
}
