package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/herald-labs/herald/pkg/config"
)

type feedConfig struct {
	PageLimit int    `env:"FEED_PAGE_LIMIT" envDefault:"10"`
	Service   string `env:"FEED_SERVICE_NAME" envDefault:"herald"`
}

type strictConfig struct {
	Token string `env:"HERALD_TEST_REQUIRED_TOKEN,required"`
}

func TestLoad(t *testing.T) {
	t.Run("defaults apply when env is unset", func(t *testing.T) {
		var cfg feedConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, 10, cfg.PageLimit)
		assert.Equal(t, "herald", cfg.Service)
	})

	t.Run("cached copy served on repeat load", func(t *testing.T) {
		var first feedConfig
		require.NoError(t, config.Load(&first))

		// changing the environment now must not affect the cached type
		t.Setenv("FEED_PAGE_LIMIT", "50")

		var second feedConfig
		require.NoError(t, config.Load(&second))
		assert.Equal(t, first.PageLimit, second.PageLimit)
	})

	t.Run("missing required variable fails", func(t *testing.T) {
		var cfg strictConfig
		err := config.Load(&cfg)
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})

	t.Run("nil pointer rejected", func(t *testing.T) {
		var cfg *feedConfig
		assert.ErrorIs(t, config.Load(cfg), config.ErrNilPointer)
	})
}
