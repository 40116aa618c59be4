package bootstrap

import (
	"context"
	"errors"
	"testing"

	"github.com/mpas/sequencer/common/cache"
	"github.com/mpas/sequencer/common/config"
	"github.com/mpas/sequencer/common/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Service: config.ServiceConfig{Name: "sequencer-test", Port: 3010},
		Cache:   config.CacheConfig{Enabled: true},
	}
}

func TestSetup_WithoutBackingStores(t *testing.T) {
	ctx := context.Background()

	c, err := Setup(ctx, "sequencer-test",
		WithCustomConfig(testConfig()),
		WithCustomLogger(logger.NewNop()),
		WithoutDB(),
		WithoutTelemetry(),
	)
	require.NoError(t, err)

	assert.Nil(t, c.DB)
	assert.Nil(t, c.Redis)
	assert.NotNil(t, c.Queue)
	assert.NotNil(t, c.Metrics)
	assert.IsType(t, &cache.MemoryCache{}, c.Cache)
	assert.NoError(t, c.Health(ctx))

	require.NoError(t, c.Shutdown(ctx))
}

func TestShutdown_RunsInReverseAndCollectsErrors(t *testing.T) {
	c := &Components{Logger: logger.NewNop()}

	var order []int
	c.addCleanup(func() error { order = append(order, 1); return nil })
	c.addCleanup(func() error { order = append(order, 2); return errors.New("second failed") })
	c.addCleanup(func() error { order = append(order, 3); return errors.New("third failed") })

	err := c.Shutdown(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "second failed")
	assert.Contains(t, err.Error(), "third failed")
	assert.Equal(t, []int{3, 2, 1}, order)
}

func TestSetup_UnreachableRedisFails(t *testing.T) {
	cfg := testConfig()
	cfg.Redis = config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: "1"}

	_, err := Setup(context.Background(), "sequencer-test",
		WithCustomConfig(cfg),
		WithCustomLogger(logger.NewNop()),
		WithoutDB(),
		WithoutTelemetry(),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init redis")
}

func TestSetup_SkipsDisabledCache(t *testing.T) {
	cfg := testConfig()
	cfg.Cache.Enabled = false

	c, err := Setup(context.Background(), "sequencer-test",
		WithCustomConfig(cfg),
		WithCustomLogger(logger.NewNop()),
		WithoutDB(),
		WithoutQueue(),
		WithoutTelemetry(),
	)
	require.NoError(t, err)
	defer c.Shutdown(context.Background())

	assert.Nil(t, c.Cache)
	assert.Nil(t, c.Queue)
}
