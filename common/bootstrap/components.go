package bootstrap

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/mpas/sequencer/common/cache"
	"github.com/mpas/sequencer/common/config"
	"github.com/mpas/sequencer/common/db"
	"github.com/mpas/sequencer/common/logger"
	"github.com/mpas/sequencer/common/metrics"
	"github.com/mpas/sequencer/common/queue"
	rediscommon "github.com/mpas/sequencer/common/redis"
	"github.com/mpas/sequencer/common/telemetry"
)

// Components holds all initialized service dependencies
type Components struct {
	Config    *config.Config
	Logger    *logger.Logger
	DB        *db.DB
	Redis     *rediscommon.Client // nil when Redis is disabled
	Queue     queue.Queue
	Cache     cache.Cache
	Metrics   *metrics.Recorder
	Telemetry *telemetry.Telemetry

	// Internal
	cleanupFuncs []func() error
}

// Shutdown performs graceful shutdown of all components.
// Cleanup runs in reverse order of initialization.
func (c *Components) Shutdown(ctx context.Context) error {
	c.Logger.Info("shutting down components")

	var result *multierror.Error

	for i := len(c.cleanupFuncs) - 1; i >= 0; i-- {
		if err := c.cleanupFuncs[i](); err != nil {
			result = multierror.Append(result, err)
			c.Logger.Error("cleanup error", "error", err)
		}
	}
	c.cleanupFuncs = nil

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	c.Logger.Info("shutdown complete")
	return nil
}

// Health checks the backing stores
func (c *Components) Health(ctx context.Context) error {
	if c.DB != nil {
		if err := c.DB.Health(ctx); err != nil {
			return fmt.Errorf("database unhealthy: %w", err)
		}
	}

	if c.Redis != nil {
		if err := c.Redis.Ping(ctx); err != nil {
			return fmt.Errorf("redis unhealthy: %w", err)
		}
	}

	return nil
}

// addCleanup registers a cleanup function
func (c *Components) addCleanup(fn func() error) {
	c.cleanupFuncs = append(c.cleanupFuncs, fn)
}
