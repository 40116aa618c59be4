package bootstrap

import (
	"context"
	"fmt"

	"github.com/mpas/sequencer/common/cache"
	"github.com/mpas/sequencer/common/config"
	"github.com/mpas/sequencer/common/db"
	"github.com/mpas/sequencer/common/logger"
	"github.com/mpas/sequencer/common/metrics"
	"github.com/mpas/sequencer/common/queue"
	rediscommon "github.com/mpas/sequencer/common/redis"
	"github.com/mpas/sequencer/common/telemetry"
)

// CacheKeyPrefix namespaces every key the service writes to Redis
const CacheKeyPrefix = "sequencer:"

// Setup builds the sequencer's shared components. On error, whatever was
// already opened is shut down before returning.
func Setup(ctx context.Context, serviceName string, opts ...Option) (*Components, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	cfg := o.customConfig
	if cfg == nil {
		var err error
		if cfg, err = config.Load(serviceName); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	log := o.customLogger
	if log == nil {
		log = logger.New(cfg.Service.LogLevel, cfg.Service.LogFormat)
	}

	c := &Components{
		Config:  cfg,
		Logger:  log,
		Metrics: metrics.NewRecorder(),
	}

	log.Info("initializing service", "service", serviceName, "environment", cfg.Service.Environment)

	steps := []struct {
		name string
		skip bool
		run  func(context.Context, *Components, *options) error
	}{
		{"database", o.skipDB, initDB},
		{"redis", o.skipRedis || !cfg.Redis.Enabled, initRedis},
		{"queue", o.skipQueue, initQueue},
		{"cache", o.skipCache || !cfg.Cache.Enabled, initCache},
		{"telemetry", o.skipTelemetry || !(cfg.Telemetry.EnablePprof || cfg.Telemetry.EnableMetrics), initTelemetry},
	}

	for _, step := range steps {
		if step.skip {
			continue
		}
		if err := step.run(ctx, c, o); err != nil {
			c.Shutdown(ctx)
			return nil, fmt.Errorf("init %s: %w", step.name, err)
		}
	}

	log.Info("service initialization complete",
		"service", serviceName,
		"db", c.DB != nil,
		"redis", c.Redis != nil,
		"queue", c.Queue != nil,
		"cache", c.Cache != nil,
		"telemetry", c.Telemetry != nil,
	)

	return c, nil
}

func initDB(ctx context.Context, c *Components, o *options) error {
	d, err := db.New(ctx, c.Config, c.Logger)
	if err != nil {
		return err
	}
	c.DB = d
	c.addCleanup(func() error {
		c.DB.Close()
		return nil
	})

	if o.dbInitHook != nil {
		c.Logger.Info("running database init hook")
		if err := o.dbInitHook(d); err != nil {
			return fmt.Errorf("database init hook: %w", err)
		}
	}
	return nil
}

func initRedis(ctx context.Context, c *Components, _ *options) error {
	client, err := rediscommon.Dial(ctx, rediscommon.Options{
		Addr:     c.Config.RedisAddr(),
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
	}, c.Logger)
	if err != nil {
		return err
	}
	c.Redis = client
	c.addCleanup(func() error {
		c.Logger.Info("closing redis connection")
		return c.Redis.Close()
	})
	return nil
}

func initQueue(_ context.Context, c *Components, _ *options) error {
	c.Queue = queue.NewMemoryQueue(c.Logger)
	c.addCleanup(c.Queue.Close)
	return nil
}

// Sessions and anchors go to Redis when it is connected so every
// instance sees the same working sets.
func initCache(_ context.Context, c *Components, _ *options) error {
	if c.Redis != nil {
		c.Logger.Info("initializing cache", "backend", "redis")
		c.Cache = cache.NewRedisCache(c.Redis, CacheKeyPrefix)
	} else {
		c.Logger.Info("initializing cache", "backend", "memory")
		c.Cache = cache.NewMemoryCache(c.Logger)
	}
	c.addCleanup(c.Cache.Close)
	return nil
}

func initTelemetry(ctx context.Context, c *Components, _ *options) error {
	t := c.Config.Telemetry
	c.Telemetry = telemetry.New(telemetry.Options{
		EnablePprof:   t.EnablePprof,
		PprofPort:     t.PprofPort,
		EnableMetrics: t.EnableMetrics,
		MetricsPort:   t.MetricsPort,
	}, c.Metrics.Registry(), c.Logger)

	if err := c.Telemetry.Start(ctx); err != nil {
		c.Logger.Warn("failed to start telemetry", "error", err)
	}
	c.addCleanup(func() error {
		return c.Telemetry.Shutdown(context.Background())
	})
	return nil
}
