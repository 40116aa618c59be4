package container

import (
	"context"
	"fmt"

	"github.com/mpas/sequencer/cmd/sequencer/filter"
	"github.com/mpas/sequencer/cmd/sequencer/repository"
	"github.com/mpas/sequencer/cmd/sequencer/scheduling"
	"github.com/mpas/sequencer/cmd/sequencer/service"
	"github.com/mpas/sequencer/common/bootstrap"
	"github.com/mpas/sequencer/common/cache"
	"github.com/mpas/sequencer/common/config"
	"github.com/mpas/sequencer/common/ratelimit"
)

// Container holds all initialized services and repositories (singleton pattern)
type Container struct {
	// Components
	Components *bootstrap.Components

	// Repositories
	OrderRepo *repository.OrderRepository // nil when built over a custom store
	Store     service.OrderStore

	// Scheduling core
	Evaluator  *filter.Evaluator
	Calculator *scheduling.Calculator

	// Services
	OrderService    *service.OrderService
	AnchorService   *service.AnchorService
	ScheduleService *service.ScheduleService
	SessionService  *service.SessionService

	// RateLimiter is nil unless rate limiting is enabled
	RateLimiter *ratelimit.RateLimiter

	sessionCache cache.Cache
	ownsCache    bool
}

// Option configures the container
type Option func(*options)

type options struct {
	calculatorOpts []scheduling.CalculatorOption
}

// WithCalculatorOptions passes options (e.g. a fixed clock) to the calculator
func WithCalculatorOptions(opts ...scheduling.CalculatorOption) Option {
	return func(o *options) {
		o.calculatorOpts = append(o.calculatorOpts, opts...)
	}
}

// NewContainer initializes all services over the Postgres order repository
func NewContainer(components *bootstrap.Components, opts ...Option) (*Container, error) {
	if components.DB == nil {
		return nil, fmt.Errorf("database is required")
	}

	repo := repository.NewOrderRepository(components.DB)
	c, err := NewContainerWithStore(components, repo, opts...)
	if err != nil {
		return nil, err
	}
	c.OrderRepo = repo
	return c, nil
}

// NewContainerWithStore initializes all services over the given order store
func NewContainerWithStore(components *bootstrap.Components, store service.OrderStore, opts ...Option) (*Container, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	cfg := components.Config
	log := components.Logger

	lines := cfg.Scheduling.Lines
	if lines == nil {
		var err error
		lines, err = config.LoadLines(cfg.Scheduling.LinesFile, cfg.Scheduling.DefaultTaktSeconds)
		if err != nil {
			return nil, fmt.Errorf("failed to load lines: %w", err)
		}
	}

	evaluator, err := filter.NewEvaluator()
	if err != nil {
		return nil, fmt.Errorf("failed to create filter evaluator: %w", err)
	}

	// Sessions always need a store; the anchor cache is optional
	sessionCache := components.Cache
	ownsCache := false
	anchorTTL := cfg.Cache.AnchorTTL
	if sessionCache == nil {
		sessionCache = cache.NewMemoryCache(log)
		ownsCache = true
		anchorTTL = 0
	}

	calculator := scheduling.NewCalculator(o.calculatorOpts...)

	// Initialize services (bottom-up: dependencies first)
	orderService := service.NewOrderService(store, evaluator, log)
	anchorService := service.NewAnchorService(store, sessionCache, anchorTTL, components.Metrics, log)
	scheduleService := service.NewScheduleService(
		store,
		anchorService,
		calculator,
		lines,
		components.Queue,
		components.Metrics,
		log,
	)
	sessionService := service.NewSessionService(
		sessionCache,
		cfg.Cache.SessionTTL,
		orderService,
		scheduleService,
		components.Metrics,
		log,
	)

	var limiter *ratelimit.RateLimiter
	if cfg.RateLimit.Enabled && components.Redis != nil {
		limiter = ratelimit.NewRateLimiter(components.Redis.Raw(), log)
	}

	return &Container{
		Components:      components,
		Store:           store,
		Evaluator:       evaluator,
		Calculator:      calculator,
		OrderService:    orderService,
		AnchorService:   anchorService,
		ScheduleService: scheduleService,
		SessionService:  sessionService,
		RateLimiter:     limiter,
		sessionCache:    sessionCache,
		ownsCache:       ownsCache,
	}, nil
}

// StartRelay forwards commit events to Redis for other instances.
// It is a no-op without both a queue and Redis.
func (c *Container) StartRelay(ctx context.Context) error {
	if c.Components.Queue == nil || c.Components.Redis == nil {
		return nil
	}
	return service.RelayCommits(ctx, c.Components.Queue, c.Components.Redis, c.Components.Logger)
}

// Close releases resources the container created itself
func (c *Container) Close() error {
	if c.ownsCache {
		return c.sessionCache.Close()
	}
	return nil
}
