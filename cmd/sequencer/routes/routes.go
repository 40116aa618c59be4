package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mpas/sequencer/cmd/sequencer/container"
	"github.com/mpas/sequencer/cmd/sequencer/handlers"
	"github.com/mpas/sequencer/cmd/sequencer/middleware"
	commonmw "github.com/mpas/sequencer/common/middleware"
)

// Register registers every route of the sequencer API
func Register(e *echo.Echo, c *container.Container) {
	RegisterHealthRoutes(e, c)

	api := e.Group("/api")
	api.Use(middleware.ExtractIdentity()) // username/clientid from query or headers

	if c.RateLimiter != nil {
		cfg := c.Components.Config.RateLimit
		api.Use(commonmw.GlobalRateLimitMiddleware(c.RateLimiter, cfg.GlobalLimit))
		api.Use(commonmw.UserRateLimitMiddleware(c.RateLimiter, cfg.UserLimit, middleware.GetUsername))
		c.Components.Logger.Info("rate limiting enabled",
			"global_limit", cfg.GlobalLimit,
			"user_limit", cfg.UserLimit)
	}

	RegisterOrderRoutes(api, c)
	RegisterScheduleRoutes(api, c)
	RegisterSessionRoutes(api, c)

	if dir := c.Components.Config.Service.StaticDir; dir != "" {
		e.Static("/", dir)
		c.Components.Logger.Info("serving static files", "dir", dir)
	}
}

// RegisterHealthRoutes registers liveness and readiness endpoints
func RegisterHealthRoutes(e *echo.Echo, c *container.Container) {
	e.GET("/health", func(ctx echo.Context) error {
		return ctx.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": c.Components.Config.Service.Name,
		})
	})

	e.GET("/ready", func(ctx echo.Context) error {
		if err := c.Components.Health(ctx.Request().Context()); err != nil {
			return ctx.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  err.Error(),
			})
		}
		return ctx.JSON(http.StatusOK, map[string]string{
			"status": "ready",
		})
	})
}

// RegisterOrderRoutes registers the order list, anchor and direct commit routes
func RegisterOrderRoutes(api *echo.Group, c *container.Container) {
	h := handlers.NewOrderHandler(c)

	api.GET("/test", h.TestConnection)          // GET /api/test
	api.GET("/last-scheduled", h.LastScheduled) // GET /api/last-scheduled?plant=1000
	api.GET("/orders", h.ListOrders)            // GET /api/orders?plant=1000&line=L1&from=...&to=...
	api.POST("/sequence", h.Sequence)           // POST /api/sequence
	api.POST("/resequence", h.Resequence)       // POST /api/resequence
}

// RegisterScheduleRoutes registers stateless scheduling routes
func RegisterScheduleRoutes(api *echo.Group, c *container.Container) {
	h := handlers.NewScheduleHandler(c)

	schedule := api.Group("/schedule")
	{
		schedule.POST("/preview", h.Preview) // POST /api/schedule/preview
	}
}

// RegisterSessionRoutes registers working set routes
func RegisterSessionRoutes(api *echo.Group, c *container.Container) {
	h := handlers.NewSessionHandler(c)

	sessions := api.Group("/sessions")
	{
		sessions.POST("", h.CreateSession)                 // POST /api/sessions
		sessions.GET("/:id", h.GetSession)                 // GET /api/sessions/{id}
		sessions.DELETE("/:id", h.DeleteSession)           // DELETE /api/sessions/{id}
		sessions.POST("/:id/pick", h.Pick)                 // POST /api/sessions/{id}/pick
		sessions.POST("/:id/unpick", h.Unpick)             // POST /api/sessions/{id}/unpick
		sessions.PATCH("/:id/scheduled", h.PatchScheduled) // PATCH /api/sessions/{id}/scheduled
		sessions.POST("/:id/groups/move", h.MoveGroup)     // POST /api/sessions/{id}/groups/move
		sessions.POST("/:id/recalc", h.Recalc)             // POST /api/sessions/{id}/recalc
		sessions.GET("/:id/groups", h.Groups)              // GET /api/sessions/{id}/groups
		sessions.POST("/:id/commit", h.Commit)             // POST /api/sessions/{id}/commit
	}
}
