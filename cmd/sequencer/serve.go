package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/mpas/sequencer/cmd/sequencer/container"
	"github.com/mpas/sequencer/cmd/sequencer/middleware"
	"github.com/mpas/sequencer/cmd/sequencer/routes"
	"github.com/mpas/sequencer/common/bootstrap"
	"github.com/mpas/sequencer/common/db"
	"github.com/mpas/sequencer/common/server"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var migrateFirst bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, migrateFirst)
		},
	}

	cmd.Flags().BoolVar(&migrateFirst, "migrate", false, "apply schema migrations before serving")
	return cmd
}

func runServe(ctx context.Context, migrateFirst bool) error {
	var opts []bootstrap.Option
	if migrateFirst {
		opts = append(opts, bootstrap.WithDBInitHook(func(d *db.DB) error {
			return d.Migrate(db.Up)
		}))
	}

	// Bootstrap common components (DB, logger, queue, cache, telemetry)
	components, err := bootstrap.Setup(ctx, serviceName, opts...)
	if err != nil {
		return fmt.Errorf("failed to bootstrap %s: %w", serviceName, err)
	}
	defer func() {
		if err := components.Shutdown(context.Background()); err != nil {
			components.Logger.Warn("shutdown incomplete", "error", err)
		}
	}()

	// Initialize service container (all services created once)
	c, err := container.NewContainer(components)
	if err != nil {
		return fmt.Errorf("failed to initialize service container: %w", err)
	}
	defer c.Close()

	if err := c.StartRelay(ctx); err != nil {
		components.Logger.Warn("commit relay not started", "error", err)
	}

	e := setupEcho(components)
	routes.Register(e, c)

	srv := server.New(serviceName, components.Config.Service.Port, e, components.Logger)
	return srv.Start(ctx)
}

// setupEcho initializes echo with the shared middleware stack
func setupEcho(components *bootstrap.Components) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.RequestID())
	e.Use(middleware.RequestContext())
	e.Use(middleware.RequestLogger(components.Logger))
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())
	return e
}
