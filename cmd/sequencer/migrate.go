package main

import (
	"context"
	"fmt"
	"io"

	"github.com/mpas/sequencer/common/bootstrap"
	"github.com/mpas/sequencer/common/db"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate [up|down]",
		Short: "Apply or roll back the order schema",
		Long: `Applies the embedded schema migrations (orders and commit batches).

Direction defaults to "up". "down" rolls back every migration.`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{string(db.Up), string(db.Down)},
		RunE: func(cmd *cobra.Command, args []string) error {
			direction := db.Up
			if len(args) == 1 {
				d, err := db.ParseDirection(args[0])
				if err != nil {
					return err
				}
				direction = d
			}
			return runMigrate(cmd.Context(), cmd.OutOrStdout(), direction)
		},
	}
}

func runMigrate(ctx context.Context, out io.Writer, direction db.Direction) error {
	components, err := bootstrap.Setup(ctx, serviceName,
		bootstrap.WithoutRedis(),
		bootstrap.WithoutQueue(),
		bootstrap.WithoutCache(),
		bootstrap.WithoutTelemetry(),
	)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer components.Shutdown(context.Background())

	if err := components.DB.Migrate(direction); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	fmt.Fprintf(out, "migrations applied (%s)\n", direction)
	return nil
}
