package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mpas/sequencer/cmd/sequencer/models"
	"github.com/mpas/sequencer/cmd/sequencer/scheduling"
	"github.com/spf13/cobra"
)

type scheduleOptions struct {
	file   string
	anchor string
	now    string
	takt   int
	groups bool
}

func newScheduleCmd() *cobra.Command {
	opts := &scheduleOptions{}

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Stamp an order list offline",
		Long: `Reads a JSON array of orders (from --file or stdin), assigns takt-spaced
scheduled times and prints the result as JSON. No database is used: the start
is --anchor plus one takt, or --now (default: the current time) when no anchor
is given.`,
		Example: `  sequencer schedule --file orders.json --anchor 2024-01-01T09:00:00Z --takt 240
  cat orders.json | sequencer schedule --groups`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if opts.file != "" && opts.file != "-" {
				f, err := os.Open(opts.file)
				if err != nil {
					return fmt.Errorf("schedule: open %s: %w", opts.file, err)
				}
				defer f.Close()
				in = f
			}
			return runSchedule(in, cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "orders JSON file (default stdin)")
	cmd.Flags().StringVar(&opts.anchor, "anchor", "", "last scheduled time; the first order starts one takt later")
	cmd.Flags().StringVar(&opts.now, "now", "", "clock used when no anchor is given")
	cmd.Flags().IntVar(&opts.takt, "takt", 240, "takt interval in seconds")
	cmd.Flags().BoolVar(&opts.groups, "groups", false, "also print material groups")
	return cmd
}

func runSchedule(in io.Reader, out io.Writer, opts *scheduleOptions) error {
	var orders []*models.Order
	if err := json.NewDecoder(in).Decode(&orders); err != nil && err != io.EOF {
		return fmt.Errorf("schedule: decode orders: %w", err)
	}
	if orders == nil {
		orders = []*models.Order{}
	}

	anchor := scheduling.NoAnchor()
	if opts.anchor != "" {
		at, err := scheduling.ParseTimestamp(opts.anchor, time.Local)
		if err != nil {
			return fmt.Errorf("schedule: --anchor: %w", err)
		}
		anchor = scheduling.FoundAnchor(at)
	}

	var calcOpts []scheduling.CalculatorOption
	if opts.now != "" {
		now, err := scheduling.ParseTimestamp(opts.now, time.Local)
		if err != nil {
			return fmt.Errorf("schedule: --now: %w", err)
		}
		calcOpts = append(calcOpts, scheduling.WithClock(func() time.Time { return now }))
	}

	stamped, err := scheduling.NewCalculator(calcOpts...).ComputeSchedule(orders, anchor, opts.takt)
	if err != nil {
		return fmt.Errorf("schedule: %w", err)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	if !opts.groups {
		return enc.Encode(stamped)
	}
	return enc.Encode(map[string]interface{}{
		"orders": stamped,
		"groups": scheduling.BuildGroups(stamped),
	})
}
