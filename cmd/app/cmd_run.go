package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"product-content-ai/internal/domain/model"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [slug...]",
		Short: "Run the content pipeline once for the given items (all active items by default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := buildApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			run, err := runOnce(ctx, a, args)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), describeRun(run))
			for _, o := range run.Outcomes {
				if o.Outcome == model.OutcomePublished {
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  %-8s %s (%s)\n", o.Outcome, o.Slug, o.ErrorKind)
			}
			return nil
		},
	}
}

func runOnce(ctx context.Context, a *app, args []string) (*model.RunState, error) {
	slugs, err := allSlugs(ctx, a.source, args)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return a.runs.Run(ctx, slugs)
}
