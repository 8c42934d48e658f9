package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"product-content-ai/internal/domain/model"
)

func newGenerateCmd() *cobra.Command {
	var task, slug, provider string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate one task for one item and print the result as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			tt, err := model.ParseTaskType(task)
			if err != nil {
				return err
			}
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := buildApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.generate.Generate(ctx, tt, slug, provider)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	cmd.Flags().StringVar(&task, "task", string(model.TaskDescription), "task to run (description, seo, faq, article, image)")
	cmd.Flags().StringVar(&slug, "slug", "", "item slug")
	cmd.Flags().StringVar(&provider, "provider", "", "force a provider for this task")
	_ = cmd.MarkFlagRequired("slug")
	return cmd
}
