package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"product-content-ai/internal/domain/model"
	aiAdapters "product-content-ai/internal/infra/adapters/ai"
)

func newProvidersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List configured providers and the candidate order per task",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			reg, err := aiAdapters.NewRegistry(cfg.Providers, aiAdapters.WithLogger(log))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tKIND\tCATEGORY\tMODEL\tPRIORITY\tENABLED")
			for _, c := range reg.Configs() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%t\n", c.Name, c.Kind, c.Category, c.Model, c.Priority, c.Enabled)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			fmt.Fprintln(out)
			for _, t := range model.AllTaskTypes {
				names := reg.CandidatesFor(t)
				if len(names) == 0 {
					fmt.Fprintf(out, "%-12s (none)\n", t)
					continue
				}
				fmt.Fprintf(out, "%-12s %s\n", t, strings.Join(names, " > "))
			}
			fmt.Fprintf(out, "\nknown kinds: %s\n", strings.Join(aiAdapters.KnownKinds(), ", "))
			return nil
		},
	}
}
