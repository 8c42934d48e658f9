package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"product-content-ai/internal/infra/metrics"
)

var (
	version = "dev"
	commit  = "none"
)

var (
	cfgPath string
	devMode bool
)

func main() {
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	rootCmd := &cobra.Command{
		Use:           "product-content",
		Short:         "Generate product marketing content through budgeted AI providers",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "path to YAML config file")
	rootCmd.PersistentFlags().BoolVar(&devMode, "dev", false, "developer mode (console logs, unredacted secrets in logs)")

	rootCmd.AddCommand(
		newRunCmd(),
		newServeCmd(),
		newGenerateCmd(),
		newProvidersCmd(),
		newTokenCmd(),
		newSealCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
