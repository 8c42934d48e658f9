package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"product-content-ai/internal/infra/security"
)

func newSealCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seal",
		Short: "Seal a secret read from stdin for use as an enc: config value",
		Long:  "Reads one line from stdin and prints it sealed with the key in " + security.KeyEnv + ".",
		RunE: func(cmd *cobra.Command, _ []string) error {
			key := os.Getenv(security.KeyEnv)
			if key == "" {
				return security.ErrNoKey
			}
			box, err := security.NewSecretBox(key)
			if err != nil {
				return err
			}
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			line = strings.TrimRight(line, "\r\n")
			if line == "" {
				if err != nil {
					return fmt.Errorf("read secret: %w", err)
				}
				return errors.New("empty secret")
			}
			sealed, err := box.Seal(line)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sealed)
			return nil
		},
	}
}
