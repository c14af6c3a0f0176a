package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the course manifest and every content file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			loader, _, err := newLoader(cfg.Content)
			if err != nil {
				return err
			}
			if err := loader.ValidateAll(cmd.Context()); err != nil {
				return fmt.Errorf("course is invalid:\n%w", err)
			}
			m, _ := loader.Manifest(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %q, %d levels\n", m.Title, len(m.Levels))
			return nil
		},
	}
}
