package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/dialogmesh/domain"
)

// NewValidateCmd creates the validate command.
func NewValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [domain-file]",
		Short: "Load and validate a domain file",
		Long:  "Validates the given domain file, or the one named by the configuration. Every problem is reported.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				path = cfg.DomainPath
			}

			d, err := domain.Load(path)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d intents, %d slots, %d forms, %d rules, %d custom actions)\n",
				path, len(d.Intents), len(d.Slots), len(d.Forms), len(d.Rules), len(d.Actions))
			return nil
		},
	}
}
