package main

import (
	"github.com/spf13/cobra"

	"github.com/hupe1980/dialogmesh/config"
	"github.com/hupe1980/dialogmesh/logging"
)

// NewRootCmd creates the dialogmesh command tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "dialogmesh",
		Short:        "Conversational agent orchestration core",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringP("config", "c", "", "path to the YAML configuration file")
	cmd.PersistentFlags().Bool("json", false, "print machine readable output")

	cmd.AddCommand(NewServeCmd(), NewReplayCmd(), NewValidateCmd())

	return cmd
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

func newLogger(cfg config.Config) (*logging.DialogLogger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewSlogLogger(level, cfg.Log.Format, false).WithComponent("dialogmesh"), nil
}
