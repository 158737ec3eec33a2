package cmd

import (
	"github.com/spf13/cobra"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration file",
	}

	cmd.AddCommand(newConfigCheckCommand())

	return cmd
}

func newConfigCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration file without touching any repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			successf(cmd, "configuration valid: %d collections, sync every %s",
				len(cfg.Collections), cfg.CollectionSync.Interval())
			return nil
		},
	}
}
