package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the deltabanana version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), formatVersion())
			return nil
		},
	}
}

func formatVersion() string {
	version := strings.TrimSpace(Version)
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(Commit)
	if commit == "" {
		commit = "none"
	}
	date := strings.TrimSpace(Date)
	if date == "" {
		date = "unknown"
	}
	return fmt.Sprintf("deltabanana %s (%s, %s) %s", version, commit, date, runtime.Version())
}
