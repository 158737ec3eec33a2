package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/brotherdetjr/deltabanana/config"
)

var (
	noStatusOutput bool
)

var rootCmd = newRootCommand()

func Execute() error {
	return rootCmd.Execute()
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deltabanana",
		Short: "Serve git-backed word collections kept fresh by background sync",
		Long: `Deltabanana keeps word-list collections stored in git repositories in sync
with their remotes and serves them to the chat bot.

Use the CLI to:
  - run the collection synchroniser as a long-lived process
  - list the configured collections and their current contents
  - validate the configuration file before deploying it`,
		Example: `  # Run the synchroniser until interrupted
  deltabanana serve --config /etc/deltabanana/deltabanana.yaml

  # Check a configuration file without touching any repository
  deltabanana config check --config deltabanana.yaml`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.PersistentFlags().String("config", config.DefaultConfigPath, "Path to the configuration file")
	cmd.PersistentFlags().CountP("verbose", "v", "Increase log verbosity (repeatable)")
	cmd.PersistentFlags().BoolVar(&noStatusOutput, "no-status", false, "Suppress status messages and print only command output")

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newCollectionsCommand())
	cmd.AddCommand(newConfigCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}
