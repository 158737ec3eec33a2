package cmd

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/brotherdetjr/deltabanana/collection"
	"github.com/brotherdetjr/deltabanana/config"
	"github.com/brotherdetjr/deltabanana/gitsource"
)

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, err
	}
	return config.Load(path)
}

// newLogger builds a line-per-record logger on the command's error stream.
// Records above the -v level are dropped.
func newLogger(cmd *cobra.Command) logr.Logger {
	verbosity, err := cmd.Flags().GetCount("verbose")
	if err != nil {
		verbosity = 0
	}
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Fprintln(cmd.ErrOrStderr(), prefix, args)
			return
		}
		fmt.Fprintln(cmd.ErrOrStderr(), args)
	}, funcr.Options{Verbosity: verbosity})
}

// newSource wires a GitSource over the configured collections: parsed values
// are full collections, registered changes append rows to entries files.
func newSource(
	ctx context.Context,
	cfg config.Config,
	log logr.Logger,
	registerer prometheus.Registerer,
) *gitsource.GitSource {
	return gitsource.New(ctx, gitsource.Config{
		BaseDir:            cfg.BaseDir,
		SyncInterval:       cfg.CollectionSync.Interval(),
		NoChangeMultiplier: cfg.CollectionSync.NoChangeMultiplier,
		CommitMessage:      cfg.CollectionSync.CommitMessage,
		CloneDepth:         cfg.CollectionSync.CloneDepth,
		OnRemoteChanged: func(url string, branch string) {
			log.Info("remote collection changed", "url", url, "branch", branch)
		},
		ApplyChanges: collection.AppendEntries(cfg.BaseDir),
		Logger:       log,
		Registerer:   registerer,
	})
}

func successf(cmd *cobra.Command, format string, args ...any) {
	if noStatusOutput {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "[OK] "+format+"\n", args...)
}

func infof(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format+"\n", args...)
}
