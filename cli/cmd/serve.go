package cmd

import (
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/brotherdetjr/deltabanana/collection"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the collection synchroniser until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log := newLogger(cmd)
			source := newSource(ctx, cfg, log, prometheus.DefaultRegisterer)

			// Pre-fetch every configured collection so broken remotes fail
			// the command instead of surfacing later as log noise.
			group, groupCtx := errgroup.WithContext(ctx)
			for _, descriptor := range cfg.Collections {
				group.Go(func() error {
					value, err := source.Get(groupCtx, descriptor.FileLink(), collection.Parse)
					if err != nil {
						return err
					}
					parsed := value.(collection.Collection)
					log.Info("collection ready",
						"title", descriptor.Title,
						"topic", parsed.Topic,
						"entries", len(parsed.Entries))
					return nil
				})
			}
			if err := group.Wait(); err != nil {
				return err
			}

			successf(cmd, "serving %d collections, syncing every %s",
				len(cfg.Collections), cfg.CollectionSync.Interval())

			<-ctx.Done()
			log.Info("shutting down")
			return nil
		},
	}
}
