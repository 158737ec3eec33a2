package cmd

import (
	"github.com/spf13/cobra"

	"github.com/brotherdetjr/deltabanana/collection"
)

func newCollectionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "collections",
		Short: "Fetch and list the configured collections",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log := newLogger(cmd)
			source := newSource(cmd.Context(), cfg, log, nil)

			for _, descriptor := range cfg.Collections {
				link := descriptor.FileLink()
				value, err := source.Get(cmd.Context(), link, collection.Parse)
				if err != nil {
					return err
				}
				rev, err := source.Revision(cmd.Context(), link.RepoLink)
				if err != nil {
					return err
				}
				parsed := value.(collection.Collection)
				infof(cmd, "%s\t%s>%s\t%d entries\t%.8s\t%s",
					descriptor.Title,
					parsed.NativeLang, parsed.StudiedLang,
					len(parsed.Entries),
					rev,
					parsed.Link.String())
			}
			return nil
		},
	}
}
