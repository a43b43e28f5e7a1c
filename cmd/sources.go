package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kayz/kidsearch/internal/render"
	"github.com/kayz/kidsearch/internal/search"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List configured secondary sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := search.NewRegistry(cfg.Sources, search.RegistryOptions{
			SourceTimeout: cfg.Search.SourceTimeout,
			Deadline:      cfg.Search.FanoutTimeout,
		})
		return render.SourcesTable(cmd.OutOrStdout(), registry.Sources())
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}
