package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kayz/kidsearch/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long: `Write the default configuration (primary source, Vikidia, Wikipedia and
Wikimedia Commons) to the config file so it can be edited.

The API key and search engine id can stay out of the file and be provided
through KIDSEARCH_API_KEY and KIDSEARCH_CSE_ID.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := activeConfigPath()
		if err := writeDefaultConfig(path, initForce); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}

func writeDefaultConfig(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	return config.DefaultConfig().SaveTo(path)
}
