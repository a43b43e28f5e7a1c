package cmd

import (
	"fmt"
	"os"

	"github.com/kayz/kidsearch/internal/config"
	"github.com/kayz/kidsearch/internal/logger"
	"github.com/spf13/cobra"
)

var (
	logLevel   string
	configPath string

	// cfg is loaded once in PersistentPreRunE.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "kidsearch",
	Short: "Kid-friendly multi-source search",
	Long: `kidsearch merges a metered web search with encyclopedias and document
indexes into one result list suited for children.

Commands:
  kidsearch search <query>   Search from the terminal
  kidsearch serve            Run the web UI and JSON API
  kidsearch mcp              Serve the search tools over MCP (stdio)
  kidsearch sources          List configured sources
  kidsearch quota            Show today's metered search budget
  kidsearch cache            Inspect or clear the result caches
  kidsearch init             Write a default config file`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := loadConfig()
		if err != nil {
			return err
		}
		cfg = loaded

		// Priority: command line flag > environment variable > config file
		level := cfg.Logging.Level
		if cmd.Flags().Changed("log") {
			level = logLevel
		}
		parsed, err := logger.ParseLevel(level)
		if err != nil {
			return err
		}
		logger.SetLevel(parsed)
		logger.SetOutputFile(cfg.Logging.File)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info",
		"Log level: trace, debug, info, warn, error, fatal, panic")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Config file (default .kidsearch.yaml next to the executable)")
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromPath(configPath)
	}
	return config.Load()
}

// activeConfigPath is the file that serve watches for changes.
func activeConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.ConfigPath()
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
