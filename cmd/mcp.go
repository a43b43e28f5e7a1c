package cmd

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kayz/kidsearch/internal/logger"
	"github.com/kayz/kidsearch/internal/tools"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve web_search, image_search and quota_status over MCP (stdio)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		var quota tools.QuotaReporter
		if a.quota != nil {
			quota = a.quota
		}
		s := tools.NewServer(tools.New(a.engine, quota, cfg.Search.DefaultLang), Version)

		// stdout carries the protocol; logs stay on stderr.
		logger.Info("[MCP] serving on stdio")
		return server.ServeStdio(s)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
