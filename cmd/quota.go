package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kayz/kidsearch/internal/render"
)

var quotaReset bool

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Show today's metered search budget",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if a.quota == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "The primary source is not configured; no quota applies.")
			return nil
		}
		if quotaReset {
			a.quota.Reset()
		}
		if !cfg.Quota.Persist || a.store == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "(quota is kept in memory only; enable quota.persist and cache.persist_path to track it across runs)")
		}
		fmt.Fprintln(cmd.OutOrStdout(), render.QuotaLine(a.quota.Usage()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(quotaCmd)
	quotaCmd.Flags().BoolVar(&quotaReset, "reset", false, "Reset today's counter to zero")
}
