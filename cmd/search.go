package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/kayz/kidsearch/internal/render"
	"github.com/kayz/kidsearch/internal/search"
)

var (
	searchImages bool
	searchPage   int
	searchSort   string
	searchLang   string
	searchJSON   bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search from the terminal",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().BoolVar(&searchImages, "images", false, "Search images instead of web pages")
	searchCmd.Flags().IntVarP(&searchPage, "page", "p", 1, "Result page (1-10)")
	searchCmd.Flags().StringVar(&searchSort, "sort", "", "Sort order: empty for relevance, or date")
	searchCmd.Flags().StringVar(&searchLang, "lang", "", "Language code (detected from the query when empty)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Print the raw aggregated response as JSON")
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kind := search.KindWeb
	if searchImages {
		kind = search.KindImages
	}
	req := search.Request{
		Query: strings.Join(args, " "),
		Kind:  kind,
		Page:  searchPage,
		Sort:  searchSort,
		Lang:  searchLang,
	}

	lang := searchLang
	if lang == "" {
		lang = cfg.Search.DefaultLang
	}

	resp, err := a.engine.Search(ctx, req)
	out := cmd.OutOrStdout()
	if searchJSON {
		if err != nil {
			return err
		}
		enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	printer := render.NewPrinter(out)
	if err != nil {
		printer.Error(err, lang)
		return err
	}
	return printer.Results(resp, lang)
}
