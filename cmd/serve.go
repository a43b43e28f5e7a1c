package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kayz/kidsearch/internal/config"
	"github.com/kayz/kidsearch/internal/cron"
	"github.com/kayz/kidsearch/internal/logger"
	"github.com/kayz/kidsearch/internal/webui"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the kidsearch web UI and JSON API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (default from config, 8686)")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	port := cfg.Server.Port
	if servePort > 0 {
		port = servePort
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := cron.NewScheduler()
	var pruners []cron.Pruner
	for _, c := range a.caches() {
		pruners = append(pruners, c)
	}
	var refresher cron.QuotaRefresher
	if a.quota != nil {
		refresher = a.quota
	}
	if err := cron.RegisterMaintenance(scheduler, pruners, refresher); err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	watcher, err := config.NewWatcher(activeConfigPath(), func(next *config.Config) {
		a.engine.ApplyConfig(next)
	})
	if err != nil {
		logger.Warn("[Serve] config reload disabled: %v", err)
	} else {
		watcher.Start(ctx)
		defer watcher.Stop()
	}

	var quota webui.QuotaReporter
	if a.quota != nil {
		quota = a.quota
	}
	server := webui.NewServer(a.engine, quota, cfg.Search.DefaultLang).WithJobs(scheduler)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("[Serve] listening on http://127.0.0.1:%d", port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("web server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("[Serve] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
