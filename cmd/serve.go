package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	apireports "github.com/sldctools/backdown/api/reports"
	"github.com/sldctools/backdown/app"
	"github.com/sldctools/backdown/config"
	"github.com/sldctools/backdown/infra/logger"
	"github.com/sldctools/backdown/infra/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the report API",
	RunE:  serve,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logg := logger.New("serve")

	if cfg.Metrics.PrometheusEnabled {
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Metrics.PrometheusPort)
			if err := metrics.StartPromServer(ctx, addr); err != nil {
				logg.Errorf("prom server: %v", err)
			}
		}()
	}

	svc, err := app.New(cfg, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logg.Errorf("service close: %v", err)
		}
	}()

	handler := apireports.New(svc, cfg.Server.AuthToken, logg)
	srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler.Mux()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logg.Errorf("server shutdown: %v", err)
		}
	}()

	logg.Infof("report API listening on %s", cfg.Server.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
