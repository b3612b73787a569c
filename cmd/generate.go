package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sldctools/backdown/app"
	"github.com/sldctools/backdown/config"
	"github.com/sldctools/backdown/infra/logger"
	"github.com/sldctools/backdown/infra/metrics"
)

var station string

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run one report generation",
	RunE:  generate,
}

func init() {
	generateCmd.Flags().StringVarP(&station, "station", "s", "", "station name (overrides configuration)")
	rootCmd.AddCommand(generateCmd)
}

func generate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if station != "" {
		cfg.Instructions.Station = station
	}

	logg := logger.New("generate")
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

	job, err := svc.Generate(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "report written: %s\n", job.OutputFilename)
	return nil
}
