package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/psds-microservice/triage-service/internal/application"
	"github.com/psds-microservice/triage-service/internal/logging"
	"github.com/spf13/cobra"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Run HTTP API of the dashboard",
	RunE:  runAPI,
}

func runAPI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.Setup(cfg.AppEnv, cfg.LogLevel)

	api, err := application.NewAPI(cfg, logger)
	if err != nil {
		return fmt.Errorf("api: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := api.Run(ctx); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
