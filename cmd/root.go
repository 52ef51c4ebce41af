package cmd

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/psds-microservice/triage-service/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "triage-service",
	Short: "Operator dashboard for citizen complaints from the Telegram bot",
	RunE:  runAPI,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(apiCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(republishCmd)
}

// loadConfig читает .env (из корня репозитория при запуске из bin/) и проверяет конфиг.
func loadConfig() (*config.Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")
	_ = godotenv.Load("../../.env")
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
