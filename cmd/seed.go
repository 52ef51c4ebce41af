package cmd

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/psds-microservice/triage-service/internal/catalog"
	"github.com/psds-microservice/triage-service/internal/controller"
	"github.com/psds-microservice/triage-service/internal/database"
	"github.com/psds-microservice/triage-service/internal/logging"
	"github.com/psds-microservice/triage-service/internal/model"
	"github.com/psds-microservice/triage-service/internal/seed"
	"github.com/psds-microservice/triage-service/internal/service"
	"github.com/spf13/cobra"
)

const cliTimeout = 2 * time.Minute

var (
	seedMode  string
	seedCount int
	seedValue int64
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Replace all tickets with test data (demo set or generated)",
	RunE:  runSeed,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all tickets and their chat history",
	RunE:  runClear,
}

func init() {
	seedCmd.Flags().StringVar(&seedMode, "mode", controller.SeedDemo, "demo | generated")
	seedCmd.Flags().IntVar(&seedCount, "count", seed.DefaultGenerated, "number of generated tickets")
	seedCmd.Flags().Int64Var(&seedValue, "rand-seed", 0, "random seed for generated mode (0 = current time)")
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.Setup(cfg.AppEnv, cfg.LogLevel)

	now := time.Now()
	var tickets []model.Ticket
	switch seedMode {
	case controller.SeedDemo:
		tickets = seed.Demo(now)
	case controller.SeedGenerated:
		if seedCount <= 0 {
			return fmt.Errorf("seed: --count must be positive")
		}
		cat, err := catalog.Load(cfg.CatalogPath)
		if err != nil {
			return fmt.Errorf("catalog: %w", err)
		}
		if seedValue == 0 {
			seedValue = now.UnixNano()
		}
		tickets = seed.Generate(rand.New(rand.NewSource(seedValue)), now, cat, seedCount)
	default:
		return fmt.Errorf("seed: unknown mode %q (want demo or generated)", seedMode)
	}

	db, err := database.Open(cfg.DSN())
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer database.Close(db)

	ctx, cancel := context.WithTimeout(context.Background(), cliTimeout)
	defer cancel()
	ids, err := service.NewTicketService(db, nil).Seed(ctx, tickets)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	logger.Info("seed: ok", "mode", seedMode, "tickets", len(ids))
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.Setup(cfg.AppEnv, cfg.LogLevel)

	db, err := database.Open(cfg.DSN())
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer database.Close(db)

	ctx, cancel := context.WithTimeout(context.Background(), cliTimeout)
	defer cancel()
	if err := service.NewTicketService(db, nil).Clear(ctx); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	logger.Info("clear: ok")
	return nil
}
