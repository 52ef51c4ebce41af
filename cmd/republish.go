package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/psds-microservice/triage-service/internal/database"
	"github.com/psds-microservice/triage-service/internal/kafka"
	"github.com/psds-microservice/triage-service/internal/logging"
	"github.com/psds-microservice/triage-service/internal/service"
	"github.com/spf13/cobra"
)

var republishCmd = &cobra.Command{
	Use:   "republish",
	Short: "Send a snapshot event for every active ticket to Kafka",
	RunE:  runRepublish,
}

func runRepublish(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.Setup(cfg.AppEnv, cfg.LogLevel).With("component", "republish")

	producer := kafka.NewProducer(kafka.ParseBrokers(cfg.Kafka.Brokers), cfg.Kafka.TopicTicket)
	if !producer.Enabled() {
		return fmt.Errorf("republish: KAFKA_BROKERS is not set")
	}
	defer producer.Close()

	db, err := database.Open(cfg.DSN())
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer database.Close(db)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	rows, err := service.NewTicketService(db, nil).ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list tickets: %w", err)
	}
	logger.Info("found tickets", "count", len(rows))

	for i, r := range rows {
		payload := map[string]any{
			"ticket_id":  r.ID,
			"category":   r.Category,
			"status":     r.Status,
			"priority":   r.Priority,
			"created_at": r.CreatedAt,
		}
		if err := producer.ProduceTicketEventSync(ctx, kafka.EventRepublished, payload); err != nil {
			return fmt.Errorf("republish %s: %w", r.ID, err)
		}
		if (i+1)%50 == 0 || i == len(rows)-1 {
			logger.Info("sent", "done", i+1, "total", len(rows))
		}
	}
	return nil
}
