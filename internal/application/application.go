package application

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/psds-microservice/triage-service/internal/botrelay"
	"github.com/psds-microservice/triage-service/internal/catalog"
	"github.com/psds-microservice/triage-service/internal/config"
	"github.com/psds-microservice/triage-service/internal/controller"
	"github.com/psds-microservice/triage-service/internal/database"
	"github.com/psds-microservice/triage-service/internal/handler"
	"github.com/psds-microservice/triage-service/internal/kafka"
	"github.com/psds-microservice/triage-service/internal/realtime"
	"github.com/psds-microservice/triage-service/internal/router"
	"github.com/psds-microservice/triage-service/internal/service"
	"github.com/psds-microservice/triage-service/internal/settings"
	"github.com/psds-microservice/triage-service/internal/storage"
	"github.com/redis/go-redis/v9"
)

const (
	startupTimeout  = 15 * time.Second
	connectTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

// NewConnector открывает БД, сервис заявок и слушатель уведомлений.
// Каждый вызов создаёт новое подключение; закрывает его контроллер.
func NewConnector(cfg *config.Config, events kafka.TicketEventProducer) controller.Connector {
	return func(ctx context.Context) (*controller.Backend, error) {
		db, err := database.Open(cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		return &controller.Backend{
			Tickets: service.NewTicketService(db, events),
			Changes: realtime.NewListener(cfg.DSN(), cfg.RealtimeChannel),
			Close:   func() error { return database.Close(db) },
		}, nil
	}
}

// API: HTTP-сервер дашборда.
type API struct {
	cfg      *config.Config
	logger   *slog.Logger
	httpSrv  *http.Server
	ctl      *controller.Controller
	producer *kafka.Producer
	redis    *redis.Client
}

// NewAPI собирает зависимости. Внешние сервисы, кроме обязательных настроек,
// необязательны: без Redis настройки живут в памяти, без MinIO вложения не архивируются.
func NewAPI(cfg *config.Config, logger *slog.Logger) (*API, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	a := &API{cfg: cfg, logger: logger}

	var store settings.Store = settings.NewMemoryStore()
	if cfg.RedisURL != "" {
		client, err := settings.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.redis = client
		store = settings.NewRedisStore(client)
	}
	botURL, err := settings.LoadBotURL(ctx, store, cfg.BotBaseURL)
	if err != nil {
		logger.Warn("bot url not loaded, using BOT_BASE_URL", "error", err)
	}
	relay := botrelay.NewClient(botURL.Get)

	var archive controller.Archiver
	if cfg.Minio.Endpoint != "" {
		arc, err := storage.NewArchive(ctx, storage.Options{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
			UseSSL:    cfg.Minio.UseSSL,
			PublicURL: cfg.Minio.PublicURL,
		})
		if err != nil {
			logger.Warn("reply archive disabled", "error", err)
		} else {
			archive = arc
		}
	}

	a.producer = kafka.NewProducer(kafka.ParseBrokers(cfg.Kafka.Brokers), cfg.Kafka.TopicTicket)
	var events kafka.TicketEventProducer
	if a.producer.Enabled() {
		events = a.producer
	}

	a.ctl = controller.New(controller.Options{
		Catalog:   cat,
		Connector: NewConnector(cfg, events),
		Relay:     relay,
		Archive:   archive,
		BotURL:    botURL,
		Logger:    logger,
	})

	h := router.New(router.Handlers{
		Ticket:    handler.NewTicketHandler(a.ctl),
		Dashboard: handler.NewDashboardHandler(a.ctl, cfg.MapStaticURL, time.Local),
		Events:    handler.NewEventsHandler(a.ctl),
		Admin:     handler.NewAdminHandler(a.ctl, relay),
		Image:     handler.NewImageHandler(relay),
		Ready:     handler.Ready(a.ctl),
	}, logger)

	// WriteTimeout не задан: /events держит соединение открытым.
	a.httpSrv = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return a, nil
}

// Run запускает HTTP-сервер и, если включено, подключение к БД; блокируется до отмены ctx.
func (a *API) Run(ctx context.Context) error {
	host := a.cfg.AppHost
	if host == "0.0.0.0" {
		host = "localhost"
	}
	base := "http://" + host + ":" + a.cfg.HTTPPort
	a.logger.Info("HTTP server listening", "addr", a.httpSrv.Addr)
	a.logger.Info("endpoints",
		"swagger", base+"/swagger",
		"health", base+"/health",
		"ready", base+"/ready",
		"metrics", base+"/metrics",
		"api", base+"/api/v1/",
	)

	// отмена ctx закрывает и долгие запросы (/events)
	a.httpSrv.BaseContext = func(net.Listener) context.Context { return ctx }
	errc := make(chan error, 1)
	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	if a.cfg.AutoConnect {
		go func() {
			cctx, cancel := context.WithTimeout(ctx, connectTimeout)
			defer cancel()
			if err := a.ctl.Connect(cctx); err != nil {
				a.logger.Warn("auto-connect failed, staying offline", "error", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-errc:
		runErr = fmt.Errorf("http: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.httpSrv.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("http shutdown: %w", err)
	}
	if err := a.ctl.Close(); err != nil {
		a.logger.Warn("close datastore", "error", err)
	}
	if err := a.producer.Close(); err != nil {
		a.logger.Warn("close kafka producer", "error", err)
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	return runErr
}
