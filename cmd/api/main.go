package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"staybook/internal/api"
	"staybook/internal/availability"
	"staybook/internal/bot"
	"staybook/internal/config"
	"staybook/internal/database"
	"staybook/internal/domain"
	"staybook/internal/events"
	"staybook/internal/google"
	"staybook/internal/logging"
	"staybook/internal/metrics"
	"staybook/internal/mq"
	"staybook/internal/notify"
	"staybook/internal/repository"
	"staybook/internal/service"
	"staybook/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const idempotencyPurgeInterval = 10 * time.Minute

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := initDatabase(ctx, cfg, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	catalog := service.NewCatalogService(db, logging.Component(&logger, "catalog"))
	if err := catalog.Refresh(ctx); err != nil {
		return err
	}

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
	}

	bus := initEventBus(cfg, &logger)
	if bus.publisher != nil {
		defer func() { _ = bus.publisher.Close() }()
		defer bus.forwarder.Close()
	}

	botAPI := initTelegram(cfg, &logger)
	notifier := initNotifier(ctx, cfg, botAPI, &logger)
	syncer := initCalendarSync(ctx, cfg, db, redisClient, notifier, &logger)

	index := availability.NewIndex()
	bookings := service.NewBookingService(db, catalog, index, bus.bus, notifier, syncer,
		logging.Component(&logger, "booking_service"))
	if err := bookings.WarmUp(ctx); err != nil {
		return err
	}

	if botAPI != nil && cfg.Telegram.Commands {
		operator := bot.NewBot(bot.NewBotWrapper(botAPI), bookings, catalog, cfg.Telegram.ChatIDs, &logger)
		go operator.Start(ctx)
		defer operator.Stop()
	}

	go database.NewBackupService(db, cfg.Backup, logging.Component(&logger, "backup")).Run(ctx)

	deps := api.Deps{
		Bookings:    bookings,
		Catalog:     catalog,
		Idempotency: initIdempotency(ctx, cfg, redisClient, &logger),
	}

	if cfg.Monitoring.PrometheusEnabled {
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	return startServers(ctx, cfg, deps, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "main").Logger()

	return cfg, logger, closer, nil
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}

	if err := db.SyncCatalog(ctx, cfg.Catalog.Properties, cfg.Catalog.Customers); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sync catalog: %w", err)
	}
	logger.Info().
		Int("properties", len(cfg.Catalog.Properties)).
		Int("customers", len(cfg.Catalog.Customers)).
		Msg("catalog synced")
	return db, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

type eventBus struct {
	bus       *events.EventBus
	publisher *mq.Publisher
	forwarder *mq.Forwarder
}

func initEventBus(cfg *config.Config, logger *zerolog.Logger) eventBus {
	bus := events.NewEventBus()
	busLogger := logging.Component(logger, "events")
	bus.OnError(func(e *events.Event, err error) {
		busLogger.Warn().Err(err).Str("event", e.Type).Msg("event handler failed")
	})
	bus.Subscribe(events.AllEvents, func(e *events.Event) error {
		metrics.IncBookingEvent(e.Type)
		return nil
	})

	if cfg.RabbitMQ.URL == "" {
		return eventBus{bus: bus}
	}
	publisher, err := mq.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
	if err != nil {
		logger.Warn().Err(err).Msg("rabbitmq init failed, events stay in-process")
		return eventBus{bus: bus}
	}
	forwarder := mq.Forward(bus, publisher, busLogger)
	logger.Info().Str("exchange", cfg.RabbitMQ.Exchange).Msg("forwarding booking events to rabbitmq")
	return eventBus{bus: bus, publisher: publisher, forwarder: forwarder}
}

func initTelegram(cfg *config.Config, logger *zerolog.Logger) *tgbotapi.BotAPI {
	if cfg.Telegram.BotToken == "" {
		return nil
	}
	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without telegram")
		return nil
	}
	botAPI.Debug = cfg.Telegram.Debug
	return botAPI
}

func initNotifier(ctx context.Context, cfg *config.Config, botAPI *tgbotapi.BotAPI, logger *zerolog.Logger) domain.Notifier {
	sinks := notify.Multi{notify.NewLogNotifier(logging.Component(logger, "notify"))}
	if botAPI == nil {
		return sinks
	}

	telegram := notify.NewTelegramNotifierWithSender(botAPI, cfg.Telegram.ChatIDs, logging.Component(logger, "telegram_notify"))
	go telegram.Run(ctx)
	return append(sinks, telegram)
}

func initCalendarSync(
	ctx context.Context,
	cfg *config.Config,
	db *database.DB,
	redisClient *redis.Client,
	notifier domain.Notifier,
	logger *zerolog.Logger,
) domain.SyncDispatcher {
	if !cfg.CalendarSync.Enabled {
		return nil
	}

	client, err := google.NewCalendarClient(ctx, cfg.Google.CredentialsFile)
	if err != nil {
		logger.Warn().Err(err).Msg("google calendar init failed, continuing without calendar sync")
		return nil
	}

	w := worker.NewCalendarWorker(db, client, redisClient, notifier, worker.Options{
		Timeout:       cfg.CalendarSync.Timeout,
		QueueKey:      cfg.CalendarSync.QueueKey,
		DeadLetterKey: cfg.CalendarSync.DeadLetterKey,
		PollInterval:  cfg.CalendarSync.PollInterval,
	}, logger)
	go w.Start(ctx)

	logger.Info().Dur("timeout", cfg.CalendarSync.Timeout).Msg("google calendar sync enabled")
	return w
}

func initIdempotency(ctx context.Context, cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) domain.IdempotencyStore {
	memory := repository.NewMemoryIdempotencyStore(cfg.Idempotency.TTL)
	go func() {
		ticker := time.NewTicker(idempotencyPurgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := memory.Purge(); n > 0 {
					logger.Debug().Int("purged", n).Msg("expired idempotency keys removed")
				}
			}
		}
	}()

	if redisClient == nil {
		return memory
	}
	primary := repository.NewRedisIdempotencyStore(redisClient, cfg.Idempotency.TTL)
	return repository.NewFailoverIdempotencyStore(primary, memory, logging.Component(logger, "idempotency"))
}

func startServers(ctx context.Context, cfg *config.Config, deps api.Deps, logger *zerolog.Logger) error {
	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		srv, err := api.NewGRPCServer(&cfg.API, deps, logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
		grpcServer = srv
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	var httpServer *api.HTTPServer
	if cfg.API.HTTP.Enabled {
		httpServer = api.NewHTTPServer(cfg.API, deps, logger)
		go func() {
			if err := httpServer.Start(); err != nil {
				logger.Error().Err(err).Msg("http server stopped")
			}
		}()
	}

	logger.Info().
		Bool("grpc", grpcServer != nil).
		Bool("http", httpServer != nil).
		Int("http_port", cfg.API.HTTP.Port).
		Int("grpc_port", cfg.API.GRPC.Port).
		Msg("staybook started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	if httpServer != nil {
		_ = httpServer.Shutdown(shutdownCtx)
	}

	logger.Info().Msg("staybook stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
