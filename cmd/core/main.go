package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/go-telegram/bot"
	"github.com/joho/godotenv"

	terranote "github.com/set-night/terranote"
	"github.com/set-night/terranote/internal/config"
	"github.com/set-night/terranote/internal/handler"
	"github.com/set-night/terranote/internal/inbound"
	"github.com/set-night/terranote/internal/rabbitmq"
	"github.com/set-night/terranote/internal/repository"
	"github.com/set-night/terranote/internal/service"
	"github.com/set-night/terranote/internal/telegram"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Optional .env for local development
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "failed to read .env: %v\n", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	// Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Event log
	eventLog, closeLog, err := openEventLog(ctx, cfg)
	if err != nil {
		slog.Error("failed to open event log", "backend", cfg.EventsBackend, "error", err)
		os.Exit(1)
	}
	defer closeLog()

	// Callback sinks
	var sinks []service.Sink
	if cfg.CallbackURL != "" {
		sinks = append(sinks, service.NewWebhookSink(cfg.CallbackURL, cfg.CallbackTimeout))
	}
	if cfg.AMQPURL != "" {
		amqpPublisher, err := rabbitmq.NewAMQPPublisher(cfg.AMQPURL)
		if err != nil {
			slog.Error("failed to connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		defer amqpPublisher.Close()
		sinks = append(sinks, rabbitmq.NewEventSink(amqpPublisher, cfg.AMQPExchange))
	}

	// Operator alerts
	var reporter service.FailureReporter
	var tgLogger *telegram.TelegramLogger
	if cfg.TelegramAlertsEnabled() {
		b, err := bot.New(cfg.BotToken, bot.WithSkipGetMe())
		if err != nil {
			slog.Error("failed to create bot", "error", err)
			os.Exit(1)
		}
		tgLogger = telegram.NewTelegramLogger(b, cfg)
		reporter = tgLogger
	}

	// Initialize services
	store := service.NewSessionStore(cfg.SessionTTL, cfg.StoreShards)
	normalizer, err := inbound.NewNormalizer(time.Now)
	if err != nil {
		slog.Error("failed to compile payload schemas", "error", err)
		os.Exit(1)
	}
	publisher := service.NewOSMPublisher(
		cfg.OSMAPIURL,
		cfg.OSMAccessToken,
		cfg.OSMTimeout,
		cfg.SessionTTL*config.PublishedCacheTTLFactor,
	)
	notifier := service.NewNotifier(eventLog, sinks...)
	engine := service.NewEngine(service.EngineDeps{
		Store:     store,
		Publisher: publisher,
		Notifier:  notifier,
		Reporter:  reporter,
	})

	// Start expiry sweeps
	scheduler := service.NewExpiryScheduler(store, cfg.SweepInterval, time.Now)
	go scheduler.Run(ctx)

	// Initialize handler
	h := handler.New(handler.Deps{
		Cfg:        cfg,
		Engine:     engine,
		Normalizer: normalizer,
		Sessions:   store,
		Events:     notifier,
	})
	app := handler.NewApp(h)

	go func() {
		<-ctx.Done()
		slog.Info("shutting down")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			slog.Error("server shutdown", "error", err)
		}
	}()

	slog.Info("starting server",
		"port", cfg.Port,
		"session_ttl", cfg.SessionTTL,
		"osm_api_url", cfg.OSMAPIURL,
		"events_backend", cfg.EventsBackend,
		"sinks", len(sinks),
		"telegram_alerts", tgLogger != nil,
	)
	if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}

	if tgLogger != nil {
		tgLogger.Wait()
	}
	slog.Info("server stopped gracefully")
}

func openEventLog(ctx context.Context, cfg *config.Config) (service.EventLog, func(), error) {
	switch cfg.EventsBackend {
	case config.EventsBackendPostgres:
		if err := repository.RunMigrations(cfg.DatabaseURL, terranote.MigrationsFS, "migrations"); err != nil {
			return nil, nil, err
		}
		pool, err := repository.NewPool(ctx, cfg.DatabaseURL, repository.PoolOptions{
			MaxConns:        cfg.DBMaxConns,
			MinConns:        cfg.DBMinConns,
			MaxConnIdleTime: cfg.DBMaxConnIdleTime,
		})
		if err != nil {
			return nil, nil, err
		}
		return repository.NewPostgresEventLog(pool), pool.Close, nil

	case config.EventsBackendDynamoDB:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("load aws config: %w", err)
		}
		log, err := repository.NewDynamoEventLog(awsdynamodb.NewFromConfig(awsCfg), cfg.EventsDynamoDBTable)
		if err != nil {
			return nil, nil, err
		}
		return log, func() {}, nil

	default:
		return repository.NewMemoryEventLog(cfg.EventsMaxStored), func() {}, nil
	}
}
