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

	"spacebook/internal/api"
	"spacebook/internal/config"
	"spacebook/internal/database"
	"spacebook/internal/domain"
	"spacebook/internal/events"
	"spacebook/internal/export"
	"spacebook/internal/locker"
	"spacebook/internal/logging"
	"spacebook/internal/metrics"
	"spacebook/internal/models"
	"spacebook/internal/notify"
	"spacebook/internal/service"
	"spacebook/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

type seedConfig struct {
	Spaces []models.Space `yaml:"spaces"`
	Users  []models.User  `yaml:"users"`
}

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

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := seedCatalog(ctx, db, &logger); err != nil {
		return err
	}

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	bus := events.NewEventBus()
	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		metrics.SubscribeEvents(bus)
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	sender, err := initSender(cfg, &logger)
	if err != nil {
		return err
	}
	pollInterval, _ := time.ParseDuration(cfg.Notifications.Worker.PollInterval)
	notifier := worker.NewNotificationQueue(
		db,
		sender,
		redisClient,
		worker.PolicyFromConfig(cfg.Notifications.Worker),
		pollInterval,
		&logger,
	)
	go notifier.Start(ctx)

	backup := database.NewBackupService(db, cfg.Backup, &logger)
	go backup.Start(ctx)

	loc, err := time.LoadLocation(cfg.App.Timezone)
	if err != nil {
		logger.Warn().Err(err).Str("timezone", cfg.App.Timezone).Msg("unknown timezone, using UTC")
		loc = time.UTC
	}

	svcLogger := logging.Component(&logger, "reservations")
	svc := service.NewReservationService(
		db,
		db,
		db,
		notifier,
		initLocker(cfg, redisClient, &logger),
		bus,
		service.Options{
			CascadeRetries: cfg.Scheduling.CascadeRetries,
			Location:       loc,
		},
		svcLogger,
	)

	exporter := export.NewXLSXExporter(svc, cfg.Exports, logging.Component(&logger, "export"))
	httpServer := api.NewHTTPServer(cfg.API, svc, db, exporter, &logger)

	return startServers(ctx, httpServer, cfg, &logger)
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
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

// seedCatalog upserts spaces and users from SEED_PATH. A missing file is not an error.
func seedCatalog(ctx context.Context, db *database.DB, logger *zerolog.Logger) error {
	seedPath := os.Getenv("SEED_PATH")
	if seedPath == "" {
		seedPath = "configs/seed.yaml"
	}
	data, err := os.ReadFile(seedPath)
	if errors.Is(err, os.ErrNotExist) {
		logger.Info().Str("seed_path", seedPath).Msg("no seed file, skipping")
		return nil
	}
	if err != nil {
		logger.Error().Err(err).Str("seed_path", seedPath).Msg("read seed")
		return err
	}

	var seed seedConfig
	if err := yaml.Unmarshal(data, &seed); err != nil {
		logger.Error().Err(err).Str("seed_path", seedPath).Msg("parse seed")
		return err
	}

	if err := db.UpsertSpaces(ctx, seed.Spaces); err != nil {
		return fmt.Errorf("seed spaces: %w", err)
	}
	if err := db.UpsertUsers(ctx, seed.Users); err != nil {
		return fmt.Errorf("seed users: %w", err)
	}
	logger.Info().Int("spaces", len(seed.Spaces)).Int("users", len(seed.Users)).Msg("catalog seeded")
	return nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := locker.NewRedisClient(cfg.Redis)
	if err := locker.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func initLocker(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) domain.SlotLocker {
	local := locker.NewMemoryLocker(cfg.Scheduling.LockWait())
	if redisClient == nil {
		return local
	}
	lockLogger := logging.Component(logger, "locker")
	primary := locker.NewRedisLocker(redisClient, cfg.Scheduling.LockTTL(), cfg.Scheduling.LockWait(), lockLogger)
	return locker.NewFailoverLocker(primary, local, lockLogger)
}

func initSender(cfg *config.Config, logger *zerolog.Logger) (notify.Sender, error) {
	mailLogger := logging.Component(logger, "mailer")
	if !cfg.Notifications.SMTP.Enabled {
		logger.Warn().Msg("smtp disabled, notifications will only be logged")
		return notify.NewLogSender(mailLogger), nil
	}
	mailer, err := notify.NewSMTPMailer(cfg.Notifications.SMTP, mailLogger)
	if err != nil {
		logger.Error().Err(err).Msg("init smtp mailer")
		return nil, err
	}
	return mailer, nil
}

func startServers(
	ctx context.Context,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
