package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hvacbook/internal/api"
	"hvacbook/internal/config"
	"hvacbook/internal/database"
	"hvacbook/internal/domain"
	"hvacbook/internal/events"
	"hvacbook/internal/invite"
	"hvacbook/internal/logging"
	"hvacbook/internal/mail"
	"hvacbook/internal/metrics"
	"hvacbook/internal/repository"
	"hvacbook/internal/schedule"
	"hvacbook/internal/service"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

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

	scheduleCfg, err := loadSlots(cfg.Schedule, &logger)
	if err != nil {
		return err
	}
	catalog, err := schedule.New(scheduleCfg)
	if err != nil {
		logger.Error().Err(err).Msg("build slot catalog")
		return err
	}

	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("business timezone: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, cleanup, err := initStore(ctx, cfg, &logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if !cfg.MailConfigured() {
		logger.Warn().Str("provider", cfg.Mail.Provider).Msg("mail credentials are not set, bookings will be reserved but notifications will fail")
	}
	mailer, err := mail.New(cfg.Mail, cfg.Business.Name, logging.Component(&logger, "mail"))
	if err != nil {
		return err
	}

	bus := events.NewEventBus()
	startMetrics(ctx, cfg, bus, &logger)

	svc := service.NewBookingService(
		store,
		catalog,
		invite.NewICSEncoder(),
		mailer,
		bus,
		service.BusinessInfo{
			Name:     cfg.Business.Name,
			Sender:   cfg.Mail.FromAddress,
			Inbox:    cfg.Mail.BusinessInbox,
			Location: loc,
		},
		service.Timeouts{
			Invite:   cfg.Booking.InviteTimeout,
			Delivery: cfg.Booking.DeliveryTimeout,
		},
		logging.Component(&logger, "booking"),
	)

	httpServer := api.NewHTTPServer(cfg.HTTP, svc, logging.Component(&logger, "http"))

	return startServer(ctx, httpServer, cfg, &logger)
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

// loadSlots reads the slots file when present; otherwise the schedule
// section of the main config is used.
func loadSlots(fallback config.ScheduleConfig, logger *zerolog.Logger) (config.ScheduleConfig, error) {
	slotsPath := os.Getenv("SLOTS_PATH")
	if slotsPath == "" {
		slotsPath = "configs/slots.yaml"
	}
	slotsData, err := os.ReadFile(slotsPath)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Info().Str("slots_path", slotsPath).Str("policy", fallback.Policy).Msg("slots file not found, using config schedule")
		return fallback, nil
	}
	if err != nil {
		logger.Error().Err(err).Str("slots_path", slotsPath).Msg("read slots")
		return config.ScheduleConfig{}, err
	}

	var slotsConfig struct {
		Schedule config.ScheduleConfig `yaml:"schedule"`
	}
	if err := yaml.Unmarshal(slotsData, &slotsConfig); err != nil {
		logger.Error().Err(err).Str("slots_path", slotsPath).Msg("parse slots")
		return config.ScheduleConfig{}, err
	}

	sc := slotsConfig.Schedule
	if sc.Policy == "" {
		sc.Policy = config.PolicyWeekly
	}
	logger.Info().Str("slots_path", slotsPath).Str("policy", sc.Policy).Msg("slots loaded")
	return sc, nil
}

func initStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (domain.ReservationStore, func(), error) {
	switch cfg.Store.Driver {
	case config.StoreRedis:
		client := repository.NewRedisClient(cfg.Redis)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := repository.Ping(pingCtx, client); err != nil {
			_ = client.Close()
			logger.Error().Err(err).Str("addr", cfg.Redis.Address).Msg("redis connection failed")
			return nil, nil, err
		}
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
		return repository.NewRedisReservationStore(client), func() { _ = repository.Close(client) }, nil

	case config.StoreSQLite:
		db, err := database.NewDB(cfg.Store.Path, logging.Component(logger, "database"))
		if err != nil {
			logger.Error().Err(err).Str("db_path", cfg.Store.Path).Msg("init database")
			return nil, nil, err
		}
		if count, err := db.CountReservations(ctx); err != nil {
			logger.Warn().Err(err).Msg("count reservations")
		} else {
			logger.Info().Str("db_path", db.Path()).Int("reservations", count).Msg("sqlite store opened")
		}
		startBackups(ctx, cfg, db.Path(), logger)
		return db, func() { _ = db.Close() }, nil

	default:
		logger.Warn().Msg("using in-memory reservation store, reservations are lost on restart")
		return repository.NewMemoryReservationStore(), func() {}, nil
	}
}

func startBackups(ctx context.Context, cfg *config.Config, dbPath string, logger *zerolog.Logger) {
	if !cfg.Backup.Enabled {
		return
	}
	backups := database.NewBackupService(dbPath, cfg.Backup, logging.Component(logger, "backup"))
	go func() {
		if err := backups.Start(ctx); err != nil {
			logger.Error().Err(err).Msg("backup service stopped")
		}
	}()
}

func startMetrics(ctx context.Context, cfg *config.Config, bus *events.EventBus, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	subscribeBookingMetrics(bus, logger)

	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func subscribeBookingMetrics(bus *events.EventBus, logger *zerolog.Logger) {
	handler := func(event *events.Event) error {
		payload, err := events.DecodeBooking(event)
		if err != nil {
			logger.Warn().Err(err).Str("event_type", event.Type).Msg("decode booking event")
			return err
		}
		metrics.IncBooking(string(payload.Outcome))
		if payload.DeliverySeconds > 0 {
			metrics.ObserveDelivery(time.Duration(payload.DeliverySeconds * float64(time.Second)))
		}
		return nil
	}

	for _, eventType := range []string{
		events.EventBookingConfirmed,
		events.EventBookingInviteFailed,
		events.EventBookingDeliveryFailed,
		events.EventBookingConflict,
	} {
		bus.Subscribe(eventType, handler)
	}
}

func startServer(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	errc := make(chan error, 1)
	go func() {
		errc <- httpServer.Start()
	}()

	logger.Info().Int("http_port", cfg.HTTP.Port).Str("store", cfg.Store.Driver).Msg("API server started")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errc:
		if err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}

	logger.Info().Msg("API server stopped")
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
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
