package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aptdesk/internal/api"
	"aptdesk/internal/auth"
	"aptdesk/internal/config"
	"aptdesk/internal/database"
	"aptdesk/internal/events"
	"aptdesk/internal/google"
	"aptdesk/internal/metrics"
	"aptdesk/internal/models"
	"aptdesk/internal/repository"
	"aptdesk/internal/reservation"
	"aptdesk/internal/sweeper"
	"aptdesk/shared/access"
	"aptdesk/shared/audit"
	"aptdesk/shared/notify"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("APTDESK_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Sessions live in redis when it is configured, with sqlite as the
	// durable fallback. Without redis, sqlite serves them directly.
	var rdb *redis.Client
	var sessions repository.SessionRepository = db
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		sessions = repository.NewFailoverSessionRepository(
			repository.NewRedisSessionRepository(rdb), db, &logger)
	}

	bus := events.NewEventBus()

	resSvc := reservation.NewService(db, bus, cfg.Reservation.FailOpen, &logger)
	resSvc.Limits = reservation.Limits{
		MaxWindow:  cfg.MaxReservationWindow(),
		MaxAdvance: cfg.MaxAdvance(),
	}

	authSvc := auth.NewService(db, sessions, cfg.Auth.JWTSecret,
		cfg.AccessTokenTTL(), cfg.RefreshTokenTTL(), &logger)
	accessSvc := access.NewService(db, db, logger)

	var tgSender *notify.TelegramSender
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" {
		tgSender, err = notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.AdminChatIDs)
		if err != nil {
			logger.Fatal().Err(err).Msg("create telegram sender error")
		}
		senders = append(senders, tgSender)
	}
	if cfg.Notify.WebhookURL != "" {
		senders = append(senders, notify.NewWebhookSender(cfg.Notify.WebhookURL))
	}
	if len(senders) > 0 {
		notifyMetrics := notify.NewMetrics("aptdesk")
		dispatcher := notify.NewDispatcher(senders, notify.RateLimiterConfig{
			Rate:  cfg.Notify.RatePerSecond,
			Burst: cfg.Notify.Burst,
		}, notify.DefaultRetryConfig(), notifyMetrics, logger)

		notifySvc := notify.NewService(dispatcher, notify.Config{}, notifyMetrics, logger)
		notifySvc.Start()
		defer notifySvc.Stop()

		for _, eventType := range []string{
			reservation.EventCreated,
			reservation.EventDecided,
			reservation.EventCancelled,
			reservation.EventCompleted,
		} {
			bus.Subscribe(eventType, func(e events.Event) error {
				return notifySvc.HandleEvent(e.Type, e.Payload)
			})
		}
	}

	sw := sweeper.New(db, resSvc, cfg.SweepInterval(), logger)
	go sw.Start(ctx)

	if cfg.Backup.Enabled {
		backupSvc := database.NewBackupService(cfg.Database.Path, database.BackupConfig{
			Enabled:       cfg.Backup.Enabled,
			IntervalHours: cfg.Backup.IntervalHours,
			Path:          cfg.Backup.Path,
			RetentionDays: cfg.Backup.RetentionDays,
		}, &logger)
		go backupSvc.Start(ctx)
	}

	if cfg.Audit.Enabled {
		var auditNotifier audit.Notifier
		if tgSender != nil {
			auditNotifier = tgSender
		}
		auditSvc := audit.NewService(&audit.Config{
			DataRetentionDays: cfg.Audit.DataRetentionDays,
			ExportOnStart:     cfg.Audit.ExportOnStart,
			ExportPath:        cfg.Audit.ExportPath,
		}, db, audit.NewExcelizeWriter, auditNotifier, db, logger)
		auditSvc.Start()
		defer auditSvc.Stop()
	}

	if cfg.Sheets.Enabled {
		sheetsSvc, err := google.NewSheetsService(ctx,
			cfg.Sheets.CredentialsFile, cfg.Sheets.SpreadsheetID, cfg.Sheets.SheetName, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("create sheets service error")
		}
		go sheetsSvc.StartPeriodicSync(ctx, 0, func(ctx context.Context) ([]models.Reservation, error) {
			list, _, err := db.ListReservations(ctx, database.ReservationFilter{})
			return list, err
		})

		// Status changes land in the sheet right away; the periodic sync
		// repairs anything missed.
		for _, eventType := range []string{
			reservation.EventDecided,
			reservation.EventCancelled,
			reservation.EventCompleted,
		} {
			bus.Subscribe(eventType, func(e events.Event) error {
				var r models.Reservation
				if err := json.Unmarshal(e.Payload, &r); err != nil {
					return err
				}
				return sheetsSvc.UpdateReservation(ctx, &r)
			})
		}
	}

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, db, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	srv := api.NewHTTPServer(api.Options{
		Addr:            fmt.Sprintf(":%d", cfg.Server.Port),
		ReadTimeout:     time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:    time.Duration(cfg.Server.WriteTimeout) * time.Second,
		LoginRatePerMin: cfg.Auth.LoginRatePerMin,
		LoginBurst:      cfg.Auth.LoginBurst,
	}, db, resSvc, authSvc, accessSvc, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	logger.Info().Int("port", cfg.Server.Port).Msg("reservation desk started")

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server error")
		}
		return
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Error().Err(err).Msg("http server shutdown error")
	}
}

func startHealthServer(ctx context.Context, port int, db *database.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := db.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
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
