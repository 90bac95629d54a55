package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/vitalhub/scheduling-platform/internal/api/router"
	"github.com/vitalhub/scheduling-platform/internal/audit"
	"github.com/vitalhub/scheduling-platform/internal/availability"
	"github.com/vitalhub/scheduling-platform/internal/calendar"
	appconfig "github.com/vitalhub/scheduling-platform/internal/config"
	"github.com/vitalhub/scheduling-platform/internal/http/handlers"
	"github.com/vitalhub/scheduling-platform/internal/notify"
	"github.com/vitalhub/scheduling-platform/internal/observability/metrics"
	"github.com/vitalhub/scheduling-platform/internal/reminders"
	"github.com/vitalhub/scheduling-platform/internal/scheduling"
	"github.com/vitalhub/scheduling-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting scheduling-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("database unreachable", "error", err)
		os.Exit(1)
	}

	// Audit keeps its own database/sql handle over the pgx stdlib driver.
	auditDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open audit db", "error", err)
		os.Exit(1)
	}
	defer func() { _ = auditDB.Close() }()

	loc, err := time.LoadLocation(cfg.DefaultTimezone)
	if err != nil {
		logger.Error("invalid DEFAULT_TIMEZONE", "timezone", cfg.DefaultTimezone, "error", err)
		os.Exit(1)
	}

	schedulingMetrics := metrics.NewSchedulingMetrics(nil)

	appointmentStore := scheduling.NewStore(pool)
	availabilityStore := availability.NewStore(pool)

	var ruleSource availability.RuleSource = availabilityStore
	var ruleCache *availability.CachedRules
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient := redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, rule cache disabled", "error", err)
		} else {
			ruleCache = availability.NewCachedRules(availabilityStore, redisClient, cfg.RuleCacheTTL, logger)
			ruleSource = ruleCache
		}
	}

	engine := availability.NewEngine(ruleSource, availabilityStore, appointmentStore, loc, logger)

	reminderScheduler := reminders.NewScheduler(reminders.NewStore(pool), logger)
	auditService := audit.NewService(auditDB)

	notifyStore := notify.NewStore(pool)
	notifyService := notify.NewService(notifyStore, emailSender(cfg, logger), logger)

	var calendarSync *calendar.Syncer
	if cfg.CalendarBaseURL != "" {
		client, err := calendar.NewHTTPClient(calendar.HTTPConfig{
			BaseURL:  cfg.CalendarBaseURL,
			APIToken: cfg.CalendarAPIToken,
		})
		if err != nil {
			logger.Error("invalid calendar bridge config", "error", err)
			os.Exit(1)
		}
		calendarSync = calendar.NewSyncer(client, cfg.CalendarSyncTimeout, logger)
	}

	svcCfg := scheduling.ServiceConfig{
		Store:     appointmentStore,
		Checker:   engine,
		Reminders: reminderScheduler,
		Auditor:   auditService,
		Notifier:  notifyService,
		Metrics:   schedulingMetrics,
		Logger:    logger,
	}
	if calendarSync != nil {
		svcCfg.Calendar = calendarSync
	}
	schedulingService := scheduling.NewService(svcCfg)

	r := router.New(&router.Config{
		Logger:             logger,
		Appointments:       handlers.NewAppointmentsHandler(schedulingService, logger),
		Availability:       handlers.NewAvailabilityHandler(availabilityStore, ruleCache, logger),
		Notifications:      handlers.NewNotificationsHandler(notifyStore, logger),
		Audit:              handlers.NewAuditHandler(auditService, logger),
		AuthSecret:         cfg.AuthJWTSecret,
		MetricsHandler:     promhttp.Handler(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		HealthCheck:        healthCheck(pool),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// emailSender picks the configured email provider. Anything unconfigured
// falls back to the logging stub.
func emailSender(cfg *appconfig.Config, logger *logging.Logger) notify.EmailSender {
	switch cfg.EmailProvider {
	case "sendgrid":
		if sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); sender != nil {
			return sender
		}
		logger.Warn("sendgrid selected but not configured, using stub sender")
	case "ses":
		awsCfg, err := loadAWSConfig(cfg)
		if err != nil {
			logger.Warn("failed to load AWS config, using stub sender", "error", err)
			break
		}
		var sesOpts []func(*sesv2.Options)
		if cfg.AWSEndpointOverride != "" {
			sesOpts = append(sesOpts, func(o *sesv2.Options) {
				o.BaseEndpoint = aws.String(cfg.AWSEndpointOverride)
			})
		}
		if sender := notify.NewSESSender(sesv2.NewFromConfig(awsCfg, sesOpts...), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SESFromName,
		}, logger); sender != nil {
			return sender
		}
	}
	return notify.NewStubEmailSender(logger)
}

func loadAWSConfig(cfg *appconfig.Config) (awsCfg aws.Config, err error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWSRegion),
	}
	if cfg.AWSAccessKeyID != "" && cfg.AWSSecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}
	return awsconfig.LoadDefaultConfig(context.Background(), opts...)
}

func healthCheck(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"degraded"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}
