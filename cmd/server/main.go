// Command server runs the tutorbase registration backend.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"tutorbase/internal/assets"
	"tutorbase/internal/audit"
	"tutorbase/internal/identity"
	"tutorbase/internal/onboarding"
	"tutorbase/internal/pending"
	"tutorbase/internal/platform/config"
	"tutorbase/internal/platform/database"
	"tutorbase/internal/platform/health"
	"tutorbase/internal/platform/kafka/producer"
	"tutorbase/internal/platform/logger"
	"tutorbase/internal/platform/metrics"
	"tutorbase/internal/platform/redis"
	profileservice "tutorbase/internal/profile/service"
	"tutorbase/internal/profile/store"
	transport "tutorbase/internal/transport/http"
	"tutorbase/internal/verification"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	healthHandler := health.New(cfg.Server.Environment)

	db, err := database.New(cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if db == nil {
		return errors.New("DATABASE_URL is required")
	}
	defer db.Close() //nolint:errcheck
	healthHandler.RegisterCheck("postgres", func() error {
		checkCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return db.Health(checkCtx)
	})

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close() //nolint:errcheck

	var pendingStore pending.Store
	if redisClient != nil {
		pendingStore = pending.NewRedis(redisClient.Client,
			pending.WithTTL(cfg.Pending.TTL),
			pending.WithExpiredCounter(m.PendingExpiredTotal),
		)
		healthHandler.RegisterCheck("redis", func() error {
			checkCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return redisClient.Health(checkCtx)
		})
	} else {
		// Single-instance fallback; entries do not survive a restart.
		log.Warn("redis not configured, pending submissions held in memory")
		pendingStore = pending.NewMemory(pending.WithMemoryTTL(cfg.Pending.TTL))
	}

	auditPublisher, closeAudit := buildAuditPublisher(cfg.Kafka, log)
	defer closeAudit()

	idClient := identity.NewHTTPClient(cfg.Identity)

	// The identity provider also fronts object storage, so the uploader
	// shares its endpoint and key.
	uploader := assets.NewHTTPUploader(cfg.Identity.BaseURL, cfg.Identity.APIKey)

	profileSvc, err := profileservice.New(store.NewPostgres(db.DB()),
		profileservice.WithLogger(log),
		profileservice.WithAssetUploader(uploader),
		profileservice.WithAuditPublisher(auditPublisher),
		profileservice.WithMetrics(m),
	)
	if err != nil {
		return fmt.Errorf("build profile service: %w", err)
	}

	verificationSvc := verification.New(idClient, pendingStore, cfg.Verify,
		verification.WithLogger(log),
		verification.WithAuditPublisher(auditPublisher),
		verification.WithMetrics(m),
	)

	onboardingSvc, err := onboarding.New(idClient, pendingStore, profileSvc,
		onboarding.WithLogger(log),
		onboarding.WithAuditPublisher(auditPublisher),
		onboarding.WithMetrics(m),
	)
	if err != nil {
		return fmt.Errorf("build onboarding service: %w", err)
	}

	router := transport.NewRouter(transport.RouterDeps{
		Config:       cfg,
		Logger:       log,
		Metrics:      m,
		Health:       healthHandler,
		Onboarding:   onboardingSvc,
		Verification: verificationSvc,
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Server.Addr, "environment", cfg.Server.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// buildAuditPublisher wires the audit trail to Kafka when brokers are
// configured, and to the structured log otherwise.
func buildAuditPublisher(cfg config.Kafka, log *slog.Logger) (*audit.Publisher, func()) {
	if cfg.Brokers == "" {
		log.Warn("kafka not configured, audit events go to the log")
		p := audit.NewPublisher(audit.NewLogSink(log), audit.WithPublisherLogger(log))
		return p, p.Close
	}

	kafkaProducer, err := producer.New(cfg, log)
	if err != nil {
		log.Error("kafka producer unavailable, audit events go to the log", "error", err)
		p := audit.NewPublisher(audit.NewLogSink(log), audit.WithPublisherLogger(log))
		return p, p.Close
	}

	p := audit.NewPublisher(audit.NewKafkaSink(kafkaProducer, cfg.Topic),
		audit.WithAsyncBuffer(256),
		audit.WithPublisherLogger(log),
	)
	return p, func() {
		p.Close()
		if err := kafkaProducer.Flush(5 * time.Second); err != nil {
			log.Warn("kafka flush on shutdown failed", "error", err)
		}
		kafkaProducer.Close()
	}
}
