package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hackgods/tarot-booking/internal/config"
	"github.com/hackgods/tarot-booking/internal/db"
	"github.com/hackgods/tarot-booking/internal/notify"
	"github.com/hackgods/tarot-booking/internal/observability/metrics"
	"github.com/hackgods/tarot-booking/internal/observability/tracing"
	"github.com/hackgods/tarot-booking/pkg/logging"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("notify-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	if cfg.StoreBackend != config.BackendPostgres {
		log.Fatalf("notify-worker needs STORE_BACKEND=postgres, the memory backend delivers in-process")
	}

	logger := logging.New(cfg.LogLevel).With("service", "notify-worker", "env", cfg.Env)
	log.Printf("running notify worker in env=%s interval=%s batch=%d", cfg.Env, cfg.WorkerInterval, cfg.OutboxBatchSize)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(rootCtx, tracing.Config{
		Enabled:      cfg.OTelEnabled,
		ServiceName:  "tarot-notify-worker",
		OTLPEndpoint: cfg.OTelEndpoint,
		SampleRatio:  cfg.OTelSampleRatio,
	})
	if err != nil {
		log.Fatalf("tracing setup error: %v", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 4, ApplicationName: "notify-worker"})
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	log.Println("connected to Postgres")

	handler, closeHandler := notify.NewBookingHandler(notify.HandlerConfig{
		SendGrid: notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		},
		AdminEmail:   cfg.AdminEmail,
		Location:     cfg.BusinessTimezone,
		KafkaBrokers: notify.SplitBrokers(cfg.KafkaBrokers),
	}, logger)
	defer func() {
		if err := closeHandler(); err != nil {
			log.Printf("error closing publisher: %v", err)
		}
	}()

	reg := prometheus.NewRegistry()
	deliverer := notify.NewDeliverer(notify.NewOutboxStore(pgPool), handler, logger).
		WithBatchSize(int32(cfg.OutboxBatchSize)).
		WithMetrics(metrics.NewDeliveryMetrics(reg))

	metricsSrv := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics server error: %v", err)
		}
	}()
	defer func() { _ = metricsSrv.Close() }()

	// Run once at startup
	runOnce(rootCtx, deliverer)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Println("shutdown signal received, stopping notify worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, deliverer)
		}
	}
}

func runOnce(ctx context.Context, d *notify.Deliverer) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	n, err := d.RunOnce(runCtx)
	if err != nil {
		log.Printf("outbox run error: %v", err)
		return
	}
	if n > 0 {
		log.Printf("outbox run delivered %d events in %s", n, time.Since(start))
	}
}
