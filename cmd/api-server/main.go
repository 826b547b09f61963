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
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hackgods/tarot-booking/internal/api"
	"github.com/hackgods/tarot-booking/internal/checkout"
	"github.com/hackgods/tarot-booking/internal/config"
	"github.com/hackgods/tarot-booking/internal/db"
	"github.com/hackgods/tarot-booking/internal/notify"
	"github.com/hackgods/tarot-booking/internal/observability/metrics"
	"github.com/hackgods/tarot-booking/internal/observability/tracing"
	"github.com/hackgods/tarot-booking/internal/payment"
	redisclient "github.com/hackgods/tarot-booking/internal/redis"
	"github.com/hackgods/tarot-booking/internal/scheduling"
	"github.com/hackgods/tarot-booking/pkg/logging"
)

var version = "dev"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	if err := cfg.ValidatePayments(); err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger := logging.New(cfg.LogLevel).With("service", "api-server", "env", cfg.Env)
	log.Printf("running in env=%s http_port=%s backend=%s", cfg.Env, cfg.HTTPPort, cfg.StoreBackend)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(rootCtx, tracing.Config{
		Enabled:      cfg.OTelEnabled,
		ServiceName:  "tarot-api",
		OTLPEndpoint: cfg.OTelEndpoint,
		SampleRatio:  cfg.OTelSampleRatio,
	})
	if err != nil {
		log.Fatalf("tracing setup error: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			log.Printf("error shutting down tracing: %v", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	schedMetrics := metrics.NewSchedulingMetrics(reg)
	deliveryMetrics := metrics.NewDeliveryMetrics(reg)

	var (
		repo          scheduling.Repository
		outbox        notify.Outbox
		checks        []api.Check
		localDelivery bool
	)
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{ApplicationName: "api-server"})
		cancelPg()
		if err != nil {
			log.Fatalf("postgres connection error: %v", err)
		}
		defer pgPool.Close()
		log.Println("connected to Postgres")

		repo = scheduling.NewPgRepository(pgPool)
		outbox = notify.NewOutboxStore(pgPool)
		checks = append(checks, api.Check{Name: "postgres", Critical: true, Probe: pgPool.Ping})
	default:
		log.Println("using in-memory store, data is lost on restart")
		repo = scheduling.NewMemoryRepository()
		outbox = notify.NewMemoryOutbox()
		localDelivery = true
	}

	var (
		locker    scheduling.Locker        = scheduling.NewLocalLocker()
		proposals scheduling.ProposalStore = scheduling.NewMemoryProposalStore(cfg.ProposalTTL)
		limiter   *redisclient.RateLimiter
	)
	if cfg.RedisAddr != "" {
		rdb, err := redisclient.NewRedisClient(rootCtx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			log.Fatalf("redis connection error: %v", err)
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Printf("error closing redis: %v", err)
			}
		}()
		log.Println("connected to Redis")

		locker = redisclient.NewRedisLocker(rdb, cfg.LockTTL, cfg.LockWait)
		proposals = scheduling.NewKVProposalStore(redisclient.NewTTLStore(rdb, "proposal:", cfg.ProposalTTL))
		if cfg.RateLimit > 0 {
			limiter = redisclient.NewRateLimiter(rdb, cfg.RateLimit, cfg.RateLimitWindow, "rl:api")
		}
		checks = append(checks, api.Check{Name: "redis", Probe: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	} else {
		log.Println("REDIS_ADDR not set, using process-local locks and proposal store")
	}

	sched := scheduling.NewService(repo, proposals, locker).
		WithEmitter(notify.NewOutboxEmitter(outbox)).
		WithLogger(logger).
		WithMetrics(schedMetrics)

	catalogue, err := checkout.NewCatalogue(cfg.EmergencySurchargeRate, cfg.Currency)
	if err != nil {
		log.Fatalf("catalogue error: %v", err)
	}
	var charger payment.Charger
	if cfg.StripeSecretKey != "" {
		charger = payment.NewStripeCharger(cfg.StripeSecretKey, logger)
	} else {
		log.Println("STRIPE_SECRET_KEY not set, using fake payments")
		charger = payment.NewFakeCharger()
	}
	co := checkout.NewService(sched, catalogue, charger).WithLogger(logger).WithMetrics(deliveryMetrics)

	if localDelivery {
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
		defer func() { _ = closeHandler() }()
		deliverer := notify.NewDeliverer(outbox, handler, logger).
			WithBatchSize(int32(cfg.OutboxBatchSize)).
			WithInterval(cfg.WorkerInterval).
			WithMetrics(deliveryMetrics)
		go deliverer.Start(rootCtx)
	}

	router := api.NewRouter(api.RouterConfig{
		Scheduling:  sched,
		Checkout:    co,
		Health:      api.NewHealthHandler(cfg.Env, version, checks...),
		Metrics:     reg,
		RateLimiter: limiter,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-rootCtx.Done()
	log.Println("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
