package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"freight-bidding-api/internal/broker"
	"freight-bidding-api/internal/cache"
	"freight-bidding-api/internal/config"
	"freight-bidding-api/internal/database"
	"freight-bidding-api/internal/events"
	"freight-bidding-api/internal/features"
	"freight-bidding-api/internal/handler"
	"freight-bidding-api/internal/logging"
	"freight-bidding-api/internal/middleware"
	"freight-bidding-api/internal/pricing"
	"freight-bidding-api/internal/service"
	"freight-bidding-api/internal/tracing"
	"freight-bidding-api/internal/worker"
)

var version = "dev"

func main() {
	configFile := flag.String("config", "", "Path to JSON config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format)

	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.InitTracing(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		Environment: cfg.Tracing.Environment,
		Version:     version,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize tracing")
	}
	defer shutdownTracing(context.Background())

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize database")
	}
	defer db.Close()

	var pricingCache cache.Cache = cache.NewMemoryCache()
	if cfg.Redis.Addr != "" {
		rc, err := cache.NewRedisCache(ctx, cache.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   tracing.ServiceName + ":",
		})
		if err != nil {
			logger.WithError(err).Fatal("failed to connect to redis")
		}
		defer rc.Close()
		pricingCache = rc
	}

	var pricingSource pricing.Source = pricing.StaticSource{Config: pricing.DefaultConfig()}
	if cfg.Pricing.ConfigFile != "" {
		pricingSource = pricing.FileSource{Path: cfg.Pricing.ConfigFile}
	}
	pricingSource = pricing.NewCachedSource(pricingSource, pricingCache, cfg.PricingCacheTTL(), logger)

	bus := events.NewManager(cfg.Kafka.Broker != "" || cfg.RabbitMQ.URL != "", logger)

	if cfg.Kafka.Broker != "" {
		kp := broker.NewKafkaPublisher(cfg.Kafka.Broker, cfg.Kafka.Topic, logger)
		defer kp.Close()
		bus.SubscribeAll(kp.Handle)
	}
	if cfg.RabbitMQ.URL != "" {
		rn, err := broker.DialRabbitNotifier(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue, logger)
		if err != nil {
			logger.WithError(err).Fatal("failed to connect to rabbitmq")
		}
		defer rn.Close()
		bus.SubscribeAll(rn.Handle)
	}
	// Registered after the broker closers so pending handlers drain into
	// open writers.
	defer bus.Shutdown()

	threshold, err := decimal.NewFromString(cfg.Lifecycle.AlertThreshold)
	if err != nil {
		logger.WithError(err).Fatal("invalid wallet alert threshold")
	}

	svc := service.NewService(db, service.Options{
		Pricing:        pricingSource,
		Events:         bus,
		Features:       features.NewDefaultManager(cfg.Features),
		Logger:         logger,
		QuoteTTL:       cfg.QuoteTTL(),
		AlertThreshold: threshold,
	})

	h := handler.NewHandlerWithOptions(svc, handler.NewHandlerOptions{
		MaxBodySize: cfg.Security.MaxRequestBodySize,
		Logger:      logger,
	})

	r := chi.NewRouter()

	// Middleware (order matters)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.TracingMiddleware())

	if cfg.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(cfg.RateLimit.Rate, time.Duration(cfg.RateLimit.Window)*time.Second)
		defer limiter.Stop()
		r.Use(middleware.RateLimitMiddleware(limiter))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(cfg.Security.AllowedOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", middleware.HeaderUserID, middleware.HeaderUserRole},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h.Register(r)

	sweeper := worker.NewExpirySweeper(svc, logger, cfg.SweepInterval(), cfg.Lifecycle.SweepBatchSize, cfg.Lifecycle.SweepWorkers)
	sweepCtx, stopSweep := context.WithCancel(ctx)
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		sweeper.Start(sweepCtx)
	}()

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	listen := server.ListenAndServe
	if cfg.Server.EnableTLS {
		listen = func() error { return server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile) }
	}

	logger.WithFields(logrus.Fields{
		"addr":       server.Addr,
		"tls":        cfg.Server.EnableTLS,
		"database":   cfg.Database.Path,
		"kafka":      cfg.Kafka.Broker != "",
		"rabbitmq":   cfg.RabbitMQ.URL != "",
		"redis":      cfg.Redis.Addr != "",
		"rate_limit": cfg.RateLimit.Enabled,
	}).Info("starting server")

	err = serve(ctx, server, listen, 15*time.Second, logger)

	stopSweep()
	<-sweepDone

	if err != nil {
		logger.WithError(err).Error("server failed")
		os.Exit(1)
	}
}
