package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/joao-fontenele/pawshop-checkout/internal/config"
	"github.com/joao-fontenele/pawshop-checkout/internal/coupons"
	"github.com/joao-fontenele/pawshop-checkout/internal/logging"
	"github.com/joao-fontenele/pawshop-checkout/internal/messaging"
	"github.com/joao-fontenele/pawshop-checkout/internal/telemetry"
)

const serviceName = "coupons"

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, logCloser, err := logging.New(serviceName, logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		slog.Error("failed to set up logging", "error", err)
		os.Exit(1)
	}
	defer func() { _ = logCloser.Close() }()

	if err := cfg.Validate(serviceName); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelCfg := telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: cfg.OTel.ServiceVersion,
		Endpoint:       cfg.OTel.Endpoint,
		Insecure:       cfg.OTel.Insecure,
	}

	if cfg.OTel.Enabled {
		shutdownTracer, err := telemetry.InitTracerProvider(ctx, otelCfg)
		if err != nil {
			logger.Error("failed to initialize tracer", "error", err)
			os.Exit(1)
		}
		defer func() { _ = shutdownTracer(context.Background()) }()
	}

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(otelCfg)
	if err != nil {
		logger.Error("failed to initialize meter provider", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(context.Background()) }()

	schema := cfg.Postgres.Schema
	if schema == "" {
		schema = "coupons"
	}

	db, err := telemetry.OpenDB(cfg.Postgres.URL, schema)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()
	db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)

	if err := db.PingContext(ctx); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	repo := coupons.NewCouponRepository(db)
	handler := coupons.NewHandler(repo, logger)

	var wg sync.WaitGroup
	if len(cfg.Kafka.Brokers) > 0 {
		consumer := messaging.NewConsumer(cfg.Kafka.Brokers, messaging.TopicOrderCreated, cfg.Kafka.GroupID, logger)
		redemptions := coupons.NewRedemptionHandler(repo, logger)

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { _ = consumer.Close() }()

			logger.Info("consuming order events", "topic", messaging.TopicOrderCreated, "group_id", cfg.Kafka.GroupID)
			if err := consumer.Consume(ctx, redemptions.Handle); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("consumer stopped", "error", err)
				stop()
			}
		}()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /coupons/validate", telemetry.WithHTTPRoute(handler.HandleValidate))
	mux.Handle("GET /metrics", metricsHandler)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      telemetry.InstrumentHandler(mux, serviceName),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		logger.Info("starting coupons service", "addr", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	wg.Wait()
}
