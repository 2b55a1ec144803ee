package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/pawshop-checkout/internal/config"
	"github.com/joao-fontenele/pawshop-checkout/internal/logging"
	"github.com/joao-fontenele/pawshop-checkout/internal/shopapi"
	"github.com/joao-fontenele/pawshop-checkout/internal/storefront"
	"github.com/joao-fontenele/pawshop-checkout/internal/telemetry"
)

const serviceName = "storefront"

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

	calc, err := cfg.Calculator()
	if err != nil {
		logger.Error("invalid pricing configuration", "error", err)
		os.Exit(1)
	}

	var tokens shopapi.TokenSource = shopapi.StaticToken(cfg.ShopAPI.AccessToken)
	if cfg.ShopAPI.RefreshToken != "" {
		refreshClient := &http.Client{
			Timeout:   cfg.ShopAPI.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
		tokens = shopapi.NewRefreshTokenSource(cfg.ShopAPI.BaseURL, cfg.ShopAPI.AccessToken, cfg.ShopAPI.RefreshToken, refreshClient)
	}

	client := shopapi.NewClient(shopapi.Options{
		BaseURL:     cfg.ShopAPI.BaseURL,
		Timeout:     cfg.ShopAPI.Timeout,
		Tokens:      tokens,
		MaxFailures: cfg.ShopAPI.BreakerMaxFailures,
		OpenTimeout: cfg.ShopAPI.BreakerTimeout,
	}, logger)

	registry := storefront.NewRegistry(calc, client, cfg.Session.TTL, logger)
	go registry.Run(ctx, cfg.Session.SweepInterval)

	metrics, err := storefront.NewMetrics(registry)
	if err != nil {
		logger.Error("failed to create metrics", "error", err)
		os.Exit(1)
	}

	handler := storefront.NewHandler(registry, client, metrics, logger)

	mux := http.NewServeMux()
	handler.Register(mux)
	mux.Handle("GET /metrics", metricsHandler)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      telemetry.InstrumentHandler(mux, serviceName),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		logger.Info("starting storefront service", "addr", cfg.HTTP.Addr, "shop_api", cfg.ShopAPI.BaseURL)
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
		os.Exit(1)
	}
}
