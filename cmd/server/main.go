package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/tube-cutter/internal/application"
	"github.com/eugenenazirov/tube-cutter/internal/config"
	"github.com/eugenenazirov/tube-cutter/internal/logging"
)

var signalNotify = signal.Notify

func main() {
	kingpinApp := kingpin.New("tube-cutter", "Tube Cutting Planner - works out how to cut stock tubes into requested details")
	configFile := kingpinApp.Flag("config", "Path to YAML configuration file").String()
	port := kingpinApp.Flag("port", "HTTP port exposed by the service").String()
	capacityFlag := kingpinApp.Flag("capacity", "Usable length of one stock tube").Default("-1").Float64()
	dataFile := kingpinApp.Flag("data-file", "JSON file that keeps the request list between restarts").String()
	logLevel := kingpinApp.Flag("log-level", "Minimum log level (debug, info, warn, error)").String()
	rateLimitRPSFlag := kingpinApp.Flag("rate-limit-rps", "Requests per second allowed per client (set 0 to disable)").Default("-1").Float64()
	rateLimitBurstFlag := kingpinApp.Flag("rate-limit-burst", "Burst capacity for rate limiter (set 0 to disable)").Default("-1").Int()
	trustedProxies := kingpinApp.Flag("trusted-proxy", "Proxy address or CIDR allowed to set X-Forwarded-For (repeatable)").Strings()

	kingpin.MustParse(kingpinApp.Parse(os.Args[1:]))

	overrides := &config.CLIOverrides{
		ConfigFile: *configFile,
		Port:       port,
		DataFile:   dataFile,
		LogLevel:   logLevel,

		TrustedProxies: *trustedProxies,
	}

	if *capacityFlag >= 0 {
		overrides.StockCapacity = capacityFlag
	}

	if *rateLimitRPSFlag >= 0 {
		overrides.RateLimitRPS = rateLimitRPSFlag
	}

	if *rateLimitBurstFlag >= 0 {
		overrides.RateLimitBurst = rateLimitBurstFlag
	}

	cfg, err := config.Load(overrides)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	app, err := application.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}

	logger.Info("configuration loaded",
		zap.Float64("stock_capacity", cfg.StockCapacity),
		zap.String("data_file", cfg.DataFile),
	)

	if err := app.Start(); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}

	shutdown(app.Server(), cfg.ShutdownGracePeriod, logger)
}

func shutdown(server *http.Server, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}
