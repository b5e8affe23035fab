package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"emporia-vue-exporter/internal/collector"
	"emporia-vue-exporter/internal/config"
	"emporia-vue-exporter/internal/vue"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	listenAddr   = flag.String("listen", "", "Address to listen on for metrics (overrides LISTEN_ADDR)")
	pollInterval = flag.Duration("poll-interval", 0, "Time between polls of the Emporia API (overrides POLL_INTERVAL)")
	logLevel     = flag.String("log-level", "", "Log level (debug, info, warn, error; overrides LOG_LEVEL)")
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *pollInterval > 0 {
		cfg.PollInterval = *pollInterval
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	nameOverrides, err := cfg.DeviceNameOverrides()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Info("No device list file found", "path", cfg.DevicesFile)
		} else {
			logger.Error("Failed to load device name overrides", "error", err)
			os.Exit(1)
		}
	}

	auth := vue.NewAuthenticator(cfg.Username, cfg.Password, logger)
	client := vue.NewHTTPClient(auth, logger)

	// Create and start the usage poller
	poller := collector.NewPoller(client, nameOverrides, cfg.PollInterval, logger)
	go poller.Start(ctx)

	// Register the Vue collector
	vueCollector := collector.NewVueCollector(poller, logger)
	prometheus.MustRegister(vueCollector)

	// Setup HTTP server with timeouts
	http.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      nil,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting Emporia Vue exporter", "address", cfg.ListenAddr, "poll_interval", cfg.PollInterval)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			cancel()
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutdown signal received, stopping gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	cancel()
	poller.Stop()

	logger.Info("Exporter stopped")
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
