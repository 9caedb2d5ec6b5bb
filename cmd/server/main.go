package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/audiobrief/audio-brief-service/internal/assistant"
	"github.com/audiobrief/audio-brief-service/internal/briefing"
	"github.com/audiobrief/audio-brief-service/internal/config"
	"github.com/audiobrief/audio-brief-service/internal/metrics"
	"github.com/audiobrief/audio-brief-service/internal/playback"
	"github.com/audiobrief/audio-brief-service/internal/server"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "audio-brief-service"
	serviceVersion    = "1.0.0"
)

func main() {
	// Secrets like OPENAI_API_KEY may come from a local .env file
	_ = godotenv.Load()

	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	// Log service startup
	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.Int("http_port", cfg.HTTP.Port),
		slog.String("http_address", cfg.HTTP.Address),
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.String("chat_model", cfg.Assistant.ChatModel),
		slog.Int("assistant_timeout", cfg.Assistant.Timeout),
		slog.Bool("playback_enabled", cfg.Playback.Enabled),
		slog.Int("idle_timeout", cfg.Briefing.IdleTimeout),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// Initialize the remote assistant client
	assistantClient, err := assistant.NewClient(assistant.Config{
		APIKey:          cfg.Assistant.APIKey,
		BaseURL:         cfg.Assistant.BaseURL,
		ChatModel:       cfg.Assistant.ChatModel,
		TranscribeModel: cfg.Assistant.TranscribeModel,
		SpeechModel:     cfg.Assistant.SpeechModel,
		Voice:           cfg.Assistant.Voice,
		Timeout:         cfg.Assistant.GetTimeoutDuration(),
		MaxRetries:      cfg.Assistant.MaxRetries,
		MaxConcurrent:   cfg.Assistant.MaxConcurrent,
	}, logger)
	if err != nil {
		logger.Error("Failed to create assistant client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Assistant client initialized",
		slog.String("chat_model", cfg.Assistant.ChatModel),
		slog.Int("max_concurrent", cfg.Assistant.MaxConcurrent),
	)

	// Initialize the playback controller. The output device is acquired
	// lazily on first play, so a disabled or missing player only fails
	// playback requests, never startup.
	player := playback.NewController(func() (playback.Device, error) {
		if !cfg.Playback.Enabled {
			return nil, fmt.Errorf("playback is disabled in configuration")
		}
		return playback.NewExecDevice(cfg.Playback.Command, cfg.Playback.Args, logger)
	}, logger)
	logger.Info("Playback controller initialized",
		slog.Bool("enabled", cfg.Playback.Enabled),
		slog.String("command", cfg.Playback.Command),
	)

	// Initialize briefing manager
	briefingMgr := briefing.NewManager(assistantClient, player, appMetrics, logger,
		cfg.Briefing.GetIdleTimeoutDuration())
	logger.Info("Briefing manager initialized",
		slog.Duration("idle_timeout", cfg.Briefing.GetIdleTimeoutDuration()),
	)

	// Initialize and start HTTP API server
	httpServer := server.NewHTTPServer(cfg.HTTP, logger, cfg, briefingMgr,
		assistantClient, player, appMetrics)
	if err := httpServer.Start(); err != nil {
		logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("http_address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
	)

	// Wait for shutdown signal
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Starting graceful shutdown...")

	// Stop HTTP server first (stop accepting new requests)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
	}

	// Stop briefing manager (cleanup sessions and stop background routines)
	briefingMgr.Stop()

	// Stop any live playback and release the output device
	if err := player.Close(); err != nil {
		logger.Error("Error closing playback controller", slog.String("error", err.Error()))
	}

	// Get final statistics
	stats := assistantClient.GetStats()
	logger.Info("Final assistant statistics",
		slog.Uint64("total_requests", stats.TotalRequests),
		slog.Uint64("success_requests", stats.SuccessRequests),
		slog.Uint64("failed_requests", stats.FailedRequests),
		slog.Uint64("total_retries", stats.TotalRetries),
	)

	logger.Info("Service stopped")
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo // default fallback
	}

	// Configure handler options
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // Add source info for debug level
	}

	// Determine output destination
	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	// Create handler based on format
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	case "text", "":
		handler = slog.NewTextHandler(output, opts)
	default:
		// Default to text format
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
