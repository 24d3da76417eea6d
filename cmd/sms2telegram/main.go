package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tokyodaito/SMS2Telegram/internal/config"
	"github.com/tokyodaito/SMS2Telegram/internal/constants"
	"github.com/tokyodaito/SMS2Telegram/internal/retry"
	"github.com/tokyodaito/SMS2Telegram/internal/service"
	"github.com/tokyodaito/SMS2Telegram/internal/store"
	"github.com/tokyodaito/SMS2Telegram/internal/tracing"
	"github.com/tokyodaito/SMS2Telegram/pkg/telegram"

	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	configPath = flag.String("config", "config.json", "Path to configuration file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("SMS2Telegram %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting SMS2Telegram relay")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	env, err := config.LoadEnvOverrides()
	if err != nil {
		return fmt.Errorf("failed to load environment overrides: %w", err)
	}

	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		level := cfg.LogLevel
		if env.LogLevel != "" {
			level = env.LogLevel
		}
		if level != "" {
			parsed, err := logrus.ParseLevel(level)
			if err != nil {
				logger.Warnf("Invalid log level %q, defaulting to info", level)
				parsed = logrus.InfoLevel
			}
			logger.SetLevel(parsed)
		} else {
			logger.SetLevel(logrus.InfoLevel)
		}
	}

	tracingManager := tracing.NewManager(cfg.Tracing, logger)
	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	// Open the settings store with exponential backoff; the file may be
	// briefly locked by a previous instance shutting down.
	var st *store.Store
	backoff := retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: constants.DefaultRetryBackoffMs * time.Millisecond,
		MaxDelay:     constants.DefaultMaxBackoffMs * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  constants.DefaultDatabaseRetryAttempts,
		Jitter:       true,
	})
	err = backoff.Retry(ctx, func() error {
		var initErr error
		st, initErr = store.New(cfg.Database.Path, env.EncryptionSecret)
		if initErr != nil {
			logger.Warnf("Failed to open settings store: %v", initErr)
		}
		return initErr
	})
	if err != nil {
		return fmt.Errorf("failed to open settings store after retries: %w", err)
	}
	defer st.Close()

	// Seed the bot token from the environment on first start.
	if env.BotToken != "" {
		if err := st.MigrateLegacy(ctx, map[string]string{"telegram_bot_key": env.BotToken}); err != nil {
			logger.WithError(err).Warn("Failed to seed settings from environment")
		}
	}

	client := telegram.NewClient(telegram.ClientConfig{
		BaseURL:      cfg.Telegram.APIBaseURL,
		Token:        st.BotToken,
		TimeoutSec:   cfg.Telegram.TimeoutSec,
		PollSlackSec: constants.PollClientSlackSec,
	}, logger)

	queue := service.NewDeliveryQueue(client, st, cfg.Delivery, cfg.Telegram, logger)
	defer queue.Stop()

	debouncer := service.NewDebouncer(constants.DebounceWindowSec * time.Second)
	forwarder := service.NewEventForwarder(st, queue, debouncer, logger)
	tracker := service.NewCallStateTracker(st, forwarder, logger)
	pairing := service.NewPairingCoordinator(st, client, cfg.Pairing, logger)
	commands := service.NewCommandInterpreter(st, client, logger)
	checker := service.NewConnectionChecker(st, client, logger)

	if token, err := st.BotToken(ctx); err == nil && token != "" {
		if _, err := checker.Check(ctx); err != nil {
			logger.WithError(err).Warn("Startup credential check failed")
		}
	}

	poller := service.NewControlPoller(client, st, pairing, commands, cfg.Poll, logger)
	if err := poller.Start(ctx); err != nil {
		return fmt.Errorf("failed to start control poller: %w", err)
	}
	defer poller.Stop()

	server := NewServer(cfg.Server, forwarder, tracker, pairing, queue, checker, st, logger)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("status server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultGracefulShutdownSec*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Status server shutdown failed")
	}

	return nil
}
