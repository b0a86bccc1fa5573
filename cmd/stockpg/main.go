// Command stockpg is the entry point for the trading pipeline's daemons. It
// loads configuration, validates it, wires dependencies, sets up signal
// handling, and runs the daemon (or daemons) the configuration selects.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/anatolysokolov293-max/stock-pg/internal/app"
	"github.com/anatolysokolov293-max/stock-pg/internal/config"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	daemonFlag := flag.String("daemon", "", "override the configured daemon (aggregator|strategyrunner|execengine|broker|healthmonitor|all)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", slog.String("path", *configPath), slog.String("error", err.Error()))
		os.Exit(1)
	}
	if *daemonFlag != "" {
		cfg.Daemon = *daemonFlag
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("stock-pg starting", slog.String("daemon", cfg.Daemon), slog.String("config", *configPath))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, cleanup, err := app.Wire(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to wire dependencies", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer cleanup()

	application := app.New(cfg, logger, deps)
	if err := application.Run(ctx); err != nil {
		if err == context.Canceled {
			logger.Info("shut down gracefully")
		} else {
			logger.Error("exited with error", slog.String("error", err.Error()))
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
	}

	logger.Info("stock-pg stopped")
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
