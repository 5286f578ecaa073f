package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/davidthedutch/vibe-control-panel/relay/internal/infrastructure/config"
	"github.com/davidthedutch/vibe-control-panel/relay/internal/infrastructure/logging"
	"github.com/davidthedutch/vibe-control-panel/relay/internal/infrastructure/server"
)

func main() {
	// Command-line flags override environment configuration
	port := flag.String("port", "", "Server port (overrides RELAY_PORT)")
	host := flag.String("host", "", "Listen host (overrides RELAY_HOST)")
	shellPath := flag.String("shell", "", "Shell executable (overrides RELAY_SHELL)")
	mode := flag.String("mode", "", "Shell backend: auto, pty or pipe (overrides RELAY_SHELL_MODE)")
	dev := flag.Bool("dev", false, "Development mode with verbose logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if *port != "" {
		cfg.Server.Port = *port
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *shellPath != "" {
		cfg.Shell.Path = *shellPath
	}
	if *mode != "" {
		cfg.Shell.Mode = *mode
	}
	if *dev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	srv, err := server.NewServer(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create server", zap.Error(err))
	}

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run()
	}()

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errChan:
		if err != nil {
			logger.Fatal("Server error", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Shutdown incomplete", zap.Error(err))
	}
	logger.Info("Server stopped")
}
