package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/invoiceworks/invoice-agent/internal/ai"
	"github.com/invoiceworks/invoice-agent/internal/api"
	"github.com/invoiceworks/invoice-agent/internal/archive"
	"github.com/invoiceworks/invoice-agent/internal/config"
	"github.com/invoiceworks/invoice-agent/internal/invoice"
	"github.com/invoiceworks/invoice-agent/internal/logging"
	"github.com/invoiceworks/invoice-agent/internal/monitor"
	"github.com/invoiceworks/invoice-agent/internal/processor"
	"github.com/invoiceworks/invoice-agent/internal/ui"
	"github.com/invoiceworks/invoice-agent/internal/watcher"
)

// rehydrateLimit bounds how many archived results are loaded back into the
// in-memory store at startup.
const rehydrateLimit = 1000

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	// A .env in the working directory is a convenience, not a requirement.
	_ = godotenv.Load()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := os.MkdirAll(cfg.IncomingDir(), 0755); err != nil {
		return fmt.Errorf("failed to create incoming dir: %w", err)
	}
	if err := os.MkdirAll(cfg.OutputDir(), 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting invoice agent",
		"version", config.Version,
		"incoming_dir", cfg.IncomingDir(),
		"output_dir", cfg.OutputDir(),
	)

	database, err := archive.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := archive.NewRepository(database.Conn())
	store := invoice.NewStore()

	hydrateCtx, hydrateCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer hydrateCancel()
	if archived, err := repo.LoadRecent(hydrateCtx, rehydrateLimit); err != nil {
		logger.Warn("failed to load archived results", "error", err)
	} else {
		for _, r := range archived {
			store.Put(r)
		}
		logger.Info("rehydrated result store", "count", len(archived))
	}

	var model ai.Model
	var gemini *ai.GeminiModel
	if cfg.GeminiAPIKey() == "" {
		logger.Warn("no Gemini API key configured, extraction disabled",
			"hint", "set "+config.EnvGeminiAPIKey)
		model = ai.NewUnavailableModel()
	} else {
		gemini, err = ai.NewGeminiModel(context.Background(), cfg.GeminiAPIKey(), cfg.GeminiModel())
		if err != nil {
			return fmt.Errorf("failed to create model client: %w", err)
		}
		defer gemini.Close()
		model = gemini
		logger.Info("model client ready", "model", cfg.GeminiModel())
	}

	proc := processor.New(processor.Config{
		OutputDir:        cfg.OutputDir(),
		SupportedFormats: cfg.SupportedFormats(),
		MaxFileSize:      cfg.MaxFileSizeBytes(),
		ModelTimeout:     cfg.ModelTimeout(),
		FileTimeout:      cfg.FileTimeout(),
		Retry:            ai.DefaultRetryPolicy(cfg.ModelRetries()),
	}, model, store, repo, logging.WithComponent(logger, "processor"))

	coordinator := monitor.New(monitor.Config{
		IncomingDir:      cfg.IncomingDir(),
		SupportedFormats: cfg.SupportedFormats(),
		BatchSize:        cfg.BatchSize(),
		SweepInterval:    cfg.SweepInterval(),
		SettleDelay:      cfg.SettleDelay(),
	}, proc, watcher.NewFSWatcher(logging.WithComponent(logger, "watcher")), logging.WithComponent(logger, "monitor"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := coordinator.Start(ctx); err != nil {
		return fmt.Errorf("failed to start coordinator: %w", err)
	}

	apiServer := api.NewServer(api.ServerConfig{
		Port:             cfg.Port(),
		Version:          config.Version,
		IncomingDir:      cfg.IncomingDir(),
		OutputDir:        cfg.OutputDir(),
		SupportedFormats: cfg.SupportedFormats(),
		MaxFileSize:      cfg.MaxFileSizeBytes(),
		Pipeline:         coordinator,
		Store:            store,
		Archive:          repo,
		Logger:           logging.WithComponent(logger, "api"),
		StartTime:        startTime,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	fmt.Println()
	fmt.Printf("  Invoice Agent v%s\n", config.Version)
	fmt.Printf("  API:      http://%s\n", apiServer.Addr())
	fmt.Printf("  Incoming: %s\n", cfg.IncomingDir())
	fmt.Printf("  Output:   %s\n", cfg.OutputDir())
	fmt.Println()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			close(quitCh)
		case <-quitCh:
		}
	}()

	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Coordinator: coordinator,
			Store:       store,
			Logger:      logger,
			OnQuit: func() {
				close(quitCh)
			},
		})
		go tray.Run()
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")
	coordinator.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
