package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/docschat/docschat/internal/api"
	"github.com/docschat/docschat/internal/catalog"
	"github.com/docschat/docschat/internal/config"
	"github.com/docschat/docschat/internal/conversation"
	"github.com/docschat/docschat/internal/engine"
	"github.com/docschat/docschat/internal/server"
	"github.com/docschat/docschat/internal/storage"
	"github.com/docschat/docschat/internal/telemetry"
	"github.com/docschat/docschat/internal/tokens"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	// Load .env file if it exists
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	shutdownTracer, err := telemetry.InitTracer("docschat", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, err := cfg.BuildCatalog()
	if err != nil {
		log.Fatalf("Failed to build provider catalog: %v", err)
	}
	holder := catalog.NewHolder(store)

	var recorder *conversation.Recorder
	if cfg.Storage.Path != "" {
		db, err := storage.Open(cfg.Storage.Path)
		if err != nil {
			log.Fatalf("Failed to open storage: %v", err)
		}
		defer db.Close()
		recorder = conversation.NewRecorder(db, logger)
		logger.Info("transcript recording enabled", slog.String("path", cfg.Storage.Path))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Swap in a rebuilt catalog whenever the config file changes.
	if watcher, err := config.NewWatcher(*configPath, logger); err != nil {
		logger.Warn("config watcher disabled", slog.String("error", err.Error()))
	} else {
		defer watcher.Close()
		err := watcher.Watch(ctx, func(next *config.Config) {
			nextStore, err := next.BuildCatalog()
			if err != nil {
				logger.Error("ignoring catalog update", slog.String("error", err.Error()))
				return
			}
			holder.Swap(nextStore)
			logger.Info("provider catalog reloaded")
		})
		if err != nil {
			logger.Warn("config hot-reload disabled", slog.String("error", err.Error()))
		}
	}

	srv := server.New(cfg.Server.Port, logger)
	handler := api.NewHandler(holder, engine.NewEcho(), recorder, tokens.NewRegistry(), logger)
	handler.Register(srv.Router)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			cancel()
		}
	}()
	logger.Info("server started", slog.Int("port", cfg.Server.Port))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received, stopping server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("server shutdown complete")
}
