package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/Huzi7869/ResuMate/internal/ai"
	"github.com/Huzi7869/ResuMate/internal/app"
	"github.com/Huzi7869/ResuMate/internal/handlers"
	"github.com/Huzi7869/ResuMate/internal/storage"
	u "github.com/Huzi7869/ResuMate/internal/utils"
)

func main() {
	cfg := u.LoadConfig()
	// Allow common container env vars to override secrets and paths.
	if v := os.Getenv("AI_API_KEY"); v != "" {
		cfg.AI.APIKey = v
	}
	if cfg.Report.ChromePath == "" {
		if v := os.Getenv("CHROME_BIN"); v != "" {
			cfg.Report.ChromePath = v
		}
	}
	u.AppConfig = cfg

	u.InitLogger(
		cfg.Logger.File,
		cfg.Logger.MaxSizeMB,
		cfg.Logger.MaxBackups,
		cfg.Logger.MaxAgeDays,
		cfg.Logger.Compress,
		cfg.Logger.Level,
	)
	u.SetLogLevel(cfg.Logger.Level)

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.Cache.RedisHost,
		DB:   cfg.Cache.AnalysisDB,
	})

	idleConnsClosed := make(chan struct{})
	if cfg.Auth.Enabled {
		if err := u.LoadTokensFromPostgres(cfg.Auth.Postgres); err != nil {
			u.Error("Failed to load API tokens", "error", err)
		}
		go u.RefreshTokensPeriodicallyFromPostgres(cfg.Auth.Postgres, time.Minute, idleConnsClosed)
	}

	files, err := storage.NewBlobStore(cfg.Storage.Dir, "/v1/files")
	if err != nil {
		u.Error("Failed to initialize blob store", "dir", cfg.Storage.Dir, "error", err)
		os.Exit(1)
	}
	analyses := storage.NewAnalysisStore(rdb)
	reviewer := ai.NewClient(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model,
		time.Duration(cfg.AI.TimeoutSecs)*time.Second)

	svc := handlers.NewResumeService(cfg, files, analyses, reviewer)
	app := app.SetupApp(cfg, svc)

	startServer(app, cfg, idleConnsClosed)
	<-idleConnsClosed
}

// startServer starts the Fiber app and listens for shutdown signals
func startServer(app *fiber.App, cfg u.Config, idleConnsClosed chan struct{}) {
	go func() {
		if err := app.Listen(cfg.Server.Host + cfg.Server.Port); err != nil {
			u.Error("Server error", "error", err)
		}
	}()

	// Listen for OS termination signals
	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
	<-sigint

	u.Warn("Shutdown signal received, closing server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		u.Error("Server forced to shutdown", "error", err)
	}

	close(idleConnsClosed)
	u.Info("Server stopped cleanly")
}
