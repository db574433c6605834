package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"zupgo/internal/batch"
	"zupgo/internal/config"
	"zupgo/internal/fetch"
	"zupgo/internal/gate"
	"zupgo/internal/handler"
	"zupgo/internal/storage"
	"zupgo/internal/viewer"
	"zupgo/internal/websocket"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		SetupLogger(slog.LevelInfo)
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	SetupLogger(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := storage.New(cfg.DataDir, storage.DefaultLimit)
	hub := websocket.NewHub()
	go hub.Run(ctx)
	go hub.StartTicker(ctx)

	// One gate for the whole process: concurrent batches share its slots.
	slots := gate.New(cfg.MaxConcurrent)
	worker := fetch.New(slots, fetch.Options{
		Timeout:  cfg.FetchTimeout,
		MaxBytes: cfg.MaxBodyBytes,
	})

	opts := []batch.Option{
		batch.WithObserver(hub),
		batch.WithCompletionHook(hub.BatchDone),
		batch.WithCompletionHook(store.RecordResult),
	}
	if launcher := viewer.New(cfg.ViewerCommand); launcher != nil {
		opts = append(opts, batch.WithCompletionHook(launcher.Open))
	}
	coord := batch.New(worker, cfg.DownloadDir, opts...)

	r := handler.NewRouter(ctx, coord, store, hub.WsHandler, cfg.MaxBatchSize)

	server := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		slog.Info("Shutting down server...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server forced to shutdown", "error", err)
		}
		cancel()
		done <- true
	}()

	slog.Info("Server starting",
		"port", cfg.Port,
		"downloadDir", cfg.DownloadDir,
		"maxConcurrent", slots.Capacity(),
	)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("Failed to start server", "error", err)
		os.Exit(1)
	}
	<-done
	slog.Info("Server exited")
}

func SetupLogger(level slog.Level) {
	handler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: "2006-01-02 15:04:05",
		AddSource:  true,
	})

	slog.SetDefault(slog.New(handler))
}
