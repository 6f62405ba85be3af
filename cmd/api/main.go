package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	httpadapter "github.com/kirillkom/multimodal-rag/internal/adapters/http"
	"github.com/kirillkom/multimodal-rag/internal/bootstrap"
	"github.com/kirillkom/multimodal-rag/internal/config"
	"github.com/kirillkom/multimodal-rag/internal/observability/logging"
	"github.com/kirillkom/multimodal-rag/internal/observability/metrics"
)

const serviceName = "rag-api"

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_error", "error", err.Error())
		os.Exit(1)
	}
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, httpMetrics.Breakers().Observe)
	if err != nil {
		slog.Error("bootstrap_error", "error", err.Error())
		os.Exit(1)
	}
	defer app.Close()

	go func() {
		err := app.Queue.SubscribeIndexRebuilt(ctx, func(handlerCtx context.Context, documentID string) error {
			slog.Info("index_rebuilt_received", "document_id", documentID)
			return app.Session.Reload(handlerCtx)
		})
		if err != nil {
			slog.Error("index_subscription_failed", "error", err.Error())
		}
	}()

	router := httpadapter.NewRouter(cfg, app.IngestUC, app.QueryUC, app.Repo).
		WithMetrics(httpMetrics).
		Handler()
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("api_listening", "addr", server.Addr, "index_backend", cfg.IndexBackend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api_server_error", "error", err.Error())
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_error", "error", err.Error())
	}
}
