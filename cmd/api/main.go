package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"go-chi-calculator/internal/config"
	"go-chi-calculator/internal/observability"
	"go-chi-calculator/internal/server"
	"go-chi-calculator/internal/session"
)

func main() {

	ctx := context.Background()

	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}

	cfg, err := config.Load(os.Getenv)
	if err != nil {
		panic(err)
	}

	// Logger
	err = observability.InitLogger(cfg.Development)
	if err != nil {
		panic(err)
	}
	defer observability.SyncLogger()

	// Telemetry
	shutdown, err := initTelemetry(ctx, cfg)
	if err != nil {
		observability.Logger.Fatal("telemetry init failed", zap.Error(err))
	}
	defer shutdown(ctx)

	// History store
	store, closeStore, err := cfg.OpenStore(ctx)
	if err != nil {
		observability.Logger.Fatal("opening history store failed",
			zap.String("backend", cfg.Store),
			zap.Error(err),
		)
	}
	defer closeStore()

	registry := session.NewRegistry(store,
		session.WithHistoryCapacity(cfg.HistoryCapacity),
		session.WithStoreTimeout(cfg.StoreTimeout),
		session.WithIdleTimeout(cfg.SessionIdle),
		session.WithLogger(observability.Logger),
	)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go registry.Run(sweepCtx)

	if err := initMetrics(registry); err != nil {
		observability.Logger.Fatal("metrics init failed", zap.Error(err))
	}

	// Router
	router := server.NewRouter(session.NewHandler(registry))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		observability.Logger.Info("server started",
			zap.String("addr", cfg.Addr),
			zap.String("store", cfg.Store),
			zap.Int("history_capacity", cfg.HistoryCapacity),
		)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			observability.Logger.Fatal("server failed", zap.Error(err))
		}
	}()

	waitForShutdown(srv)
}

func waitForShutdown(srv *http.Server) {

	stop := make(chan os.Signal, 1)

	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		observability.Logger.Warn("server shutdown incomplete", zap.Error(err))
	}
	observability.Logger.Info("server stopped")
}
