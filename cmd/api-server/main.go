package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"bizconnect/db"
	"bizconnect/db/migrations"
	"bizconnect/internal/auth"
	"bizconnect/internal/config"
	"bizconnect/internal/handlers"
	"bizconnect/internal/logger"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logg, err := logger.New("bizconnect-api", cfg.LogLevel, cfg.IsProduction())
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbConn, err := db.Connect(ctx, cfg.PostgresConn, cfg.DBConnectTimeout)
	if err != nil {
		logg.Fatal("cannot connect to DB", zap.Error(err))
	}
	defer dbConn.Close()

	if err := migrations.Run(ctx, dbConn.DB, logg); err != nil {
		logg.Fatal("migrations failed", zap.Error(err))
	}

	store := db.NewStorage(dbConn)
	tokens := auth.NewTokenIssuer(cfg.AdminTokenSecret, cfg.AdminTokenTTL)
	h := handlers.NewHandler(store, tokens, handlers.Config{
		UploadDir:      cfg.UploadDir,
		MaxUploadBytes: cfg.MaxUploadBytes,
		AuthRatePerSec: cfg.AuthRatePerSec,
		AuthBurst:      cfg.AuthBurst,
	}, logg)

	srv := &http.Server{
		Addr:    cfg.ServerAddress,
		Handler: h.Routes(),
	}

	go func() {
		logg.Info("starting server", zap.String("addr", cfg.ServerAddress))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logg.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error("graceful shutdown failed", zap.Error(err))
	}
}
