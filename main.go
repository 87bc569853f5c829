package main

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-loongo/internal/pkg/config"
	"github.com/FACorreiaa/go-loongo/internal/pkg/logger"
	"github.com/FACorreiaa/go-loongo/internal/server"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	lg, err := logger.New(cfg.LogLevel, cfg.IsProduction(), zap.String("service", cfg.Observability.ServiceName))
	if err != nil {
		return err
	}
	defer func() { _ = lg.Sync() }()

	otelShutdown, err := server.InitObservability(cfg.Observability, lg)
	if err != nil {
		return err
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			lg.Error("Failed to shutdown OpenTelemetry", zap.Error(err))
		}
	}()

	srv, err := server.New(context.Background(), cfg, lg)
	if err != nil {
		return err
	}
	defer srv.Close()

	srv.SetRouter(server.SetupRouter(srv.GetDBPool(), cfg, lg))

	pprofServer := server.StartPprofServer(cfg.Observability.PprofAddr, lg)
	defer func() { _ = pprofServer.Close() }()

	httpServer := srv.HTTPServer()

	done := make(chan struct{})
	go server.GracefulShutdown(httpServer, lg, done)

	lg.Info("Server starting", zap.String("port", cfg.ServerPort))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		lg.Error("Server error", zap.Error(err))
		return err
	}

	<-done
	lg.Info("Graceful shutdown complete")
	return nil
}
