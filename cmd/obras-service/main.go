package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nurpe/obras-service/internal/app"
	"github.com/nurpe/obras-service/internal/auth"
	"github.com/nurpe/obras-service/internal/cloudsync"
	"github.com/nurpe/obras-service/internal/config"
	httphandler "github.com/nurpe/obras-service/internal/http"
	"github.com/nurpe/obras-service/internal/http/middleware"
	"github.com/nurpe/obras-service/internal/logger"
	"github.com/nurpe/obras-service/internal/pdf"
	"github.com/nurpe/obras-service/internal/service"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment, cfg.LogLevel)

	backend, err := app.OpenBackend(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open remote store")
	}
	defer backend.Close()

	sessions := service.NewSessions(service.Dependencies{
		Remote:   backend.Remote,
		Profiles: backend.Profiles,
		Reports:  pdf.NewGenerator(cfg.Report.Currency),
		Sync: cloudsync.Options{
			DebounceWindow: cfg.Sync.Debounce,
			MaxWait:        cfg.Sync.MaxWait,
			Metrics:        cloudsync.NewMetrics(prometheus.DefaultRegisterer),
		},
		DefaultLegend: cfg.Report.Legend,
	}, log)

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	handler := httphandler.NewHandler(sessions, log)
	router := httphandler.NewRouter(handler, middleware.Auth(tokenParser), httphandler.RouterConfig{
		Environment:    cfg.Environment,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Metrics:        promhttp.Handler(),
	}, log)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	srv := &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", addr).Str("remote", cfg.Sync.RemoteDriver).Msg("starting obras service")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	sessions.CloseAll(shutdownCtx)
}
