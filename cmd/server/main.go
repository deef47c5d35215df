// Command server runs the emoji explanation HTTP API.
//
// Startup order: env + config, logging, OpenTelemetry, database (with
// migrations), the generation coordinator, and finally the HTTP server.
// Shutdown drains in reverse: the server stops accepting requests first,
// then the coordinator finishes in-flight generation jobs, then tracing
// flushes.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-emoji-backend/internal/config"
	"github.com/tbourn/go-emoji-backend/internal/generator"
	httpapi "github.com/tbourn/go-emoji-backend/internal/http"
	"github.com/tbourn/go-emoji-backend/internal/observability"
	"github.com/tbourn/go-emoji-backend/internal/repo"
	"github.com/tbourn/go-emoji-backend/internal/services"
	"github.com/tbourn/go-emoji-backend/internal/sysutil"
)

// version is set via -ldflags at build time.
var version = "dev"

func main() {
	// .env is optional; real deployments use the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Info().Str("version", version).Str("port", cfg.Port).Msg("starting server")

	ctx := context.Background()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("database open failed")
	}
	if cfg.OTEL.Enabled {
		if err := repo.EnableTracing(db); err != nil {
			log.Warn().Err(err).Msg("gorm tracing plugin failed; continuing without")
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	gen := generator.NewClient(cfg.Generator.Endpoint, cfg.Generator.Timeout)
	coord := services.NewCoordinator(db, gen,
		cfg.Coordinator.Workers, cfg.Coordinator.QueueSize, cfg.Generator.Timeout)

	userSvc := services.NewUserService(db, []byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL)
	userSvc.BCryptCost = cfg.Auth.BCryptCost
	reqSvc := &services.RequestService{DB: db, Queue: coord, MaxEmojiRunes: cfg.MaxEmojiRunes}
	expSvc := &services.ExplanationService{DB: db}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, httpapi.Services{
		Users:        userSvc,
		Requests:     reqSvc,
		Explanations: expSvc,
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Error().Err(err).Msg("server error")
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}

	// Drain queued generation work so PENDING rows reach a terminal state.
	coord.Stop()

	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("otel shutdown failed")
	}
	log.Info().Msg("bye")
}
