package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prepforge/prepforge-backend/internal/config"
	"github.com/prepforge/prepforge-backend/internal/database"
	"github.com/prepforge/prepforge-backend/internal/handler"
	"github.com/prepforge/prepforge-backend/internal/logger"
	"github.com/prepforge/prepforge-backend/internal/repository"
	"github.com/prepforge/prepforge-backend/internal/router"
	"github.com/prepforge/prepforge-backend/internal/service"
	"github.com/prepforge/prepforge-backend/internal/session"
	"github.com/prepforge/prepforge-backend/internal/validator"
	"github.com/prepforge/prepforge-backend/internal/worker"
	"github.com/rs/zerolog"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting PrepForge Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	attemptRepo := repository.NewAttemptRepository(pool)
	examRepo := repository.NewExamRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	statRepo := repository.NewQuestionStatRepository(pool)
	answerBuffer := repository.NewAnswerBuffer(rdb)

	// ─── Initialize Services ──────────────────────────────────────────
	tokenService := service.NewTokenService(cfg)
	attemptService := service.NewAttemptService(attemptRepo, examRepo, questionRepo, answerBuffer, tokenService, log)
	statService := service.NewStatService(statRepo, attemptRepo)

	// ─── Initialize Handlers ──────────────────────────────────────────
	registry := session.NewRegistry()
	handlers := &router.Handlers{
		Attempt:      handler.NewAttemptHandler(attemptService),
		Channel:      handler.NewChannelHandler(attemptService, registry, log, cfg.AllowedOrigins),
		WeakQuestion: handler.NewWeakQuestionHandler(statService),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	autosaveWorker := worker.NewAutosaveWorker(pool, rdb, log)
	statWorker := worker.NewStatWorker(pool, rdb, log)

	go autosaveWorker.Start(workerCtx)
	go statWorker.Start(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(tokenService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for queues to drain.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
