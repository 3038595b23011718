package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/muhamadfadliazim-hub/cbt-utbk-online-sub000/internal/config"
	"github.com/muhamadfadliazim-hub/cbt-utbk-online-sub000/internal/handler"
	"github.com/muhamadfadliazim-hub/cbt-utbk-online-sub000/internal/logger"
	"github.com/muhamadfadliazim-hub/cbt-utbk-online-sub000/internal/router"
	"github.com/muhamadfadliazim-hub/cbt-utbk-online-sub000/internal/session"
	"github.com/muhamadfadliazim-hub/cbt-utbk-online-sub000/internal/storage"
	"github.com/muhamadfadliazim-hub/cbt-utbk-online-sub000/internal/upstream"
	"github.com/muhamadfadliazim-hub/cbt-utbk-online-sub000/internal/validator"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("storage", cfg.StorageBackend).
		Str("upstream", cfg.UpstreamBaseURL).
		Msg("Starting CBT session gateway")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Open Session Store ────────────────────────────────────────────
	kv, err := storage.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open session store")
	}
	defer kv.Close()

	// ─── Upstream Exam API Client ──────────────────────────────────────
	api := upstream.NewClient(cfg, log)

	// ─── Session Manager ───────────────────────────────────────────────
	sessions := session.NewManager(api, kv, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Portal: handler.NewPortalHandler(sessions, api, log),
		WS:     handler.NewWSHandler(sessions, log, cfg.AllowedOrigins),
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(handlers, cfg)

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

	// 2. Stop countdowns; persisted deadlines make sessions resumable on
	// the next boot, and in-flight submissions finish on their own.
	sessions.CloseAll()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
