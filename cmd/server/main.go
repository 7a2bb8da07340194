package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/voxform/voxform/internal/api"
	"github.com/voxform/voxform/internal/config"
	"github.com/voxform/voxform/internal/core"
	"github.com/voxform/voxform/internal/logger"
	"github.com/voxform/voxform/internal/metrics"
	"github.com/voxform/voxform/internal/script"
	"github.com/voxform/voxform/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "voxform: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}
	defer logger.Sync()
	if !cfg.EnvFileLoaded {
		logger.Debug("no .env file found, using environment only")
	}

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	speechService := core.NewSpeechService(cfg.Speech)
	records := core.NewRecordService(db)

	caps := core.DetectCapabilities(ctx, speechService, records)
	logger.Info("capabilities detected",
		zap.Bool("speech", caps.Speech),
		zap.Bool("store", caps.Store),
		zap.Bool("postgres", cfg.UsesPostgres()))
	if !caps.Speech {
		logger.Warn("speech credentials missing, transcription requests will fail")
	}

	apiHandler := api.NewAPIHandler(records, speechService, script.Default(), api.HandlerOptions{
		MaxUploadBytes: cfg.MaxUploadBytes,
		Language:       cfg.Speech.LanguageCode,
		OriginPatterns: cfg.OriginPatterns,
	})
	router := api.NewRouter(apiHandler)

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Speech.Timeout + 15*time.Second,
		IdleTimeout:  120 * time.Second,
		// Conversation sockets end with the process context.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting server", zap.String("addr", serverAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("could not listen on %s: %w", serverAddr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		return err
	}
	logger.Info("server exiting gracefully")
	return nil
}
