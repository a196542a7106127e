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
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/battleships-client/internal/client"
	"github.com/DoyleJ11/battleships-client/internal/config"
	"github.com/DoyleJ11/battleships-client/internal/httpapi"
	"github.com/DoyleJ11/battleships-client/internal/hub"
	"github.com/DoyleJ11/battleships-client/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// No logger yet.
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogDev)
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gw := client.New(cfg.GameServiceURL, cfg.HTTPTimeout, logger)
	h := hub.NewHub(ctx, func(ctx context.Context) *session.Controller {
		return session.New(ctx, gw, session.Options{PollInterval: cfg.PollInterval, Logger: logger})
	}, logger)

	// Configure HTTP server with timeouts. No write timeout: view streams
	// stay open for the whole game.
	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httpapi.SetupRoutes(h, logger),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening",
			zap.String("addr", cfg.ListenAddr),
			zap.String("game_service", cfg.GameServiceURL),
			zap.Duration("poll_interval", cfg.PollInterval),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		h.Shutdown()
		return err
	})
	return g.Wait()
}
