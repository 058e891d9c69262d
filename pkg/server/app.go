// Package server runs the application: it restores the session, starts the
// dashboard pollers and the local HTTP API, and tears everything down on a
// signal.
package server

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"WhaleWatch/internal/domain/repository"
	"WhaleWatch/internal/usecase"
	"WhaleWatch/pkg/cache"
	"WhaleWatch/pkg/config"
	xhttp "WhaleWatch/pkg/http"
	"WhaleWatch/pkg/logger"
)

type App struct {
	cfg        *config.Config
	logger     *logger.Logger
	backend    cache.Service
	auth       *usecase.AuthUseCase
	dashboard  *usecase.DashboardUseCase
	sink       repository.QuoteSink
	httpServer *xhttp.Server
}

func New(
	cfg *config.Config,
	l *logger.Logger,
	backend cache.Service,
	auth *usecase.AuthUseCase,
	dashboard *usecase.DashboardUseCase,
	sink repository.QuoteSink,
	httpServer *xhttp.Server,
) *App {
	return &App{
		cfg:        cfg,
		logger:     l,
		backend:    backend,
		auth:       auth,
		dashboard:  dashboard,
		sink:       sink,
		httpServer: httpServer,
	}
}

// Run blocks until ctx is cancelled, SIGINT/SIGTERM arrives or the HTTP
// listener fails.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.sink.Init(ctx); err != nil {
		return err
	}

	a.bootstrap(ctx)
	a.httpServer.Start()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-a.httpServer.Errors():
		a.logger.Error("http server failed", logger.Error(runErr))
	}

	a.shutdown(context.WithoutCancel(ctx))
	return runErr
}

// bootstrap restores or establishes a session and starts polling. Without
// one the app still serves the API so the user can sign in.
func (a *App) bootstrap(ctx context.Context) {
	sess, err := a.auth.Bootstrap(ctx, a.cfg.API.Email, a.cfg.API.Password)
	switch {
	case errors.Is(err, usecase.ErrNotAuthenticated):
		a.logger.Info("no session, waiting for sign-in", logger.String("endpoint", "POST /api/session"))
		return
	case err != nil:
		a.logger.Warn("sign-in with configured credentials failed", logger.Error(err))
		return
	}

	a.logger.Info("session ready",
		logger.String("user", sess.Identity.Email),
		logger.Bool("admin", a.auth.IsAdmin(sess.Identity)),
	)
	if err := a.dashboard.Start(ctx); err != nil {
		a.logger.Error("dashboard start failed", logger.Error(err))
	}
}

func (a *App) shutdown(ctx context.Context) {
	a.logger.Info("shutting down")

	if err := a.httpServer.Stop(ctx); err != nil {
		a.logger.Warn("http stop", logger.Error(err))
	}
	a.dashboard.Stop()
	if err := a.sink.Close(); err != nil {
		a.logger.Warn("quote sink close", logger.Error(err))
	}
	if err := a.backend.Close(); err != nil {
		a.logger.Warn("session backend close", logger.Error(err))
	}

	a.logger.Info("shutdown complete")
}
