package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"NarraPulse/internal/domain/repository"
	"NarraPulse/internal/usecase"
	"NarraPulse/pkg/cache"
	"NarraPulse/pkg/config"
	xhttp "NarraPulse/pkg/http"
	applogger "NarraPulse/pkg/logger"
)

// App encapsulates the application lifecycle: HTTP server, orchestrator and
// infrastructure clients.
type App struct {
	cfg       *config.Config
	log       *applogger.Logger
	handler   xhttp.Handler
	orch      *usecase.AnalysisOrchestrator
	store     cache.Service
	publisher repository.AlertPublisher

	httpServer *xhttp.Server
}

// New assembles the application. publisher may be nil when alert shipping
// is disabled.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	handler xhttp.Handler,
	orch *usecase.AnalysisOrchestrator,
	store cache.Service,
	publisher repository.AlertPublisher,
) *App {
	return &App{
		cfg:       cfg,
		log:       l,
		handler:   handler,
		orch:      orch,
		store:     store,
		publisher: publisher,
	}
}

// Run starts the HTTP server and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.log, a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)
	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("server started",
		applogger.Int("port", a.cfg.Server.Port),
		applogger.String("environment", a.cfg.Environment),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown stops the run in flight, the HTTP server, and infrastructure
// clients, in that order.
func (a *App) shutdown(ctx context.Context) error {
	if err := a.orch.Close(); err != nil {
		a.log.Warn("orchestrator close error", applogger.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Warn("alert publisher close error", applogger.Error(err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("cache close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
