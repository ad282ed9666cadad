// Package app wires the configuration, session manager, router and HTTP
// server into one runnable application.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sportsbet/internal/config"
	"sportsbet/internal/dataloader"
	customMiddleware "sportsbet/internal/middleware"
	transporthttp "sportsbet/internal/transport/http"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// Application holds the composed server and its collaborators.
type Application struct {
	Config   *config.Config
	Logger   *slog.Logger
	Router   *chi.Mux
	Server   *http.Server
	Sessions *transporthttp.SessionManager
}

// New composes the application from its configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	provider := dataloader.NewSoccerProvider(cfg.DataLoader.BaseURL, cfg.DataLoader.Timeout, logger)
	sessions := transporthttp.NewSessionManager(provider,
		int64(cfg.Wizard.FetchWorkers), cfg.Wizard.SessionTTL, logger)

	a := &Application{
		Config:   cfg,
		Logger:   logger,
		Sessions: sessions,
	}
	a.setupRouter()
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return a, nil
}

func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(customMiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(customMiddleware.Recoverer(a.Logger))

	wizardHandler := transporthttp.NewWizardHandler(a.Sessions,
		a.Config.WebSocket.ReadBufferSize, a.Config.WebSocket.WriteBufferSize, a.Logger)
	healthHandler := transporthttp.NewHealthHandler(a.Sessions, Version, a.Logger)

	r.Route("/api", func(api chi.Router) {
		if a.Config.RateLimit.Enabled {
			limiter := customMiddleware.NewRateLimiter(
				a.Config.RateLimit.RPS, a.Config.RateLimit.Burst, a.Logger)
			api.Use(limiter.Handler)
		}
		api.Mount("/wizard", wizardHandler.Routes())
		api.Get("/health", healthHandler.HealthCheck)
		api.Get("/version", healthHandler.Version)
	})

	// Websocket and metrics sit outside the rate limited API surface.
	r.Get("/ws", wizardHandler.WebSocket)
	r.Handle("/metrics", promhttp.Handler())

	a.Router = r
}

// Start launches the session eviction loop and the HTTP server. A server
// failure cancels the supplied context.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "starting application",
		slog.String("version", Version),
		slog.Int("port", a.Config.Server.Port),
		slog.String("log_level", a.Config.Logging.Level))

	a.Sessions.Start()

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "application started",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))
	return nil
}

// Stop gracefully shuts the server down and stops every live session.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	a.Sessions.Shutdown()

	a.Logger.InfoContext(ctx, "application shutdown complete")
	return nil
}

// Run runs the application until interrupted.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case sig := <-sigChan:
		a.Logger.InfoContext(ctx, "received signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
	}

	return a.Stop(context.Background())
}
