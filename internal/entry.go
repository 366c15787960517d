// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"

	"github.com/seroka/quill/internal/api"
	"github.com/seroka/quill/internal/auth"
	"github.com/seroka/quill/internal/mcpserver"
	"github.com/seroka/quill/internal/postservice"
	"github.com/seroka/quill/internal/sse"
	"github.com/seroka/quill/internal/storage"
	"github.com/seroka/quill/internal/watch"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_backend", cfg.Store.Backend),
		slog.String("uploads_dir", cfg.Store.UploadsDir),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Initialize the storage backend.
	provider, err := newProvider(cfg)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	defer provider.Close()

	// Image uploads.
	uploads, err := api.NewUploads(cfg.Store.UploadsDir)
	if err != nil {
		return fmt.Errorf("init uploads: %w", err)
	}

	// Authentication, bootstrapping the admin record on first run.
	authSvc, err := auth.New(provider, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL,
		cfg.Auth.BootstrapUsername, cfg.Auth.BootstrapPassword)
	if err != nil {
		return fmt.Errorf("init auth: %w", err)
	}

	svc := postservice.NewService(provider, uploads)

	// SSE broker for data-change notifications.
	broker := sse.NewBroker()
	defer broker.Close()

	apiRouter := api.NewRouter(svc, authSvc, uploads, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.Origins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Uploaded images.
	r.Get("/uploads/{filename}", func(w http.ResponseWriter, r *http.Request) {
		uploads.ServeFile(w, r, chi.URLParam(r, "filename"))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Watch the JSON data files for external edits and notify SSE clients.
	if jf, ok := provider.(*storage.JSONFile); ok {
		g.Go(func() error {
			if err := watch.Run(gCtx, jf.Dir(), logger, func(name string) {
				broker.PublishPostEvent("changed", name)
			}); err != nil {
				logger.Warn("watcher failed", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP starts the MCP stdio server against the configured storage backend.
func RunMCP(cfg *Config) error {
	provider, err := newProvider(cfg)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	defer provider.Close()

	svc := postservice.NewService(provider, nil)
	return mcpserver.New(svc).ServeStdio()
}

func newProvider(cfg *Config) (storage.Provider, error) {
	switch cfg.Store.Backend {
	case storage.BackendMemory:
		return storage.NewMemory(), nil
	case storage.BackendSQLite:
		return storage.NewSQLite(cfg.Store.SQLitePath)
	case storage.BackendJSON, "":
		return storage.NewJSONFile(cfg.Store.DataDir)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
