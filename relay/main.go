package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
)

var (
	healthCheck = flag.Bool("health", false, "perform health check and exit")
	version     = "dev" // Set via ldflags during build
)

func main() {
	flag.Parse()

	// Handle health check flag for distroless container
	if *healthCheck {
		if err := performHealthCheck(); err != nil {
			os.Exit(1)
		}
		os.Exit(0)
	}

	cfg, err := LoadConfig()
	if err != nil {
		slog.Error("configuration failed", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	slog.Info("starting relay service",
		"version", version,
		"port", cfg.Port,
		"environment", cfg.Environment,
		"redirect_uri", cfg.RedirectURI,
		"model", cfg.ModelName,
		"monthly_limit", cfg.MonthlyLimit,
		"rate_limit", fmt.Sprintf("%d/%s", cfg.RateLimitRequests, cfg.RateLimitWindow),
	)

	templates, err := template.ParseGlob(filepath.Join("templates", "*.html"))
	if err != nil {
		slog.Error("failed to parse templates", "error", err)
		os.Exit(1)
	}

	quota, err := NewQuotaStore(cfg.DataDir, cfg.MonthlyLimit)
	if err != nil {
		slog.Error("failed to initialize quota store", "error", err)
		os.Exit(1)
	}

	service := &RelayService{
		config:     cfg,
		auths:      NewAuthStore(cfg),
		tokens:     NewTokenMinter(cfg),
		quota:      quota,
		model:      NewModelClient(cfg),
		templates:  templates,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(service, cfg),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	slog.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("shutdown failed", "error", err)
		os.Exit(1)
	}
}

func newRouter(service *RelayService, cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(requestLogger)
	r.Use(httprate.Limit(
		cfg.RateLimitRequests,
		cfg.RateLimitWindow,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return extractRealIP(r), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, r, http.StatusTooManyRequests, "too many requests, slow down")
		}),
	))

	r.Get("/health", service.handleHealth)
	r.Get("/", service.handleRoot)

	r.Get("/auth/init", service.handleAuthInit)
	r.Get("/auth/callback", service.handleCallback)
	r.Get("/auth/poll/{id}", service.handlePoll)
	r.Post("/auth/refresh", service.handleRefresh)

	r.Group(func(r chi.Router) {
		r.Use(service.requireAuth)
		r.Post("/v1/process-text", service.handleProcessText)
	})

	return r
}

func performHealthCheck() error {
	port := getEnvOrDefault("PORT", "8080")
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(fmt.Sprintf("http://localhost:%s/health", port))
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close health response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned %d", resp.StatusCode)
	}
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
