package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/eventgrid/platform/internal/adapters/registry"
	"github.com/eventgrid/platform/internal/cascade"
	"github.com/eventgrid/platform/internal/directory"
	"github.com/eventgrid/platform/internal/lifecycle"
	"github.com/eventgrid/platform/internal/notification"
	"github.com/eventgrid/platform/internal/participation"
	"github.com/eventgrid/platform/internal/shared/auth"
	"github.com/eventgrid/platform/internal/shared/config"
	"github.com/eventgrid/platform/internal/shared/database"
	"github.com/eventgrid/platform/internal/shared/events"
	"github.com/eventgrid/platform/internal/shared/metrics"
	secmiddleware "github.com/eventgrid/platform/internal/shared/middleware"
)

// App holds all application dependencies
type App struct {
	Config   *config.Config
	DB       *database.DB
	Bus      *events.Bus
	Notifier *notification.Service
	Registry *registry.Adapter
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	app := &App{Config: cfg}

	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	app.DB = db
	defer db.Close()

	if err := database.Migrate(ctx, db.Pool); err != nil {
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}

	// Event bus is optional; the API works without streaming
	bus, err := events.NewBus(ctx, cfg.KurrentDB)
	if err != nil {
		fmt.Printf("Warning: KurrentDB not available: %v\n", err)
		fmt.Println("Running without event streaming...")
	} else {
		app.Bus = bus
		defer bus.Close()
		fmt.Println("KurrentDB Event Bus initialized")
	}

	// Repositories and services
	dirRepo := directory.NewRepository(db.Pool)
	dirSvc := directory.NewService(dirRepo)

	lifeRepo := lifecycle.NewRepository(db.Pool)
	lifeSvc := lifecycle.NewService(lifeRepo, dirRepo)

	casRepo := cascade.NewRepository(db.Pool)
	casSvc := cascade.NewService(casRepo, dirRepo)

	partRepo := participation.NewRepository(db.Pool)
	partSvc := participation.NewService(partRepo, casSvc)

	// Notification dispatcher and its event subscriber
	if cfg.Notify.Enabled {
		providers := map[notification.Channel]notification.Provider{
			notification.ChannelEmail: notification.NewConsoleProvider("EMAIL"),
			notification.ChannelSMS:   notification.NewConsoleProvider("SMS"),
		}

		notifier := notification.NewService(providers, notification.ConfigFrom(cfg.Notify))
		if err := notifier.Start(ctx); err != nil {
			fmt.Printf("Warning: notification service failed to start: %v\n", err)
		} else {
			app.Notifier = notifier
			defer notifier.Stop()

			if app.Bus != nil {
				subscriber := notification.NewSubscriber(dirRepo, casRepo, notifier, app.Bus)
				if err := subscriber.Start(ctx); err != nil {
					fmt.Printf("Warning: notification subscriber failed to start: %v\n", err)
				} else {
					fmt.Println("Notification subscriber started")
				}
			}
		}
	}

	// Legacy national registry import
	if cfg.Registry.Enabled {
		adapter := registry.New(registry.DefaultConfig(cfg.Registry), dirRepo)
		if err := adapter.Start(ctx); err != nil {
			fmt.Printf("Warning: registry adapter failed to start: %v\n", err)
		} else {
			app.Registry = adapter
			defer adapter.Stop(context.Background())
			fmt.Println("National registry adapter started")
		}
	}

	// Keep the interface nil when the bus is absent so handlers can
	// skip publishing
	var eventBus events.EventBus
	if app.Bus != nil {
		eventBus = app.Bus
	}

	dirHandler := directory.NewHandler(dirRepo, dirSvc, eventBus)
	lifeHandler := lifecycle.NewHandler(lifeSvc, dirSvc, eventBus)
	casHandler := cascade.NewHandler(casSvc, dirSvc, eventBus)
	partHandler := participation.NewHandler(partSvc, dirSvc, eventBus)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(secmiddleware.RateLimiter(100, 200))
	r.Use(metrics.Middleware)
	r.Use(corsMiddleware)

	// Health checks (unauthenticated)
	r.Get("/health", healthHandler(app))
	r.Get("/ready", readyHandler(app))
	r.Handle("/metrics", metrics.Handler())

	// API info
	r.Get("/", infoHandler)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Server.Env == "production" {
			r.Use(auth.Middleware(cfg.Auth))
		}

		r.Mount("/", dirHandler.Routes())
		r.Mount("/lifecycle", lifeHandler.Routes())
		r.Mount("/cascade", casHandler.Routes())
		r.Mount("/participation", partHandler.Routes())
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		fmt.Println("\nShutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			fmt.Printf("Server shutdown error: %v\n", err)
		}
		close(done)
	}()

	fmt.Println("============================================")
	fmt.Println("EventGrid Jurisdiction Platform")
	fmt.Println("============================================")
	fmt.Printf("Environment:    %s\n", cfg.Server.Env)
	fmt.Printf("Server:         http://localhost:%d\n", cfg.Server.Port)
	fmt.Printf("API:            http://localhost:%d/api/v1\n", cfg.Server.Port)
	fmt.Printf("Health:         http://localhost:%d/health\n", cfg.Server.Port)
	fmt.Printf("KurrentDB:      %s:%d\n", cfg.KurrentDB.Host, cfg.KurrentDB.Port)
	fmt.Printf("Registry:       enabled=%v\n", cfg.Registry.Enabled)
	fmt.Printf("Notifications:  enabled=%v\n", cfg.Notify.Enabled)
	fmt.Println("============================================")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}

	<-done
	fmt.Println("Server stopped")
}

func infoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"name":    "EventGrid Jurisdiction Platform",
		"version": "0.1.0",
		"docs":    "/api/v1",
	})
}

func healthHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
		})
	}
}

func readyHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"server": "ready",
		}

		if err := app.DB.Health(r.Context()); err != nil {
			checks["database"] = "not ready: " + err.Error()
		} else {
			checks["database"] = "ready"
		}

		if app.Bus != nil {
			if err := app.Bus.Health(); err != nil {
				checks["kurrentdb"] = "not ready: " + err.Error()
			} else {
				checks["kurrentdb"] = "ready"
			}
		} else {
			checks["kurrentdb"] = "not configured"
		}

		if app.Registry != nil {
			if err := app.Registry.Health(r.Context()); err != nil {
				checks["registry"] = "not ready: " + err.Error()
			} else {
				checks["registry"] = "ready"
			}
		} else {
			checks["registry"] = "not configured"
		}

		allReady := true
		for _, status := range checks {
			if status != "ready" && status != "not configured" {
				allReady = false
				break
			}
		}

		status := http.StatusOK
		if !allReady {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"status": map[bool]string{true: "ready", false: "not ready"}[allReady],
			"checks": checks,
		})
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
