// Package server is the HTTP surface of the trolley service: REST endpoints
// for list and item mutations, a websocket change feed per list, and the
// storage backend selection.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/trolleyhq/trolley/pkg/store"
	"github.com/trolleyhq/trolley/pkg/store/memory"
	"github.com/trolleyhq/trolley/pkg/store/postgres"
	"github.com/trolleyhq/trolley/pkg/store/surreal"
)

// Config holds service configuration.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// Backend selects the storage backend: "memory", "postgres", or
	// "surrealdb".
	Backend string

	// PostgreSQL configuration, used when Backend is "postgres".
	PostgresDSN string

	// SurrealDB configuration, used when Backend is "surrealdb".
	SurrealURL  string
	SurrealNS   string
	SurrealDB   string
	SurrealUser string
	SurrealPass string
}

// App holds the service state: the selected store and the change feed hub.
type App struct {
	store  store.Store
	hub    *hub
	config *Config
	log    zerolog.Logger
}

// New connects the configured storage backend, runs its migrations, and
// returns the service ready to Run.
func New(ctx context.Context, config *Config, logger zerolog.Logger) (*App, error) {
	var (
		appStore store.Store
		err      error
	)
	switch config.Backend {
	case "", "memory":
		appStore = memory.New()
	case "postgres":
		appStore, err = postgres.New(config.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		logger.Info().Msg("connected to PostgreSQL")
	case "surrealdb":
		appStore, err = surreal.New(ctx, surreal.Config{
			URL:       config.SurrealURL,
			Namespace: config.SurrealNS,
			Database:  config.SurrealDB,
			Username:  config.SurrealUser,
			Password:  config.SurrealPass,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
		}
		logger.Info().Msg("connected to SurrealDB")
	default:
		return nil, fmt.Errorf("unknown storage backend: %q", config.Backend)
	}

	if err := appStore.Migrate(ctx); err != nil {
		_ = appStore.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return &App{
		store:  appStore,
		hub:    newHub(logger),
		config: config,
		log:    logger,
	}, nil
}

// Close releases the store connection.
func (a *App) Close() error {
	return a.store.Close()
}

// Store returns the underlying store (useful for testing).
func (a *App) Store() store.Store {
	return a.store
}

// Router builds the HTTP handler with all routes and logging middleware.
func (a *App) Router() http.Handler {
	router := mux.NewRouter()

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/lists", a.handleCreateList).Methods("POST")
	api.HandleFunc("/lists/{token}", a.handleGetList).Methods("GET")
	api.HandleFunc("/lists/{token}/items", a.handleCreateItem).Methods("POST")
	api.HandleFunc("/lists/{token}/items", a.handleClearBought).Methods("DELETE")
	// Registered before the {id} routes so "reorder" is not parsed as an
	// item ID.
	api.HandleFunc("/lists/{token}/items/reorder", a.handleReorderItems).Methods("PATCH")
	api.HandleFunc("/lists/{token}/items/{id}", a.handleUpdateItem).Methods("PATCH")
	api.HandleFunc("/lists/{token}/items/{id}", a.handleDeleteItem).Methods("DELETE")
	api.HandleFunc("/lists/{token}/feed", a.handleFeed).Methods("GET")
	api.HandleFunc("/health", a.handleHealth).Methods("GET")

	router.HandleFunc("/health", a.handleHealth).Methods("GET")

	return a.loggingMiddleware(router)
}

// loggingMiddleware logs one line per request with status, size, and timing.
func (a *App) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		a.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", m.Code).
			Int64("bytes", m.Written).
			Dur("duration", m.Duration).
			Msg("request")
	})
}

// Run starts the HTTP server and blocks until ctx is canceled or the server
// fails. On cancellation it allows up to 5 seconds for active requests to
// complete.
func (a *App) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    a.config.Addr,
		Handler: a.Router(),
	}

	a.log.Info().Str("addr", a.config.Addr).Str("backend", a.config.Backend).Msg("starting server")

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}
