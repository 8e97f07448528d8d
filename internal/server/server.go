package server

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/rs/cors"

	"todo-list-backend/internal/analytics"
	"todo-list-backend/internal/auth"
	"todo-list-backend/internal/config"
	"todo-list-backend/internal/httpmw"
	"todo-list-backend/internal/rpc"
	"todo-list-backend/internal/tasks"
)

type Options struct {
	Config *config.Config
	Store  *tasks.Store
	Sink   analytics.Sink
	Logger *log.Logger
}

// NewHandler wires every route. The store is initialized here, so a fresh
// handler always starts with no tasks and id 0.
func NewHandler(opts Options) (http.Handler, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if opts.Store == nil {
		opts.Store = tasks.NewStore()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	cfg := opts.Config
	store := opts.Store
	store.Init()

	tracker := analytics.NewTracker(opts.Sink, opts.Logger)
	authMW := auth.New([]byte(cfg.JWTSecret), cfg.AllowAnonymous)

	mux := http.NewServeMux()

	// Health endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// ----- AUTH -----
	mux.HandleFunc("GET /auth/whoami", authMW.Wrap(auth.WhoAmIHandler()))

	// ----- TASKS API -----
	mux.HandleFunc("POST /tasks", authMW.Wrap(tasks.CreateTaskHandler(store, tracker)))
	mux.HandleFunc("GET /tasks", authMW.Wrap(tasks.ListTasksHandler(store)))
	mux.HandleFunc("GET /tasks/important", authMW.Wrap(tasks.ListImportantHandler(store)))
	mux.HandleFunc("GET /tasks/completed", authMW.Wrap(tasks.ListCompletedHandler(store)))
	mux.HandleFunc("GET /tasks/stats", authMW.Wrap(tasks.StatsHandler(store)))
	mux.HandleFunc("GET /tasks/{id}", authMW.Wrap(tasks.GetTaskHandler(store)))
	mux.HandleFunc("POST /tasks/{id}/toggle-completion", authMW.Wrap(tasks.ToggleCompletionHandler(store, tracker)))
	mux.HandleFunc("POST /tasks/{id}/toggle-importance", authMW.Wrap(tasks.ToggleImportanceHandler(store, tracker)))
	mux.HandleFunc("DELETE /tasks/{id}", authMW.Wrap(tasks.DeleteTaskHandler(store, tracker)))

	// ----- NAMED OPERATIONS -----
	mux.Handle("POST /rpc", authMW.Handler(rpc.NewServer(store, tracker, opts.Logger)))

	// ----- ANALYTICS -----
	mux.HandleFunc("POST /analytics/app-opened", authMW.Wrap(analytics.AppOpenedHandler(tracker)))
	mux.HandleFunc("POST /analytics/view-changed", authMW.Wrap(analytics.ViewChangedHandler(tracker)))

	// ----- ADMIN -----
	if cfg.AdminToken != "" {
		mux.HandleFunc("POST /admin/reset", resetHandler(cfg.AdminToken, store, tracker, opts.Logger))
	}

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{
			"Content-Type", "Authorization", "Idempotency-Key", "X-Request-Id",
			"X-Platform", "X-App-Version", "X-Session-Id", "X-Device-Locale",
		},
		ExposedHeaders: []string{"X-Request-Id"},
	})

	return httpmw.Chain(
		c.Handler(mux),
		httpmw.WithRequestID,
		httpmw.WithRecover(opts.Logger),
		httpmw.WithAccessLog(opts.Logger),
	), nil
}

// resetHandler re-runs store initialization, wiping every owner's tasks.
func resetHandler(token string, store *tasks.Store, tracker *analytics.Tracker, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get("X-Admin-Token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		store.Init()
		logger.Printf("[INFO] task store reset at %s", time.Now().UTC().Format(time.RFC3339))
		// No token subject is empty, so resets never land on a user's events.
		tracker.Track(r, "", analytics.EventStoreReset, map[string]any{"actor": "admin"})

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}
}
