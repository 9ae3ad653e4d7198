package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"weather-insight/history"
	"weather-insight/models"
	"weather-insight/orchestrator"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Lookup is the orchestrator surface the API drives
type Lookup interface {
	Search(ctx context.Context, query string) (models.Snapshot, error)
	Snapshot() models.Snapshot
}

// HistoryStore lists completed query cycles
type HistoryStore interface {
	Recent(ctx context.Context, limit int) ([]history.QueryRecord, error)
}

// Options configures optional parts of the server. Nil handlers leave their
// routes unregistered; a nil History answers 503.
type Options struct {
	Port          int
	CORSOrigins   []string
	SearchTimeout time.Duration
	History       HistoryStore
	Realtime      http.Handler
	Metrics       http.Handler
	Middleware    []func(http.Handler) http.Handler
	Logger        *slog.Logger
}

// Server represents the API server
type Server struct {
	lookup        Lookup
	history       HistoryStore
	searchTimeout time.Duration
	logger        *slog.Logger
	router        chi.Router
	server        *http.Server
}

type searchRequest struct {
	Query string `json:"query"`
}

// NewServer creates a new API server
func NewServer(lookup Lookup, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = 30 * time.Second
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}

	s := &Server{
		lookup:        lookup,
		history:       opts.History,
		searchTimeout: opts.SearchTimeout,
		logger:        opts.Logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"Trace-ID"},
		MaxAge:         300,
	}))
	for _, mw := range opts.Middleware {
		r.Use(mw)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealthCheck)
		r.Post("/search", s.handleSearch)
		r.Get("/weather", s.handleGetWeather)
		r.Get("/forecast", s.handleGetForecast)
		r.Get("/history", s.handleGetHistory)
		if opts.Realtime != nil {
			r.Handle("/ws", opts.Realtime)
		}
	})
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}

	s.router = r
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins the API server and blocks until it stops
func (s *Server) Start() error {
	s.logger.Info("starting API server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleSearch runs a query cycle. Upstream failures are part of the returned
// snapshot, so they answer 200.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// the cycle outlives a disconnecting client; newer searches still cancel it
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.searchTimeout)
	defer cancel()

	snap, err := s.lookup.Search(ctx, req.Query)
	switch {
	case errors.Is(err, orchestrator.ErrBlankQuery):
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, orchestrator.ErrSuperseded):
		writeJSON(w, http.StatusConflict, snap)
	case err != nil:
		s.logger.Error("search failed", "error", err)
		writeError(w, http.StatusInternalServerError, "search failed")
	default:
		writeJSON(w, http.StatusOK, snap)
	}
}

func (s *Server) handleGetWeather(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.lookup.Snapshot())
}

func (s *Server) handleGetForecast(w http.ResponseWriter, _ *http.Request) {
	snap := s.lookup.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"city":     snap.City,
		"phase":    snap.State.Phase,
		"forecast": snap.Forecast,
	})
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history is disabled")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
		limit = l
	}

	records, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list history", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"count":   len(records),
	})
}

// handleHealthCheck provides a simple health check endpoint
func (s *Server) handleHealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"phase":     string(s.lookup.Snapshot().State.Phase),
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
