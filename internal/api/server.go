package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"vessel-cbm-monitor/internal/db"
	"vessel-cbm-monitor/internal/ingest"
	"vessel-cbm-monitor/internal/metrics"
	"vessel-cbm-monitor/internal/query"
	"vessel-cbm-monitor/internal/store"
)

// Config holds the request defaults the handlers fall back to.
type Config struct {
	PageSize      int
	StalenessDays int
}

// Server represents the API server
type Server struct {
	store       *store.Store
	engine      *query.Engine
	pipeline    *ingest.Pipeline
	persistence *db.Persistence
	cfg         Config
	logger      *zap.Logger
	now         func() time.Time
	router      *mux.Router
}

// Option configures a Server.
type Option func(*Server)

// WithPersistence enables the save endpoint.
func WithPersistence(p *db.Persistence) Option {
	return func(s *Server) { s.persistence = p }
}

// WithClock replaces the wall clock used for queries and export file names.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer creates a new API server
func NewServer(st *store.Store, pipeline *ingest.Pipeline, cfg Config, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = query.DefaultPageSize
	}
	s := &Server{
		store:    st,
		pipeline: pipeline,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		router:   mux.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = query.NewEngine(st).WithClock(s.now)
	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", metrics.Handler()).Methods("GET")

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(jsonMiddleware)

	// Filter vocabularies
	api.HandleFunc("/vocabulary", s.handleVocabulary).Methods("GET")
	api.HandleFunc("/options/{dimension}", s.handleOptions).Methods("GET")
	api.HandleFunc("/parameters", s.handleParameters).Methods("GET")

	// Equipment views
	api.HandleFunc("/equipment/series", s.handleEquipmentSeries).Methods("GET")
	api.HandleFunc("/equipment/recent", s.handleRecentReadings).Methods("GET")
	api.HandleFunc("/equipment/paired", s.handlePairedSeries).Methods("GET")

	// Fleet views
	api.HandleFunc("/trend", s.handleTrend).Methods("GET")
	api.HandleFunc("/raw", s.handleRaw).Methods("GET")
	api.HandleFunc("/missing", s.handleMissing).Methods("GET")
	api.HandleFunc("/quality", s.handleQuality).Methods("GET")

	// Ingestion and persistence
	api.HandleFunc("/ingest/rows", s.handleIngestRows).Methods("POST")
	api.HandleFunc("/state/save", s.handleSave).Methods("POST")
	api.HandleFunc("/stats", s.handleStats).Methods("GET")

	// Downloads replace the JSON content type
	api.HandleFunc("/export/{kind}", s.handleExport).Methods("GET")

	s.router.Use(s.loggingMiddleware)
}

// Router returns the configured router
func (s *Server) Router() *mux.Router {
	return s.router
}

// Middleware
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// Response helpers
type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Meta    *meta       `json:"meta,omitempty"`
}

type meta struct {
	Total      int   `json:"total,omitempty"`
	Page       int   `json:"page,omitempty"`
	TotalPages int   `json:"total_pages,omitempty"`
	PageSize   int   `json:"page_size,omitempty"`
	QueryMs    int64 `json:"query_ms,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiResponse{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiResponse{Success: false, Error: message})
}

func respondWithMeta(w http.ResponseWriter, data interface{}, m *meta) {
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(apiResponse{Success: true, Data: data, Meta: m})
}

// intParam reads a non-negative integer query parameter.
func intParam(r *http.Request, name string, fallback int) (int, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
