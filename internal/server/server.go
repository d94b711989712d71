package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"findash/internal/concepts"
	"findash/internal/datasource"
	"findash/internal/facts"
	"findash/internal/interfaces"
	"findash/internal/logger"
	"findash/internal/store"
	"findash/internal/trace"
)

// Server serves quarterly series over HTTP
type Server struct {
	cfg       *store.Config
	source    interfaces.CompanyFactsSource
	extractor interfaces.SeriesExtractor
	snapshots interfaces.SnapshotStore
	harvester interfaces.FactHarvester
	router    *http.ServeMux
	server    *http.Server
}

// Option configures optional collaborators
type Option func(*Server)

// WithSnapshots persists every served series and enables cached=1
func WithSnapshots(s interfaces.SnapshotStore) Option {
	return func(srv *Server) {
		srv.snapshots = s
	}
}

// WithHarvester enables the filing= parameter, which merges the facts of a
// single inline-XBRL filing into the company facts before extraction
func WithHarvester(h interfaces.FactHarvester) Option {
	return func(srv *Server) {
		srv.harvester = h
	}
}

// New creates a new HTTP server
func New(cfg *store.Config, source interfaces.CompanyFactsSource, extractor interfaces.SeriesExtractor, opts ...Option) *Server {
	s := &Server{
		cfg:       cfg,
		source:    source,
		extractor: extractor,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router = s.setupRoutes()
	s.server = &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      s.withMiddleware(s.router),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the routed handler with middleware applied
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	logger.Info(context.Background(), "HTTP server starting", "addr", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info(ctx, "HTTP server stopped")
	return nil
}

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/sec/quarters", s.handleQuarters)
	mux.HandleFunc("GET /api/sec/metric", s.handleMetric)
	return mux
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := trace.StartSpan(r.Context(), r.Method+" "+r.URL.Path)
		defer span.End()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(ctx))

		logger.Info(ctx, "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"query", r.URL.RawQuery,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleQuarters serves GET /api/sec/quarters?ticker=&limit=&cached=1&filing=
func (s *Server) handleQuarters(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	ticker := strings.ToUpper(strings.TrimSpace(q.Get("ticker")))
	if ticker == "" {
		writeError(w, http.StatusBadRequest, "ticker is required")
		return
	}

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}
	limit = s.cfg.ClampLimit(limit)

	if q.Get("cached") == "1" && s.snapshots != nil {
		if s.serveSnapshot(w, r, ticker) {
			return
		}
	}

	cik, payload, ok := s.companyFacts(w, r, ticker)
	if !ok {
		return
	}

	if filing := q.Get("filing"); filing != "" && s.harvester != nil {
		extra, err := s.harvester.Harvest(ctx, filing)
		if err != nil {
			writeError(w, http.StatusBadGateway, "failed to harvest filing: "+err.Error())
			return
		}
		payload = facts.MergeRaw(payload, extra)
	}

	result, err := s.extractor.Extract(ctx, ticker, payload, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if result.Empty() {
		writeJSON(w, http.StatusNotFound, result)
		return
	}

	if s.snapshots != nil {
		if snap, err := store.NewSnapshot(result, cik); err == nil {
			if err := s.snapshots.SaveSnapshot(ctx, snap); err != nil {
				logger.ErrorWithErr(ctx, "Failed to save snapshot", err, "ticker", ticker)
			}
		}
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) serveSnapshot(w http.ResponseWriter, r *http.Request, ticker string) bool {
	snap, err := s.snapshots.LatestSnapshot(r.Context(), ticker)
	if err != nil {
		logger.ErrorWithErr(r.Context(), "Failed to read snapshot", err, "ticker", ticker)
		return false
	}
	if snap == nil {
		return false
	}

	result, err := snap.Result()
	if err != nil {
		logger.ErrorWithErr(r.Context(), "Failed to decode snapshot", err, "ticker", ticker)
		return false
	}

	w.Header().Set("X-Snapshot-Created", snap.CreatedAt.UTC().Format(time.RFC3339))
	writeJSON(w, http.StatusOK, result)
	return true
}

// handleMetric serves GET /api/sec/metric?ticker=&key=
func (s *Server) handleMetric(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ticker := strings.ToUpper(strings.TrimSpace(q.Get("ticker")))
	key := strings.TrimSpace(q.Get("key"))
	if ticker == "" || key == "" {
		writeError(w, http.StatusBadRequest, "ticker and key are required")
		return
	}
	if _, ok := concepts.Lookup(key); !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown metric %q", key))
		return
	}

	_, payload, ok := s.companyFacts(w, r, ticker)
	if !ok {
		return
	}

	m, err := s.extractor.Metric(r.Context(), ticker, payload, key)
	switch {
	case errors.Is(err, concepts.ErrUnknownMetric):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	case len(m.Points) == 0:
		writeJSON(w, http.StatusNotFound, m)
	default:
		writeJSON(w, http.StatusOK, m)
	}
}

// companyFacts resolves ticker and loads its facts, writing the error
// response itself when that fails
func (s *Server) companyFacts(w http.ResponseWriter, r *http.Request, ticker string) (string, map[string]any, bool) {
	ctx := r.Context()

	cik, err := s.source.ResolveCIK(ctx, ticker)
	if err != nil {
		writeUpstreamError(w, err)
		return "", nil, false
	}

	payload, err := s.source.CompanyFacts(ctx, cik)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load company facts", err, "ticker", ticker, "cik", cik)
		writeUpstreamError(w, err)
		return "", nil, false
	}
	return cik, payload, true
}

func writeUpstreamError(w http.ResponseWriter, err error) {
	var apiErr *datasource.APIError
	switch {
	case errors.Is(err, datasource.ErrTickerNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound,
		errors.Is(err, os.ErrNotExist):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
