// Package server implements the HTTP API that answers questions against a
// built index. It is started by the `ragdemo serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/ragdemo-go/internal/logging"
	"github.com/54b3r/ragdemo-go/internal/rag"
	"github.com/54b3r/ragdemo-go/internal/version"
)

// maxRequestBytes caps the POST /api/query body.
const maxRequestBytes = 64 << 10

// maxTopK is the largest k accepted over HTTP.
const maxTopK = 50

// New constructs a Server from the provided querier and config.
func New(q Querier, cfg *Config) (*Server, error) {
	if q == nil {
		return nil, fmt.Errorf("server: querier must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.QueryTimeout == 0 {
		cfg.QueryTimeout = 2 * time.Minute
	}
	if cfg.WriteTimeout == 0 {
		// Must outlast a full query round trip.
		cfg.WriteTimeout = cfg.QueryTimeout + 10*time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		querier: q,
		cfg:     cfg,
		log:     cfg.Logger,
		pingers: cfg.Pingers,
		metrics: newServerMetrics(cfg.MetricsRegistry),
	}

	if cfg.APIKey == "" {
		s.log.Warn("server: RAGDEMO_API_KEY is not set, /api/query is unauthenticated")
	}

	rl, stop := newRateLimiter(cfg.RateLimit, cfg.RateBurst, s.metrics.rateLimitedTotal)
	s.stopRL = stop

	mux := http.NewServeMux()
	mux.Handle("POST /api/query", requireBearer(cfg.APIKey, rl.middleware(http.HandlerFunc(s.handleQuery))))
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(s.log, s.metrics.instrument(mux)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Handler returns the fully wrapped root handler (tests).
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopRL()
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server: listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.log.Info("server: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleQuery handles POST /api/query. It runs one retrieve → prompt →
// generate round trip and returns the answer with its sources.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req queryRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}
	if req.K < 0 || req.K > maxTopK {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("k must be between 0 and %d", maxTopK))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.QueryTimeout)
	defer cancel()

	start := time.Now()
	s.metrics.queryInFlight.Inc()
	ans, err := s.querier.Ask(ctx, req.Question, req.K)
	s.metrics.queryInFlight.Dec()

	outcome := "ok"
	if err != nil {
		status, msg := classifyError(ctx, err)
		outcome = outcomeFor(status)
		s.metrics.observeQuery(outcome, time.Since(start), 0)
		log.Error("query failed", slog.String("outcome", outcome), slog.Any("error", err))
		writeError(w, status, msg)
		return
	}
	s.metrics.observeQuery(outcome, time.Since(start), len(ans.Sources))

	resp := queryResponse{
		Question: ans.Question,
		Answer:   ans.Text,
		Sources:  make([]sourceResponse, 0, len(ans.Sources)),
	}
	for _, d := range ans.Sources {
		resp.Sources = append(resp.Sources, sourceResponse{
			ID:       d.ID,
			Source:   d.Source,
			Content:  d.Content,
			Distance: d.Distance,
			Metadata: d.Metadata,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// classifyError maps an engine error to an HTTP status and a client-safe message.
func classifyError(ctx context.Context, err error) (int, string) {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "query timed out"
	case errors.Is(err, rag.ErrStoreNotFound):
		return http.StatusServiceUnavailable, "index not built"
	case errors.Is(err, rag.ErrDimensionMismatch):
		return http.StatusConflict, "index was built with a different embedding model"
	case errors.Is(err, rag.ErrService):
		return http.StatusBadGateway, "upstream model service failed"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func outcomeFor(status int) string {
	switch status {
	case http.StatusGatewayTimeout:
		return "timeout"
	case http.StatusBadGateway:
		return "upstream_error"
	default:
		return "error"
	}
}

// handleHealth handles GET /api/health. It reports liveness only and never
// touches a dependency.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
