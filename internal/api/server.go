package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/nace-crawler/internal/analysis"
	"github.com/JakeFAU/nace-crawler/internal/config"
	"github.com/JakeFAU/nace-crawler/internal/crawler"
	"github.com/JakeFAU/nace-crawler/internal/dispatcher"
	"github.com/JakeFAU/nace-crawler/internal/errtrack"
	"github.com/JakeFAU/nace-crawler/internal/metrics"
	"github.com/JakeFAU/nace-crawler/internal/nace"
	"github.com/JakeFAU/nace-crawler/internal/partner"
)

const maxBodyBytes = 8 << 20

// Deps are the collaborators behind the handlers. Ranker, Dispatcher, and Ready are optional.
type Deps struct {
	Crawler    analysis.Crawler
	Ranker     analysis.Ranker
	Text       analysis.TextProcessor
	Dispatcher *dispatcher.Dispatcher
	IDGen      crawler.IDGenerator
	// Ready reports whether downstream dependencies are reachable.
	Ready func(ctx context.Context) error
}

// Server wires HTTP handlers to the crawl pipeline and the partner dispatcher.
type Server struct {
	router chi.Router
	deps   Deps
	cfg    config.Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		deps:   deps,
		cfg:    cfg,
		logger: logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(requestTimeout(cfg)))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/crawl", s.crawl)
		r.Post("/codes", s.codes)
		r.Post("/evaluate", s.evaluate)
		r.Post("/partners", s.submitPartner)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func requestTimeout(cfg config.Config) time.Duration {
	d := cfg.CrawlTimeout() + 15*time.Second
	if d < 60*time.Second {
		return 60 * time.Second
	}
	return d
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		if err := s.deps.Ready(r.Context()); err != nil {
			s.writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type crawlRequest struct {
	URL string `json:"url"`
}

type documentView struct {
	URL        string   `json:"url"`
	Paragraphs []string `json:"paragraphs"`
}

type crawlResponse struct {
	URL          string                  `json:"url"`
	Links        []crawler.CandidateLink `json:"links"`
	Documents    []documentView          `json:"documents"`
	Errors       []errtrack.Record       `json:"errors"`
	ErrorSummary map[string]int          `json:"error_summary"`
}

func (s *Server) crawl(w http.ResponseWriter, r *http.Request) {
	if s.deps.Crawler == nil || s.deps.Text == nil {
		s.writeError(w, http.StatusServiceUnavailable, "crawler not configured")
		return
	}
	var req crawlRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := validateSiteURL(req.URL); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tracker := errtrack.New()
	res := s.deps.Crawler.Crawl(r.Context(), req.URL, tracker)
	docs := res.Documents
	if s.deps.Ranker != nil {
		docs = s.deps.Ranker.Rank(docs)
	}

	resp := crawlResponse{
		URL:          req.URL,
		Links:        res.Links,
		Documents:    make([]documentView, 0, len(docs)),
		Errors:       tracker.Records(),
		ErrorSummary: tracker.Summary(),
	}
	for _, doc := range docs {
		paragraphs, err := s.deps.Text.Process(doc)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.Documents = append(resp.Documents, documentView{URL: doc.BaseURI(), Paragraphs: paragraphs})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

type codesRequest struct {
	Predictions    []nace.PredictionSet `json:"predictions"`
	MaxCodes       *int                 `json:"max_codes"`
	ScoreThreshold *float64             `json:"score_threshold"`
}

func (s *Server) codes(w http.ResponseWriter, r *http.Request) {
	var req codesRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	maxCodes := valueOrDefault(req.MaxCodes, s.cfg.Nace.MaxCodes)
	threshold := valueOrDefault(req.ScoreThreshold, s.cfg.Nace.ScoreThreshold)
	if maxCodes <= 0 {
		s.writeError(w, http.StatusBadRequest, "max_codes must be > 0")
		return
	}
	codes := nace.BestCodes(req.Predictions, maxCodes, threshold)
	if codes == nil {
		codes = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"codes": codes})
}

type evaluateRequest struct {
	Validation []string `json:"validation"`
	Test       []string `json:"test"`
}

func (s *Server) evaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	eval := nace.NewEvaluator(s.weights())
	score := eval.Compare(req.Validation, req.Test)
	s.writeJSON(w, http.StatusOK, map[string]any{"score": score, "summary": eval.Summary()})
}

func (s *Server) weights() nace.Weights {
	if s.cfg.Nace.Weights == (nace.Weights{}) {
		return nace.DefaultWeights()
	}
	return s.cfg.Nace.Weights
}

func (s *Server) submitPartner(w http.ResponseWriter, r *http.Request) {
	if s.deps.Dispatcher == nil || s.deps.IDGen == nil {
		s.writeError(w, http.StatusServiceUnavailable, "partner analysis not configured")
		return
	}
	var p partner.BusinessPartner
	if err := decodeBody(w, r, &p); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := p.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	runID, err := s.enqueuePartner(r.Context(), &p)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusRequestTimeout
		}
		s.writeError(w, status, err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID, "partner_key": p.Key})
}

func (s *Server) enqueuePartner(ctx context.Context, p *partner.BusinessPartner) (string, error) {
	runID, err := s.deps.IDGen.NewID()
	if err != nil {
		return "", fmt.Errorf("generate run id: %w", err)
	}
	queueCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.deps.Dispatcher.Enqueue(queueCtx, crawler.QueueItem{RunID: runID, Partner: p}); err != nil {
		return "", fmt.Errorf("enqueue partner: %w", err)
	}
	return runID, nil
}

func validateSiteURL(raw string) error {
	if raw == "" {
		return errors.New("url required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid url %q", raw)
	}
	return nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

func valueOrDefault[T any](ptr *T, def T) T {
	if ptr == nil {
		return def
	}
	return *ptr
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("request_id", requestID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered",
						zap.String("request_id", requestID(r.Context())),
						zap.Any("error", rec),
					)
					writeJSON(logger, w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeJSON(nil, w, http.StatusForbidden, map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	writeJSON(s.logger, w, status, payload)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(s.logger, w, status, map[string]string{"error": msg})
}

func writeJSON(logger *zap.Logger, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && logger != nil {
		logger.Error("write JSON failed", zap.Error(err))
	}
}
