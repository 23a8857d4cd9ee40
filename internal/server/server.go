// Package server exposes the dashboard over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/riskmap/internal/dashboard"
	"github.com/sells-group/riskmap/internal/enrich"
	"github.com/sells-group/riskmap/internal/metrics"
	"github.com/sells-group/riskmap/internal/region"
	"github.com/sells-group/riskmap/pkg/prediction"
)

// Server routes dashboard requests.
type Server struct {
	svc            *dashboard.Service
	canon          *region.Canonicalizer
	metrics        *metrics.Recorder
	allowedOrigins []string
}

// New creates a Server. A nil canonicalizer uses region.DefaultCanonicalizer.
func New(svc *dashboard.Service, canon *region.Canonicalizer, m *metrics.Recorder, allowedOrigins []string) *Server {
	if canon == nil {
		canon = region.DefaultCanonicalizer()
	}
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return &Server{svc: svc, canon: canon, metrics: m, allowedOrigins: allowedOrigins}
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(api chi.Router) {
		api.Get("/regions", s.handleRegions)
		api.Get("/summary", s.handleSummary)
		api.Get("/snapshot", s.handleSnapshot)
		api.Get("/importance", s.handleImportance)
		api.Get("/compare", s.handleCompare)
		api.Get("/canonicalize", s.handleCanonicalize)
	})

	return r
}

// ListenAndServe serves on port until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server: listen")
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleRegions returns the enriched FeatureCollection for model and year.
func (s *Server) handleRegions(w http.ResponseWriter, r *http.Request) {
	model, year, ok := s.modelYear(w, r)
	if !ok {
		return
	}

	enriched, err := s.svc.Enrich(r.Context(), model, year, credentialFrom(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, enrich.ToFeatureCollection(enriched))
}

// handleSummary builds and returns a fresh snapshot.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	model, year, ok := s.modelYear(w, r)
	if !ok {
		return
	}
	prev, ok := intParam(w, r, "previous_year", 0)
	if !ok {
		return
	}

	snap, err := s.svc.Refresh(r.Context(), model, year, prev, credentialFrom(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// handleSnapshot returns the most recent successful snapshot.
func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	snap := s.svc.Current()
	if snap == nil {
		writeError(w, http.StatusNotFound, "no snapshot yet")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleImportance returns top-N rankings for a comma-separated model list.
func (s *Server) handleImportance(w http.ResponseWriter, r *http.Request) {
	models := modelsParam(r, s.svc.Models())

	topN, ok := intParam(w, r, "top_n", s.svc.DefaultTopN())
	if !ok {
		return
	}
	if topN < 0 {
		writeError(w, http.StatusBadRequest, "top_n must be >= 0")
		return
	}
	if topN == 0 {
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}

	ranked, err := s.svc.TopFeatures(r.Context(), models, topN, credentialFrom(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ranked)
}

// handleCompare returns one year's regions side by side across models.
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("year") == "" {
		writeError(w, http.StatusBadRequest, "year is required")
		return
	}
	year, ok := intParam(w, r, "year", 0)
	if !ok {
		return
	}

	cmp, err := s.svc.CompareModels(r.Context(), modelsParam(r, nil), year, credentialFrom(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}

func (s *Server) handleCanonicalize(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	key := s.canon.Canonicalize(name)
	writeJSON(w, http.StatusOK, map[string]string{
		"name":        name,
		"key":         key,
		"displayName": region.DisplayName(key),
	})
}

// modelYear parses the model and year query parameters. year is required.
func (s *Server) modelYear(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	model := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("model")))
	if model == "" {
		model = "rf"
	}
	if r.URL.Query().Get("year") == "" {
		writeError(w, http.StatusBadRequest, "year is required")
		return "", 0, false
	}
	year, ok := intParam(w, r, "year", 0)
	return model, year, ok
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, dashboard.ErrInvalidModel), errors.Is(err, dashboard.ErrInvalidYear):
		writeError(w, http.StatusBadRequest, err.Error())
	case r.Context().Err() != nil:
		// Client went away; nothing to write to.
	default:
		zap.L().Error("dashboard request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// credentialFrom forwards the caller's bearer token upstream.
func credentialFrom(r *http.Request) prediction.Credential {
	h := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(h, "Bearer "); ok {
		return prediction.Credential(strings.TrimSpace(token))
	}
	return ""
}

// modelsParam parses the comma-separated models parameter, or returns def
// when it is absent.
func modelsParam(r *http.Request, def []string) []string {
	raw := r.URL.Query().Get("models")
	if raw == "" {
		return def
	}
	var models []string
	for _, m := range strings.Split(raw, ",") {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			models = append(models, m)
		}
	}
	return models
}

func intParam(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be an integer", name))
		return 0, false
	}
	return v, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
