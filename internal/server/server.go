package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/talentpath/upskiller/internal/recommend"
)

const maxSkillsPerRequest = 50

// Server carries the JSON recommendation endpoint and the operator-facing
// cache administration endpoints. Authentication is expected to live in
// front of it.
type Server struct {
	resolver *recommend.Resolver
	cache    *recommend.ResultCache
	logger   *zap.Logger
	httpSrv  *http.Server
}

// New builds a server listening on addr. cache may be nil when caching is
// disabled; the admin cache endpoints then report that state instead.
func New(addr string, resolver *recommend.Resolver, cache *recommend.ResultCache, logger *zap.Logger) *Server {
	s := &Server{
		resolver: resolver,
		cache:    cache,
		logger:   logger,
	}
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the route table. Exposed separately for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/recommend", s.handleRecommend)
	mux.HandleFunc("GET /admin/cache/stats", s.handleCacheStats)
	mux.HandleFunc("GET /admin/cache/top", s.handleCacheTop)
	mux.HandleFunc("POST /admin/cache/purge", s.handleCachePurge)
	mux.HandleFunc("POST /admin/cache/clear", s.handleCacheClear)
	return mux
}

// ListenAndServe blocks until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpSrv.Addr))
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// SkillRequest is one inbound skill-gap record.
type SkillRequest struct {
	Skill       string  `json:"skill"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Threshold   float64 `json:"threshold,omitempty"`
}

type recommendRequest struct {
	Skills []SkillRequest `json:"skills"`
}

type recommendResponse struct {
	Results []recommend.Result `json:"results"`
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if len(req.Skills) == 0 {
		writeError(w, http.StatusBadRequest, "skills list is empty")
		return
	}
	if len(req.Skills) > maxSkillsPerRequest {
		writeError(w, http.StatusBadRequest, "too many skills in one request")
		return
	}

	queries := make([]recommend.SkillQuery, len(req.Skills))
	for i, sk := range req.Skills {
		queries[i] = recommend.SkillQuery{
			Skill:       sk.Skill,
			Description: sk.Description,
			Category:    recommend.ParseCategory(sk.Category),
			Threshold:   sk.Threshold,
		}
	}

	results := s.resolver.ResolveAll(r.Context(), queries)
	writeJSON(w, http.StatusOK, recommendResponse{Results: results})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	if s.cache == nil {
		writeError(w, http.StatusServiceUnavailable, "result cache is disabled")
		return
	}
	writeJSON(w, http.StatusOK, s.cache.Stats())
}

func (s *Server) handleCacheTop(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeError(w, http.StatusServiceUnavailable, "result cache is disabled")
		return
	}
	n := 10
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "n must be a positive integer")
			return
		}
		n = parsed
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": s.cache.TopEntries(n)})
}

func (s *Server) handleCachePurge(w http.ResponseWriter, _ *http.Request) {
	if s.cache == nil {
		writeError(w, http.StatusServiceUnavailable, "result cache is disabled")
		return
	}
	removed := s.cache.InvalidateExpired()
	s.logger.Info("manual cache purge", zap.Int("removed", removed))
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (s *Server) handleCacheClear(w http.ResponseWriter, _ *http.Request) {
	if s.cache == nil {
		writeError(w, http.StatusServiceUnavailable, "result cache is disabled")
		return
	}
	removed := s.cache.Clear()
	s.logger.Info("manual cache clear", zap.Int("removed", removed))
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
