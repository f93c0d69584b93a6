package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/ruiji/internal/corpus"
	"github.com/hyperjump/ruiji/internal/models"
	"github.com/hyperjump/ruiji/internal/storage"
)

const (
	defaultTitleLimit = 20
	maxTitleLimit     = 100
	maxBodyBytes      = 1 << 16
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Status()
	if err != nil {
		s.respondServiceError(w, "status", err)
		return
	}
	resp := map[string]interface{}{
		"corpus": st,
	}
	if s.config != nil {
		resp["config"] = map[string]interface{}{
			"metadata_path":  s.config.Corpus.MetadataPath,
			"vectors_path":   s.config.Corpus.VectorsPath,
			"database_path":  s.config.Storage.DatabasePath,
			"default_top_n":  s.config.Recommend.DefaultTopN,
			"min_top_n":      s.config.Recommend.MinTopN,
			"max_top_n":      s.config.Recommend.MaxTopN,
			"watch":          s.config.Corpus.WatchOrDefault(),
			"poster_api_key": s.config.Poster.Enabled(),
		}
		diskBytes, err := storage.DiskUsageBytes(
			s.config.Corpus.MetadataPath,
			s.config.Corpus.VectorsPath,
			s.config.Storage.DatabasePath,
		)
		if err == nil {
			resp["disk_usage_bytes"] = diskBytes
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

type titlesResponse struct {
	Titles []string `json:"titles"`
	Total  int      `json:"total"`
}

type titleSearchResponse struct {
	Query   string              `json:"query"`
	Matches []models.TitleMatch `json:"matches"`
	Total   int                 `json:"total"`
}

func (s *Server) handleTitles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if strings.TrimSpace(q) == "" {
		titles, err := s.svc.Titles()
		if err != nil {
			s.respondServiceError(w, "titles", err)
			return
		}
		s.respondJSON(w, http.StatusOK, titlesResponse{Titles: titles, Total: len(titles)})
		return
	}

	limit := defaultTitleLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxTitleLimit)
	}
	matches, err := s.svc.SearchTitles(r.Context(), q, limit)
	if err != nil {
		s.respondServiceError(w, "title search", err)
		return
	}
	if matches == nil {
		matches = []models.TitleMatch{}
	}
	s.respondJSON(w, http.StatusOK, titleSearchResponse{Query: q, Matches: matches, Total: len(matches)})
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req models.RecommendationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("recommend request", zap.String("title", req.Title), zap.Int("top_n", req.TopN))
	resp, err := s.svc.Recommend(r.Context(), req)
	if err != nil {
		s.respondServiceError(w, "recommend", err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePoster(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		s.respondError(w, http.StatusBadRequest, "invalid movie id")
		return
	}
	s.respondJSON(w, http.StatusOK, s.svc.Poster(r.Context(), id))
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.Reload(r.Context())
	if err != nil {
		s.logger.Error("reload failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "reloaded",
		"version": snap.Version,
		"items":   snap.Len(),
	})
}

// respondServiceError maps service errors to HTTP statuses.
func (s *Server) respondServiceError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, corpus.ErrNotLoaded) {
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.logger.Error(op+" failed", zap.Error(err))
	s.respondError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
