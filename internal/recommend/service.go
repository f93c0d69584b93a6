// Package recommend answers "movies like this title" requests against the current corpus snapshot.
package recommend

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/ruiji/internal/cache"
	"github.com/hyperjump/ruiji/internal/config"
	"github.com/hyperjump/ruiji/internal/corpus"
	"github.com/hyperjump/ruiji/internal/keyword"
	"github.com/hyperjump/ruiji/internal/metrics"
	"github.com/hyperjump/ruiji/internal/models"
	"github.com/hyperjump/ruiji/internal/poster"
	"github.com/hyperjump/ruiji/internal/ranking"
	"github.com/hyperjump/ruiji/internal/vector"
)

const maxSuggestions = 5

type cacheKey struct {
	version string
	title   string
}

// ranked is a cached ranking and the N it was computed for. A result shorter than depth
// holds every other row, so it can serve any N.
type ranked struct {
	scored []ranking.Scored
	depth  int
}

func (r ranked) covers(n int) bool {
	return n <= r.depth || len(r.scored) < r.depth
}

// Service resolves titles, ranks the corpus, and joins results with metadata and posters.
type Service struct {
	holder     *corpus.Holder
	ranker     *ranking.Ranker
	cfg        config.RecommendConfig
	results    *cache.Cache[cacheKey, ranked]
	posters    *poster.Service
	maxPosters int
	logger     *zap.Logger

	titleMu      sync.Mutex
	titleIndex   *keyword.TitleIndex
	titleVersion string
	titleLoaded  time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithPosters enables poster enrichment of the first maxPosters results.
func WithPosters(p *poster.Service, maxPosters int) Option {
	return func(s *Service) {
		s.posters = p
		s.maxPosters = maxPosters
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a service reading snapshots from holder.
func NewService(holder *corpus.Holder, cfg config.RecommendConfig, opts ...Option) *Service {
	s := &Service{
		holder: holder,
		cfg:    cfg,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ranker = ranking.NewRanker(ranking.WithLogger(s.logger))
	s.results = cache.New[cacheKey, ranked](cfg.CacheSize, cfg.CacheTTL)
	return s
}

// Recommend returns movies similar to req.Title. A blank or unknown title is not an error: the
// response has no results and a Message saying why. The only error is a missing corpus.
func (s *Service) Recommend(ctx context.Context, req models.RecommendationRequest) (*models.RecommendationResponse, error) {
	start := time.Now()
	req.Normalize(s.cfg.DefaultTopN, s.cfg.MinTopN, s.cfg.MaxTopN)
	resp := &models.RecommendationResponse{
		Query:   req.Title,
		TopN:    req.TopN,
		Results: []models.Recommendation{},
	}
	finish := func(outcome string) *models.RecommendationResponse {
		resp.Total = len(resp.Results)
		resp.QueryTime = time.Since(start).Milliseconds()
		metrics.RecordRecommend(outcome, time.Since(start))
		return resp
	}

	if strings.TrimSpace(req.Title) == "" {
		resp.Message = models.MessageNoSelection
		return finish(metrics.OutcomeNoSelection), nil
	}
	snap, err := s.holder.Current()
	if err != nil {
		metrics.RecordRecommend(metrics.OutcomeError, time.Since(start))
		return nil, err
	}
	resp.Version = snap.Version

	key := cacheKey{version: snap.Version, title: req.Title}
	entry, hit := s.results.Get(key)
	hit = hit && entry.covers(req.TopN)
	metrics.RecordCacheLookup("recommend", hit)
	if !hit {
		idx, err := snap.Store.Resolve(req.Title)
		if errors.Is(err, vector.ErrNotFound) {
			resp.Message = models.MessageNoRecommendations
			resp.Suggestions = s.suggest(ctx, snap, req.Title)
			return finish(metrics.OutcomeNotFound), nil
		}
		if err != nil {
			return nil, err
		}
		// rank once at the largest allowed N; smaller requests take a prefix
		depth := max(s.cfg.MaxTopN, req.TopN)
		entry = ranked{scored: s.ranker.Recommend(snap.Store, idx, depth), depth: depth}
		s.results.Set(key, entry)
	}
	resp.Cached = hit

	scored := ranking.TopN(entry.scored, req.TopN)
	if len(scored) == 0 {
		resp.Message = models.MessageNoRecommendations
		return finish(metrics.OutcomeEmpty), nil
	}
	resp.Results = make([]models.Recommendation, len(scored))
	for i, sc := range scored {
		m, _ := snap.Movie(sc.Index)
		resp.Results[i] = models.Recommendation{
			Rank:   i + 1,
			Index:  sc.Index,
			ID:     m.ID,
			Title:  m.Title,
			Rating: m.Rating,
			Score:  sc.Score,
		}
	}
	if req.Posters {
		s.attachPosters(ctx, resp.Results)
	}
	return finish(metrics.OutcomeOK), nil
}

// attachPosters looks up posters for the leading results concurrently. Lookups never fail;
// a missing poster leaves PosterURL empty.
func (s *Service) attachPosters(ctx context.Context, results []models.Recommendation) {
	if s.posters == nil || s.maxPosters <= 0 {
		return
	}
	n := min(s.maxPosters, len(results))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if p := s.posters.Lookup(gctx, results[i].ID); p.Available {
				results[i].PosterURL = p.URL
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Poster returns the poster for a movie ID; unavailable when posters are not configured.
func (s *Service) Poster(ctx context.Context, movieID int64) models.Poster {
	if s.posters == nil {
		return models.Poster{MovieID: movieID}
	}
	return s.posters.Lookup(ctx, movieID)
}

// Titles returns every distinct title in sorted order.
func (s *Service) Titles() ([]string, error) {
	snap, err := s.holder.Current()
	if err != nil {
		return nil, err
	}
	return snap.Store.Titles(), nil
}

// SearchTitles runs a fuzzy title search against the current snapshot.
func (s *Service) SearchTitles(ctx context.Context, query string, limit int) ([]models.TitleMatch, error) {
	snap, err := s.holder.Current()
	if err != nil {
		return nil, err
	}
	idx, release, err := s.titleIndexFor(snap)
	if err != nil {
		return nil, err
	}
	defer release()
	return idx.Search(ctx, query, limit)
}

func (s *Service) suggest(ctx context.Context, snap *corpus.Snapshot, title string) []string {
	idx, release, err := s.titleIndexFor(snap)
	if err != nil {
		s.logger.Warn("title index unavailable", zap.Error(err))
		return nil
	}
	defer release()
	out, err := idx.Suggest(ctx, title, maxSuggestions)
	if err != nil {
		s.logger.Debug("title suggestions failed", zap.String("title", title), zap.Error(err))
		return nil
	}
	return out
}

// titleIndexFor returns the title index for snap and a release func the caller runs
// when done. Only a snapshot newer than the installed one replaces it; a request still
// holding an older snapshot gets a private index that release closes. A replaced index
// is left open for searches in flight and is reclaimed with its snapshot.
func (s *Service) titleIndexFor(snap *corpus.Snapshot) (*keyword.TitleIndex, func(), error) {
	s.titleMu.Lock()
	defer s.titleMu.Unlock()
	if s.titleIndex != nil && s.titleVersion == snap.Version {
		return s.titleIndex, func() {}, nil
	}
	idx, err := keyword.NewTitleIndex(snap.Movies)
	if err != nil {
		return nil, nil, err
	}
	if s.titleIndex != nil && snap.LoadedAt.Before(s.titleLoaded) {
		return idx, func() { _ = idx.Close() }, nil
	}
	s.titleIndex, s.titleVersion, s.titleLoaded = idx, snap.Version, snap.LoadedAt
	return idx, func() {}, nil
}

// Reload reloads the corpus and drops cached results from older snapshots.
func (s *Service) Reload(ctx context.Context) (*corpus.Snapshot, error) {
	snap, err := s.holder.Reload(ctx)
	if err != nil {
		return nil, err
	}
	s.results.Purge()
	return snap, nil
}

// Status describes the active snapshot and cache state.
type Status struct {
	Version         string       `json:"version"`
	Fingerprint     string       `json:"fingerprint,omitempty"`
	Items           int          `json:"items"`
	Dimensions      int          `json:"dimensions"`
	DuplicateTitles int          `json:"duplicate_titles"`
	LoadedAt        time.Time    `json:"loaded_at"`
	ResultCache     cache.Stats  `json:"result_cache"`
	PosterCache     *cache.Stats `json:"poster_cache,omitempty"`
	PostersEnabled  bool         `json:"posters_enabled"`
	PosterCircuit   string       `json:"poster_circuit,omitempty"`
	IndexedTitles   uint64       `json:"indexed_titles,omitempty"`
}

// Status returns the current status or corpus.ErrNotLoaded.
func (s *Service) Status() (*Status, error) {
	snap, err := s.holder.Current()
	if err != nil {
		return nil, err
	}
	st := &Status{
		Version:         snap.Version,
		Fingerprint:     snap.Fingerprint,
		Items:           snap.Len(),
		Dimensions:      snap.Store.Dimensions(),
		DuplicateTitles: snap.Store.DuplicateTitles(),
		LoadedAt:        snap.LoadedAt,
		ResultCache:     s.results.Stats(),
	}
	if s.posters != nil {
		ps := s.posters.CacheStats()
		st.PosterCache = &ps
		st.PostersEnabled = s.posters.Enabled()
		st.PosterCircuit = s.posters.Circuit()
	}
	st.IndexedTitles = s.indexedTitles(snap)
	return st, nil
}

// indexedTitles counts documents in the installed title index when it serves snap.
// The index is built lazily, so zero means no title search has run yet.
func (s *Service) indexedTitles(snap *corpus.Snapshot) uint64 {
	s.titleMu.Lock()
	defer s.titleMu.Unlock()
	if s.titleIndex == nil || s.titleVersion != snap.Version {
		return 0
	}
	n, err := s.titleIndex.DocCount()
	if err != nil {
		s.logger.Debug("title index count failed", zap.Error(err))
		return 0
	}
	return n
}

// Close releases the title index.
func (s *Service) Close() error {
	s.titleMu.Lock()
	defer s.titleMu.Unlock()
	if s.titleIndex == nil {
		return nil
	}
	err := s.titleIndex.Close()
	s.titleIndex = nil
	return err
}
