package poster

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/ruiji/internal/cache"
	"github.com/hyperjump/ruiji/internal/metrics"
	"github.com/hyperjump/ruiji/internal/models"
	"github.com/hyperjump/ruiji/internal/storage"
)

const (
	defaultCacheSize = 10000
	defaultCacheTTL  = 24 * time.Hour
)

// Service answers poster lookups from memory, then the persistent store, then the upstream.
// Only definitive answers are cached; a failed lookup is reported as unavailable and retried on
// the next call.
type Service struct {
	fetcher Fetcher
	store   storage.PosterStore
	mem     *cache.Cache[int64, models.Poster]
	ttl     time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithStore persists definitive answers in store.
func WithStore(store storage.PosterStore) ServiceOption {
	return func(s *Service) { s.store = store }
}

// WithCache sets the in-memory cache size and the TTL applied to both cache layers.
func WithCache(size int, ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
		if size > 0 {
			s.mem = s.newMemCache(size)
		}
	}
}

// WithServiceLogger sets the logger.
func WithServiceLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// NewService creates a lookup service. A nil fetcher disables upstream lookups; every poster not
// already stored is then unavailable.
func NewService(fetcher Fetcher, opts ...ServiceOption) *Service {
	s := &Service{
		fetcher: fetcher,
		ttl:     defaultCacheTTL,
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.mem == nil {
		s.mem = s.newMemCache(defaultCacheSize)
	}
	return s
}

// newMemCache shares the service clock so both cache layers age entries alike.
func (s *Service) newMemCache(size int) *cache.Cache[int64, models.Poster] {
	return cache.New[int64, models.Poster](size, s.ttl,
		cache.WithClock[int64, models.Poster](func() time.Time { return s.now() }))
}

// Lookup returns the poster for movieID. It never fails: any error degrades to an unavailable poster.
func (s *Service) Lookup(ctx context.Context, movieID int64) models.Poster {
	if p, ok := s.mem.Get(movieID); ok {
		metrics.RecordCacheLookup("poster", true)
		return p
	}
	metrics.RecordCacheLookup("poster", false)

	if s.store != nil {
		p, err := s.store.GetPoster(ctx, movieID)
		switch {
		case err == nil && s.now().Sub(p.FetchedAt) < s.ttl:
			// a stored answer keeps its original age
			s.mem.SetUntil(movieID, *p, p.FetchedAt.Add(s.ttl))
			return *p
		case err != nil && !errors.Is(err, storage.ErrNotFound):
			s.logger.Warn("poster store read failed", zap.Int64("movie_id", movieID), zap.Error(err))
		}
	}

	if s.fetcher == nil {
		return models.Poster{MovieID: movieID}
	}
	p, err := s.fetcher.Fetch(ctx, movieID)
	if err != nil {
		if !errors.Is(err, ErrNoAPIKey) {
			s.logger.Debug("poster lookup failed", zap.Int64("movie_id", movieID), zap.Error(err))
		}
		return models.Poster{MovieID: movieID}
	}
	p.MovieID = movieID
	if p.FetchedAt.IsZero() {
		p.FetchedAt = s.now()
	}
	s.mem.Set(movieID, p)
	if s.store != nil {
		if err := s.store.PutPoster(ctx, &p); err != nil {
			s.logger.Warn("poster store write failed", zap.Int64("movie_id", movieID), zap.Error(err))
		}
	}
	return p
}

// PurgeExpired deletes stored posters older than the TTL.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	if s.store == nil {
		return 0, nil
	}
	return s.store.DeleteExpiredPosters(ctx, s.now().Add(-s.ttl))
}

// CacheStats returns in-memory cache counters.
func (s *Service) CacheStats() cache.Stats {
	return s.mem.Stats()
}

// Circuit reports the upstream circuit breaker state, or "" when the fetcher has none.
func (s *Service) Circuit() string {
	if b, ok := s.fetcher.(interface{ BreakerState() string }); ok {
		return b.BreakerState()
	}
	return ""
}

// Enabled reports whether upstream lookups are configured.
func (s *Service) Enabled() bool {
	return s.fetcher != nil
}
