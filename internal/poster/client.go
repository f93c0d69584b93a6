// Package poster looks up movie poster URLs from a TMDB-compatible API.
package poster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hyperjump/ruiji/internal/config"
	"github.com/hyperjump/ruiji/internal/metrics"
	"github.com/hyperjump/ruiji/internal/models"
)

// ErrNoAPIKey is returned by Fetch when the client has no API key.
var ErrNoAPIKey = errors.New("poster: no API key configured")

// maxBodyBytes caps how much of an upstream response is decoded.
const maxBodyBytes = 1 << 20

// Fetcher fetches the poster for one movie. A nil error means the answer is definitive and
// may be cached, whether or not a poster exists.
type Fetcher interface {
	Fetch(ctx context.Context, movieID int64) (models.Poster, error)
}

// Client is a Fetcher backed by HTTP. Each call makes at most one request: there are no retries.
// Requests are rate limited and pass through a circuit breaker so a failing upstream is left alone.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	imageBaseURL string
	apiKey       string
	limiter      *rate.Limiter
	breaker      *gobreaker.CircuitBreaker[models.Poster]
	logger       *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// WithHTTPClient replaces the HTTP client. Its Timeout is left as given.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

type tmdbMovie struct {
	PosterPath *string `json:"poster_path"`
}

// NewClient creates a client from poster settings.
func NewClient(cfg config.PosterConfig, opts ...ClientOption) *Client {
	c := &Client{
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		imageBaseURL: strings.TrimRight(cfg.ImageBaseURL, "/"),
		apiKey:       cfg.APIKey,
		limiter:      rate.NewLimiter(rate.Inf, 0),
		logger:       zap.NewNop(),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker[models.Poster](gobreaker.Settings{
		Name:        "poster-api",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		// open at >= 60% failures over at least 10 requests
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("poster circuit breaker state change",
				zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
		// a cancelled caller says nothing about upstream health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return c
}

// Fetch returns the poster for movieID. A movie without poster_path, or unknown upstream (404),
// yields an unavailable poster and a nil error. Transport errors, other non-2xx statuses, and an
// open circuit are returned as errors.
func (c *Client) Fetch(ctx context.Context, movieID int64) (models.Poster, error) {
	if c.apiKey == "" {
		metrics.RecordPosterFetch(metrics.PosterDisabled, 0)
		return models.Poster{MovieID: movieID}, ErrNoAPIKey
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return models.Poster{MovieID: movieID}, fmt.Errorf("poster rate limit: %w", err)
	}

	start := time.Now()
	p, err := c.breaker.Execute(func() (models.Poster, error) {
		return c.fetch(ctx, movieID)
	})
	took := time.Since(start)

	switch {
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordPosterFetch(metrics.PosterCircuitOpen, 0)
		return models.Poster{MovieID: movieID}, fmt.Errorf("poster lookup skipped: %w", err)
	case err != nil:
		metrics.RecordPosterFetch(metrics.PosterError, took)
		return models.Poster{MovieID: movieID}, err
	case p.Available:
		metrics.RecordPosterFetch(metrics.PosterFound, took)
	default:
		metrics.RecordPosterFetch(metrics.PosterMissing, took)
	}
	return p, nil
}

// BreakerState reports the circuit breaker state (closed, half-open, open).
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

func (c *Client) fetch(ctx context.Context, movieID int64) (models.Poster, error) {
	p := models.Poster{MovieID: movieID}

	u := fmt.Sprintf("%s/movie/%d?%s", c.baseURL, movieID, url.Values{"api_key": {c.apiKey}}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return p, fmt.Errorf("build poster request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// the URL carries the API key; report only the movie
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return p, fmt.Errorf("poster request for movie %d: %w", movieID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		p.FetchedAt = time.Now()
		return p, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return p, fmt.Errorf("poster request for movie %d: unexpected status %d", movieID, resp.StatusCode)
	}

	var body tmdbMovie
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil {
		return p, fmt.Errorf("decode poster response for movie %d: %w", movieID, err)
	}
	p.FetchedAt = time.Now()
	if body.PosterPath != nil && *body.PosterPath != "" {
		p.URL = c.imageBaseURL + *body.PosterPath
		p.Available = true
	}
	return p, nil
}
