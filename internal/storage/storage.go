// Package storage persists poster lookups so they survive restarts.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/hyperjump/ruiji/internal/models"
)

// ErrNotFound is returned when no poster is stored for a movie ID.
var ErrNotFound = errors.New("poster not found")

// PosterStore defines poster cache persistence operations.
type PosterStore interface {
	GetPoster(ctx context.Context, movieID int64) (*models.Poster, error)
	PutPoster(ctx context.Context, poster *models.Poster) error
	DeleteExpiredPosters(ctx context.Context, olderThan time.Time) (int64, error)
	CountPosters(ctx context.Context) (int64, error)
	Close() error
}
