// Package corpus loads the movie metadata table and its aligned vector file into immutable
// snapshots and publishes them for concurrent readers.
package corpus

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/hyperjump/ruiji/internal/models"
	"github.com/hyperjump/ruiji/internal/vector"
)

var (
	// ErrMisaligned is returned when metadata rows and vector rows do not describe the same items.
	ErrMisaligned = errors.New("metadata and vectors are misaligned")
	// ErrNotLoaded is returned when no snapshot has been published yet.
	ErrNotLoaded = errors.New("corpus not loaded")
)

// Snapshot is one immutable, internally consistent corpus: metadata rows and the vector
// store built from them. Row i of Movies is row i of Store.
type Snapshot struct {
	Store    *vector.Store
	Movies   []models.Movie
	Version  string
	LoadedAt time.Time
	// Fingerprint is a digest of the source files; empty when the loader has none.
	Fingerprint string
}

// NewSnapshot builds a snapshot from metadata rows and vector rows. ids, when non-nil, are the
// row ids stored with the vectors; a non-empty id must equal the metadata id of the same row.
func NewSnapshot(movies []models.Movie, ids []string, vectors [][]float32) (*Snapshot, error) {
	if len(movies) != len(vectors) {
		return nil, fmt.Errorf("%w: %d metadata rows, %d vectors", ErrMisaligned, len(movies), len(vectors))
	}
	if ids != nil && len(ids) != len(vectors) {
		return nil, fmt.Errorf("%w: %d ids, %d vectors", ErrMisaligned, len(ids), len(vectors))
	}

	rows := make([]models.Movie, len(movies))
	titles := make([]string, len(movies))
	for i, m := range movies {
		if ids != nil && ids[i] != "" && ids[i] != strconv.FormatInt(m.ID, 10) {
			return nil, fmt.Errorf("%w: row %d has metadata id %d but vector id %q", ErrMisaligned, i, m.ID, ids[i])
		}
		m.Index = i
		rows[i] = m
		titles[i] = m.Title
	}

	store, err := vector.NewStore(titles, vectors)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Store:    store,
		Movies:   rows,
		Version:  uuid.New().String(),
		LoadedAt: time.Now(),
	}, nil
}

// Len returns the number of items.
func (s *Snapshot) Len() int {
	return len(s.Movies)
}

// Movie returns the metadata row at index i.
func (s *Snapshot) Movie(i int) (models.Movie, bool) {
	if i < 0 || i >= len(s.Movies) {
		return models.Movie{}, false
	}
	return s.Movies[i], true
}
