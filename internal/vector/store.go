// Package vector holds the item vector corpus and cosine similarity helpers.
package vector

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNotFound is returned by Resolve when a title is not in the corpus.
var ErrNotFound = errors.New("title not found")

// Store is an immutable corpus of feature vectors. Row i of the store is the item at row i
// of the metadata table it was built with; nothing reorders one without the other.
// All methods are safe for concurrent use.
type Store struct {
	dimensions int
	titles     []string
	vectors    [][]float32
	norms      []float64
	byTitle    map[string]int
}

// NewStore builds a store from aligned titles and vectors. Inputs are copied.
// All vectors must share the same positive dimension. An empty corpus is allowed.
func NewStore(titles []string, vectors [][]float32) (*Store, error) {
	if len(titles) != len(vectors) {
		return nil, fmt.Errorf("titles and vectors length mismatch: %d titles, %d vectors", len(titles), len(vectors))
	}
	s := &Store{
		titles:  make([]string, len(titles)),
		vectors: make([][]float32, len(vectors)),
		norms:   make([]float64, len(vectors)),
		byTitle: make(map[string]int, len(titles)),
	}
	if len(vectors) > 0 {
		s.dimensions = len(vectors[0])
		if s.dimensions == 0 {
			return nil, fmt.Errorf("dimensions must be positive")
		}
	}
	copy(s.titles, titles)
	for i, v := range vectors {
		if len(v) != s.dimensions {
			return nil, fmt.Errorf("vector dimension mismatch at row %d: got %d, expected %d", i, len(v), s.dimensions)
		}
		vec := make([]float32, len(v))
		copy(vec, v)
		s.vectors[i] = vec
		s.norms[i] = L2Norm(vec)
		// first occurrence wins for duplicate titles
		if _, ok := s.byTitle[titles[i]]; !ok {
			s.byTitle[titles[i]] = i
		}
	}
	return s, nil
}

// Resolve returns the row index of title. Matching is exact: no case folding or trimming.
// An unknown title returns an error wrapping ErrNotFound.
func (s *Store) Resolve(title string) (int, error) {
	idx, ok := s.byTitle[title]
	if !ok {
		return -1, fmt.Errorf("%w: %q", ErrNotFound, title)
	}
	return idx, nil
}

// VectorAt returns the vector at row i. The returned slice must not be modified.
// It panics if i is out of range; indices come from Resolve, so a bad one is a caller bug.
func (s *Store) VectorAt(i int) []float32 {
	s.mustIndex(i)
	return s.vectors[i]
}

// Norm returns the precomputed L2 norm of row i.
func (s *Store) Norm(i int) float64 {
	s.mustIndex(i)
	return s.norms[i]
}

// Title returns the title at row i.
func (s *Store) Title(i int) string {
	s.mustIndex(i)
	return s.titles[i]
}

// Size returns the number of rows.
func (s *Store) Size() int {
	return len(s.vectors)
}

// Dimensions returns the vector dimension, or 0 for an empty corpus.
func (s *Store) Dimensions() int {
	return s.dimensions
}

// Titles returns the distinct titles in ascending order.
func (s *Store) Titles() []string {
	out := make([]string, 0, len(s.byTitle))
	for t := range s.byTitle {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// DuplicateTitles returns how many rows share a title with an earlier row.
func (s *Store) DuplicateTitles() int {
	return len(s.titles) - len(s.byTitle)
}

func (s *Store) mustIndex(i int) {
	if i < 0 || i >= len(s.vectors) {
		panic(fmt.Sprintf("vector: index %d out of range [0, %d)", i, len(s.vectors)))
	}
}
