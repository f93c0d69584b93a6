// Package models defines core data structures for movies, recommendations, and posters.
package models

import "time"

// Movie is one row of the metadata table. Index is its corpus row and is the join key
// with the vector store.
type Movie struct {
	Index      int               `json:"index"`
	ID         int64             `json:"id"`
	Title      string            `json:"title"`
	Rating     float64           `json:"rating"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Poster is the outcome of a poster lookup for a movie ID.
// Available is false when the upstream has no poster or the lookup failed.
type Poster struct {
	MovieID   int64     `json:"id" db:"movie_id"`
	URL       string    `json:"poster_url,omitempty" db:"url"`
	Available bool      `json:"available" db:"available"`
	FetchedAt time.Time `json:"fetched_at" db:"fetched_at"`
}

// TitleMatch is a title search hit.
type TitleMatch struct {
	Index int     `json:"index"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}
