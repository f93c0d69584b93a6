// Package e2e runs recommendations end to end over a generated corpus written to disk.
package e2e

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"

	"github.com/hyperjump/ruiji/internal/vector"
)

// Dimensions of the generated vectors.
const Dimensions = 16

// Movie is one generated corpus row.
type Movie struct {
	ID     int64
	Title  string
	Rating float64
	Genre  string
	Vector []float32
}

// QueryTestCase names a query title and the titles that must fill the top of its results.
type QueryTestCase struct {
	Title       string
	ExpectedTop []string
	Description string
}

// Corpus holds generated movies and query cases.
type Corpus struct {
	Movies    []Movie
	TestCases []QueryTestCase
}

var genres = []string{"Space Opera", "Heist", "Romance", "Western", "Horror", "Animation", "Noir", "Sports"}

// BuildCorpus returns perMovie movies for each genre. Members of a genre share a direction in
// vector space with a little noise, so a query's genre mates outrank every other movie.
func BuildCorpus(perGenre int) *Corpus {
	rng := rand.New(rand.NewSource(42))
	c := &Corpus{}
	id := int64(1000)
	for g, genre := range genres {
		var titles []string
		for k := 0; k < perGenre; k++ {
			vec := make([]float32, Dimensions)
			vec[g] = 1
			for d := range vec {
				vec[d] += float32(rng.Float64() * 0.05)
			}
			title := fmt.Sprintf("%s %d", genre, k+1)
			c.Movies = append(c.Movies, Movie{
				ID:     id,
				Title:  title,
				Rating: float64(5 + (k % 5)),
				Genre:  genre,
				Vector: vec,
			})
			titles = append(titles, title)
			id++
		}
		if perGenre > 1 {
			c.TestCases = append(c.TestCases, QueryTestCase{
				Title:       titles[0],
				ExpectedTop: titles[1:],
				Description: genre + " neighbours rank first",
			})
		}
	}
	return c
}

// WriteFiles writes the metadata CSV and the vector file into dir and returns their paths.
// A ".zst" vectorsName produces a compressed vector file.
func (c *Corpus) WriteFiles(dir, vectorsName string) (string, string, error) {
	metaPath := filepath.Join(dir, "movies.csv")
	f, err := os.Create(metaPath)
	if err != nil {
		return "", "", err
	}
	w := csv.NewWriter(f)
	_ = w.Write([]string{"id", "title", "vote_average", "genres"})
	for _, m := range c.Movies {
		_ = w.Write([]string{strconv.FormatInt(m.ID, 10), m.Title, strconv.FormatFloat(m.Rating, 'f', 1, 64), m.Genre})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return "", "", err
	}
	if err := f.Close(); err != nil {
		return "", "", err
	}

	ids := make([]string, len(c.Movies))
	vecs := make([][]float32, len(c.Movies))
	for i, m := range c.Movies {
		ids[i] = strconv.FormatInt(m.ID, 10)
		vecs[i] = m.Vector
	}
	vecPath := filepath.Join(dir, vectorsName)
	if err := vector.SaveFile(vecPath, ids, vecs); err != nil {
		return "", "", err
	}
	return metaPath, vecPath, nil
}

// GenreOf returns the genre of title, or "" if it is not in the corpus.
func (c *Corpus) GenreOf(title string) string {
	for _, m := range c.Movies {
		if m.Title == title {
			return m.Genre
		}
	}
	return ""
}
