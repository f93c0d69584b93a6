package corpus

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/hyperjump/ruiji/internal/models"
)

// Recognized metadata columns. Matching is case-insensitive; any other column is kept in
// Movie.Attributes.
const (
	columnID     = "id"
	columnTitle  = "title"
	columnRating = "vote_average"
	columnAltRat = "rating"
)

// ReadMetadataCSV parses a metadata table with a header row. The id and title columns are
// required. Row order is preserved: the n-th data row becomes Movie.Index n.
func ReadMetadataCSV(r io.Reader) ([]models.Movie, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("metadata is empty: missing header row")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idCol, titleCol, ratingCol := -1, -1, -1
	names := make([]string, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		names[i] = name
		switch name {
		case columnID:
			idCol = i
		case columnTitle:
			titleCol = i
		case columnRating:
			ratingCol = i
		case columnAltRat:
			if ratingCol < 0 {
				ratingCol = i
			}
		}
	}
	if idCol < 0 || titleCol < 0 {
		return nil, fmt.Errorf("metadata header must contain %q and %q columns, got %v", columnID, columnTitle, header)
	}

	var movies []models.Movie
	for row := 0; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", row, err)
		}
		id, err := strconv.ParseInt(strings.TrimSpace(rec[idCol]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid id %q: %w", row, rec[idCol], err)
		}
		m := models.Movie{Index: row, ID: id, Title: rec[titleCol]}
		if ratingCol >= 0 {
			if v := strings.TrimSpace(rec[ratingCol]); v != "" {
				rating, err := strconv.ParseFloat(v, 64)
				if err != nil {
					return nil, fmt.Errorf("row %d: invalid %s %q: %w", row, names[ratingCol], v, err)
				}
				m.Rating = rating
			}
		}
		for i, v := range rec {
			if i == idCol || i == titleCol || i == ratingCol {
				continue
			}
			if m.Attributes == nil {
				m.Attributes = make(map[string]string)
			}
			m.Attributes[names[i]] = v
		}
		movies = append(movies, m)
	}
	return movies, nil
}

// LoadMetadataFile reads a metadata CSV from path.
func LoadMetadataFile(path string) ([]models.Movie, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open metadata: %w", err)
	}
	defer f.Close()
	movies, err := ReadMetadataCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return movies, nil
}
