package keyword

import (
	"context"
	"testing"

	"github.com/hyperjump/ruiji/internal/models"
)

func testMovies() []models.Movie {
	titles := []string{
		"Avatar",
		"The Dark Knight",
		"The Dark Knight Rises",
		"Pirates of the Caribbean: At World's End",
		"Spectre",
		"Up",
	}
	movies := make([]models.Movie, len(titles))
	for i, title := range titles {
		movies[i] = models.Movie{Index: i, ID: int64(i + 1), Title: title}
	}
	return movies
}

func newTestIndex(t *testing.T) *TitleIndex {
	t.Helper()
	idx, err := NewTitleIndex(testMovies())
	if err != nil {
		t.Fatalf("NewTitleIndex: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func titlesOf(matches []models.TitleMatch) map[string]int {
	out := make(map[string]int, len(matches))
	for _, m := range matches {
		out[m.Title] = m.Index
	}
	return out
}

func TestTitleIndex_DocCount(t *testing.T) {
	idx := newTestIndex(t)
	n, err := idx.DocCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 6 {
		t.Errorf("DocCount = %d, want 6", n)
	}
}

func TestTitleIndex_Search(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		query string
		want  []string
		not   []string
	}{
		{"all terms required", "dark knight", []string{"The Dark Knight", "The Dark Knight Rises"}, []string{"Avatar"}},
		{"stop words searchable", "the dark", []string{"The Dark Knight"}, nil},
		{"prefix", "pira", []string{"Pirates of the Caribbean: At World's End"}, nil},
		{"typo", "avatr", []string{"Avatar"}, nil},
		{"case insensitive", "SPECTRE", []string{"Spectre"}, nil},
		{"punctuation ignored", "caribbean:", []string{"Pirates of the Caribbean: At World's End"}, nil},
		{"short term", "up", []string{"Up"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := idx.Search(ctx, tt.query, 10)
			if err != nil {
				t.Fatal(err)
			}
			found := titlesOf(got)
			for _, w := range tt.want {
				if _, ok := found[w]; !ok {
					t.Errorf("Search(%q) missing %q, got %v", tt.query, w, got)
				}
			}
			for _, n := range tt.not {
				if _, ok := found[n]; ok {
					t.Errorf("Search(%q) should not return %q", tt.query, n)
				}
			}
		})
	}
}

func TestTitleIndex_SearchIndexesAreRows(t *testing.T) {
	idx := newTestIndex(t)
	got, err := idx.Search(context.Background(), "spectre", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Index != 4 {
		t.Errorf("got %+v, want row 4", got)
	}
}

func TestTitleIndex_SearchBlankAndLimit(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	if got, _ := idx.Search(ctx, "   ", 10); len(got) != 0 {
		t.Errorf("blank query returned %v", got)
	}
	if got, _ := idx.Search(ctx, "dark", 0); len(got) != 0 {
		t.Errorf("zero limit returned %v", got)
	}
	got, err := idx.Search(ctx, "dark", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("limit 1 returned %d results", len(got))
	}
}

func TestTitleIndex_Suggest(t *testing.T) {
	idx := newTestIndex(t)
	got, err := idx.Suggest(context.Background(), "the dark knigt", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) == 0 || got[0] != "The Dark Knight" {
		t.Errorf("Suggest = %v, want The Dark Knight first", got)
	}
	if got, _ := idx.Suggest(context.Background(), "zzzz", 3); len(got) != 0 {
		t.Errorf("Suggest(zzzz) = %v, want none", got)
	}
}

func TestEditDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"avatar", "avatr", 1},
		{"café", "cafe", 1},
		{"ab", "ba", 2},
	}
	for _, tt := range tests {
		if got := editDistance(tt.a, tt.b); got != tt.want {
			t.Errorf("editDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
