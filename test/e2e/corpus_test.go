package e2e

import (
	"testing"

	"github.com/hyperjump/ruiji/internal/corpus"
)

func TestBuildCorpus(t *testing.T) {
	c := BuildCorpus(5)
	if len(c.Movies) != 5*len(genres) {
		t.Fatalf("got %d movies, want %d", len(c.Movies), 5*len(genres))
	}
	if len(c.TestCases) != len(genres) {
		t.Fatalf("got %d test cases, want %d", len(c.TestCases), len(genres))
	}
	seen := map[string]bool{}
	for _, m := range c.Movies {
		if seen[m.Title] {
			t.Errorf("duplicate title %q", m.Title)
		}
		seen[m.Title] = true
		if len(m.Vector) != Dimensions {
			t.Errorf("%s: dimension %d", m.Title, len(m.Vector))
		}
	}
	for _, tc := range c.TestCases {
		if len(tc.ExpectedTop) != 4 {
			t.Errorf("%s: expected 4 neighbours, got %d", tc.Title, len(tc.ExpectedTop))
		}
		for _, want := range tc.ExpectedTop {
			if c.GenreOf(want) != c.GenreOf(tc.Title) {
				t.Errorf("%s: neighbour %s is from another genre", tc.Title, want)
			}
		}
	}
}

func TestBuildCorpus_Deterministic(t *testing.T) {
	a, b := BuildCorpus(3), BuildCorpus(3)
	for i := range a.Movies {
		for d := range a.Movies[i].Vector {
			if a.Movies[i].Vector[d] != b.Movies[i].Vector[d] {
				t.Fatalf("row %d differs between builds", i)
			}
		}
	}
}

func TestWriteFiles_Loadable(t *testing.T) {
	c := BuildCorpus(2)
	meta, vecs, err := c.WriteFiles(t.TempDir(), "vectors.bin")
	if err != nil {
		t.Fatal(err)
	}
	snap, err := corpus.NewFileLoader(meta, vecs).Load(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if snap.Len() != len(c.Movies) {
		t.Errorf("loaded %d rows, want %d", snap.Len(), len(c.Movies))
	}
	m, ok := snap.Movie(0)
	if !ok || m.Attributes["genres"] != genres[0] {
		t.Errorf("row 0 = %+v", m)
	}
}
