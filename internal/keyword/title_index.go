// Package keyword provides fuzzy and prefix search over movie titles.
package keyword

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	unicodetok "github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/ruiji/internal/models"
)

const (
	titleAnalyzer = "title"
	// terms shorter than this are matched exactly or by prefix, never fuzzily
	minFuzzyTermLen = 4
)

type titleDoc struct {
	Title string `json:"title"`
}

// TitleIndex is an in-memory title index over one corpus snapshot. Document ids are row indexes.
type TitleIndex struct {
	index  bleve.Index
	titles []string
}

// NewTitleIndex indexes every movie title. Titles are lowercased and split on word boundaries;
// no stop words are removed so that "The" and "Of" stay searchable.
func NewTitleIndex(movies []models.Movie) (*TitleIndex, error) {
	im := bleve.NewIndexMapping()
	err := im.AddCustomAnalyzer(titleAnalyzer, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicodetok.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register title analyzer: %w", err)
	}
	docMapping := bleve.NewDocumentMapping()
	titleField := bleve.NewTextFieldMapping()
	titleField.Analyzer = titleAnalyzer
	titleField.Store = false
	docMapping.AddFieldMappingsAt("title", titleField)
	im.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("failed to create title index: %w", err)
	}

	titles := make([]string, len(movies))
	batch := index.NewBatch()
	for i, m := range movies {
		titles[i] = m.Title
		if err := batch.Index(strconv.Itoa(i), titleDoc{Title: m.Title}); err != nil {
			_ = index.Close()
			return nil, fmt.Errorf("failed to index title at row %d: %w", i, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		_ = index.Close()
		return nil, fmt.Errorf("failed to index titles: %w", err)
	}
	return &TitleIndex{index: index, titles: titles}, nil
}

// Search returns up to limit titles matching every query term by prefix or, for longer terms,
// within one edit. A blank query returns no matches.
func (t *TitleIndex) Search(ctx context.Context, query string, limit int) ([]models.TitleMatch, error) {
	terms := tokenize(query)
	if len(terms) == 0 || limit <= 0 {
		return nil, nil
	}

	must := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		must = append(must, termQuery(term))
	}
	req := bleve.NewSearchRequest(bleve.NewConjunctionQuery(must...))
	req.Size = limit

	res, err := t.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("title search failed: %w", err)
	}
	out := make([]models.TitleMatch, 0, len(res.Hits))
	for _, hit := range res.Hits {
		i, err := strconv.Atoi(hit.ID)
		if err != nil || i < 0 || i >= len(t.titles) {
			continue
		}
		out = append(out, models.TitleMatch{Index: i, Title: t.titles[i], Score: hit.Score})
	}
	return out, nil
}

// Suggest returns up to n distinct titles close to title, nearest edit distance first.
// It is used to hint at the intended title when an exact lookup fails.
func (t *TitleIndex) Suggest(ctx context.Context, title string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	candidates, err := t.Search(ctx, title, max(n*4, 20))
	if err != nil {
		return nil, err
	}
	want := strings.ToLower(title)
	type ranked struct {
		title string
		dist  int
	}
	seen := make(map[string]struct{}, len(candidates))
	list := make([]ranked, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := seen[c.Title]; ok {
			continue
		}
		seen[c.Title] = struct{}{}
		list = append(list, ranked{title: c.Title, dist: editDistance(want, strings.ToLower(c.Title))})
	}
	// stable: equal distances keep search relevance order
	sort.SliceStable(list, func(i, j int) bool { return list[i].dist < list[j].dist })
	if len(list) > n {
		list = list[:n]
	}
	out := make([]string, len(list))
	for i, r := range list {
		out[i] = r.title
	}
	return out, nil
}

// DocCount returns the number of indexed titles.
func (t *TitleIndex) DocCount() (uint64, error) {
	return t.index.DocCount()
}

// Close releases the index.
func (t *TitleIndex) Close() error {
	return t.index.Close()
}

func termQuery(term string) blevequery.Query {
	prefix := bleve.NewPrefixQuery(term)
	prefix.SetField("title")
	prefix.SetBoost(2)
	if len([]rune(term)) < minFuzzyTermLen {
		exact := bleve.NewTermQuery(term)
		exact.SetField("title")
		exact.SetBoost(3)
		return bleve.NewDisjunctionQuery(exact, prefix)
	}
	fuzzy := bleve.NewFuzzyQuery(term)
	fuzzy.SetField("title")
	fuzzy.SetFuzziness(1)
	return bleve.NewDisjunctionQuery(fuzzy, prefix)
}

// tokenize lowercases query and splits it on anything that is not a letter or digit.
func tokenize(query string) []string {
	return strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
