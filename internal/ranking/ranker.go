// Package ranking ranks corpus rows by cosine similarity to a query row.
package ranking

import (
	"sort"

	"github.com/hyperjump/ruiji/internal/vector"
	"go.uber.org/zap"
)

// VectorSource is the read-only corpus view the ranker needs.
type VectorSource interface {
	Size() int
	// VectorAt panics when i is outside [0, Size()).
	VectorAt(i int) []float32
}

// TitleResolver maps an exact title to its corpus row.
type TitleResolver interface {
	Resolve(title string) (int, error)
}

// Corpus is a VectorSource that can also resolve titles.
type Corpus interface {
	VectorSource
	TitleResolver
}

// normSource is implemented by stores that precompute row norms (vector.Store does).
type normSource interface {
	Norm(i int) float64
}

// Scored is one ranked row.
type Scored struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Recommend returns up to topN rows most similar to queryIndex, excluding queryIndex itself.
// Rows are ordered by descending cosine score; equal scores keep ascending row order.
// The result length is min(topN, Size()-1); topN <= 0 yields an empty result.
// An out-of-range queryIndex panics.
func Recommend(src VectorSource, queryIndex, topN int) []Scored {
	query := src.VectorAt(queryIndex)
	if topN <= 0 {
		return []Scored{}
	}
	scores := scoreAll(src, query)

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	// stable: ties stay in ascending row order
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	limit := topN
	if n := len(order) - 1; limit > n {
		limit = n
	}
	out := make([]Scored, 0, max(limit, 0))
	for _, i := range order {
		if len(out) >= limit {
			break
		}
		if i == queryIndex {
			continue
		}
		out = append(out, Scored{Index: i, Score: scores[i]})
	}
	return out
}

// RecommendTitle resolves title and ranks against it. found is false when the title is
// not in the corpus; in that case no ranking is performed and the result is empty.
func RecommendTitle(c Corpus, title string, topN int) (results []Scored, found bool) {
	idx, err := c.Resolve(title)
	if err != nil {
		return []Scored{}, false
	}
	return Recommend(c, idx, topN), true
}

// scoreAll returns the cosine score of query against every row, the query row included.
func scoreAll(src VectorSource, query []float32) []float64 {
	n := src.Size()
	scores := make([]float64, n)
	qNorm := vector.L2Norm(query)
	norms, hasNorms := src.(normSource)
	for i := 0; i < n; i++ {
		vec := src.VectorAt(i)
		var norm float64
		if hasNorms {
			norm = norms.Norm(i)
		} else {
			norm = vector.L2Norm(vec)
		}
		scores[i] = vector.Cosine(vector.InnerProduct(query, vec), qNorm, norm)
	}
	return scores
}

// Ranker wraps Recommend with optional debug logging.
type Ranker struct {
	logger *zap.Logger
}

// RankerOption configures a Ranker.
type RankerOption func(*Ranker)

// WithLogger sets a logger for per-query debug output.
func WithLogger(l *zap.Logger) RankerOption {
	return func(r *Ranker) { r.logger = l }
}

// NewRanker creates a ranker.
func NewRanker(opts ...RankerOption) *Ranker {
	r := &Ranker{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Recommend is the logging counterpart of the package-level Recommend.
func (r *Ranker) Recommend(src VectorSource, queryIndex, topN int) []Scored {
	out := Recommend(src, queryIndex, topN)
	r.logger.Debug("ranked corpus",
		zap.Int("query_index", queryIndex),
		zap.Int("top_n", topN),
		zap.Int("corpus_size", src.Size()),
		zap.Int("results", len(out)),
	)
	return out
}

// TopN returns the first n results, or all of them when n exceeds the length.
func TopN(results []Scored, n int) []Scored {
	if n <= 0 {
		return []Scored{}
	}
	if n >= len(results) {
		return results
	}
	return results[:n]
}
