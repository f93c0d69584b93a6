package models

// User-facing messages for empty results.
const (
	MessageNoSelection       = "no movie selected"
	MessageNoRecommendations = "no recommendations found"
)

// RecommendationRequest asks for movies similar to Title.
type RecommendationRequest struct {
	Title   string `json:"title"`
	TopN    int    `json:"top_n,omitempty"`
	Posters bool   `json:"posters,omitempty"` // attach poster URLs to the leading results
}

// Normalize clamps TopN into [minN, maxN], using defaultN when unset.
// The title is left untouched: lookups are exact.
func (r *RecommendationRequest) Normalize(defaultN, minN, maxN int) {
	if r.TopN <= 0 {
		r.TopN = defaultN
	}
	if r.TopN < minN {
		r.TopN = minN
	}
	if maxN > 0 && r.TopN > maxN {
		r.TopN = maxN
	}
}

// Recommendation is one ranked movie joined with its metadata.
type Recommendation struct {
	Rank      int     `json:"rank"`
	Index     int     `json:"index"`
	ID        int64   `json:"id"`
	Title     string  `json:"title"`
	Rating    float64 `json:"rating"`
	Score     float64 `json:"score"`
	PosterURL string  `json:"poster_url,omitempty"`
}

// RecommendationResponse is the response for a recommendation request.
type RecommendationResponse struct {
	Query   string           `json:"query"`
	TopN    int              `json:"top_n"`
	Version string           `json:"version,omitempty"` // corpus snapshot the results came from
	Results []Recommendation `json:"results"`
	Total   int              `json:"total"`
	// Message explains an empty result (MessageNoSelection, MessageNoRecommendations).
	Message string `json:"message,omitempty"`
	// Suggestions lists close titles when the query title is unknown.
	Suggestions []string `json:"suggestions,omitempty"`
	Cached      bool     `json:"cached,omitempty"`
	QueryTime   int64    `json:"query_time_ms"`
}
