// Package cli provides output helpers for the ruiji command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/ruiji/internal/models"
	"github.com/hyperjump/ruiji/pkg/utils"
)

// maxListTitle caps titles in the short list under the featured results.
const maxListTitle = 60

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact is one tab-separated line per result, for shell pipelines.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts text, compact or json (case-insensitive); empty means text.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "", OutputText:
		return OutputText, nil
	case OutputCompact, OutputJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, compact or json)", s)
	}
}

// WriteRecommendations writes a recommendation response to w. In text format the first
// featured results are shown in full and the rest as a short list.
func WriteRecommendations(w io.Writer, resp *models.RecommendationResponse, format OutputFormat, featured int) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, resp)
	case OutputCompact:
		for _, r := range resp.Results {
			fmt.Fprintf(w, "%d\t%d\t%s\t%.4f\t%.1f\n", r.Rank, r.ID, r.Title, r.Score, r.Rating)
		}
		return nil
	default:
		writeRecommendationsText(w, resp, featured)
		return nil
	}
}

func writeRecommendationsText(w io.Writer, resp *models.RecommendationResponse, featured int) {
	if len(resp.Results) == 0 {
		msg := resp.Message
		if msg == "" {
			msg = models.MessageNoRecommendations
		}
		fmt.Fprintf(w, "%s\n", upperFirst(msg))
		if len(resp.Suggestions) > 0 {
			fmt.Fprintf(w, "Did you mean: %s\n", strings.Join(resp.Suggestions, ", "))
		}
		return
	}

	fmt.Fprintf(w, "\nMovies similar to %q (%d results in %dms)\n\n", resp.Query, len(resp.Results), resp.QueryTime)
	if featured < 0 {
		featured = 0
	}
	n := min(featured, len(resp.Results))
	for _, r := range resp.Results[:n] {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "#%d %s\n", r.Rank, r.Title)
		fmt.Fprintf(w, "Rating: %.1f | Similarity: %.4f\n", r.Rating, r.Score)
		if r.PosterURL != "" {
			fmt.Fprintf(w, "Poster: %s\n", r.PosterURL)
		}
	}
	if n < len(resp.Results) {
		if n > 0 {
			fmt.Fprintln(w, "\nMore recommendations")
		}
		for _, r := range resp.Results[n:] {
			fmt.Fprintf(w, "• %s (Rating: %.1f)\n", utils.Truncate(r.Title, maxListTitle), r.Rating)
		}
	}
	fmt.Fprintln(w)
}

// WriteTitles writes a title list.
func WriteTitles(w io.Writer, titles []string, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]interface{}{"titles": titles, "total": len(titles)})
	}
	for _, t := range titles {
		fmt.Fprintln(w, t)
	}
	return nil
}

// WriteTitleMatches writes title search results.
func WriteTitleMatches(w io.Writer, matches []models.TitleMatch, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, map[string]interface{}{"matches": matches, "total": len(matches)})
	case OutputCompact:
		for _, m := range matches {
			fmt.Fprintf(w, "%d\t%s\n", m.Index, m.Title)
		}
		return nil
	default:
		if len(matches) == 0 {
			fmt.Fprintln(w, "No matching titles")
			return nil
		}
		for _, m := range matches {
			fmt.Fprintf(w, "%s  (score %.2f)\n", m.Title, m.Score)
		}
		return nil
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}
