// Package integration exercises the full stack against real files, SQLite and a fake poster upstream.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/ruiji/internal/config"
	"github.com/hyperjump/ruiji/internal/corpus"
	"github.com/hyperjump/ruiji/internal/models"
	"github.com/hyperjump/ruiji/internal/poster"
	"github.com/hyperjump/ruiji/internal/recommend"
	"github.com/hyperjump/ruiji/internal/server"
	"github.com/hyperjump/ruiji/internal/storage"
	"github.com/hyperjump/ruiji/internal/vector"
	"github.com/hyperjump/ruiji/internal/watcher"
)

const metadataCSV = `id,title,vote_average
1,Alien,8.0
2,Aliens,7.9
3,Notting Hill,7.0
4,Love Actually,6.8
`

var vectorRows = [][]float32{
	{1, 0.1, 0},
	{0.95, 0.15, 0},
	{0, 0.2, 1},
	{0.05, 0.1, 0.9},
}

func writeCorpus(t *testing.T, dir string, meta string, rows [][]float32) (string, string) {
	t.Helper()
	metaPath := filepath.Join(dir, "movies.csv")
	vecPath := filepath.Join(dir, "vectors.bin.zst")
	if err := os.WriteFile(metaPath, []byte(meta), 0600); err != nil {
		t.Fatal(err)
	}
	ids := make([]string, len(rows))
	for i := range rows {
		ids[i] = fmt.Sprint(i + 1)
	}
	if err := vector.SaveFile(vecPath, ids, rows); err != nil {
		t.Fatal(err)
	}
	return metaPath, vecPath
}

type stack struct {
	url      string
	svc      *recommend.Service
	upstream *atomic.Int32
}

func newStack(t *testing.T, dir string) *stack {
	t.Helper()
	metaPath, vecPath := writeCorpus(t, dir, metadataCSV, vectorRows)

	var upstreamCalls atomic.Int32
	tmdb := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamCalls.Add(1)
		id := strings.TrimPrefix(r.URL.Path, "/movie/")
		_, _ = fmt.Fprintf(w, `{"poster_path":"/p%s.jpg"}`, id)
	}))
	t.Cleanup(tmdb.Close)

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Corpus.MetadataPath = metaPath
	cfg.Corpus.VectorsPath = vecPath
	cfg.Storage.DatabasePath = filepath.Join(dir, "ruiji.db")
	cfg.Poster.BaseURL = tmdb.URL
	cfg.Poster.ImageBaseURL = "https://img.example/w500"
	cfg.Poster.APIKey = "test-key"
	cfg.Poster.RequestsPerSecond = 0

	loader := corpus.NewFileLoader(metaPath, vecPath)
	holder := corpus.NewHolder(loader)
	if _, err := holder.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	posters := poster.NewService(poster.NewClient(cfg.Poster), poster.WithStore(store), poster.WithCache(100, time.Hour))
	svc := recommend.NewService(holder, cfg.Recommend, recommend.WithPosters(posters, 2))
	t.Cleanup(func() { _ = svc.Close() })

	ts := httptest.NewServer(server.NewServer(svc, cfg, zap.NewNop()).Router())
	t.Cleanup(ts.Close)
	return &stack{url: ts.URL, svc: svc, upstream: &upstreamCalls}
}

func recommendTitles(t *testing.T, baseURL, title string, posters bool) models.RecommendationResponse {
	t.Helper()
	body, _ := json.Marshal(models.RecommendationRequest{Title: title, TopN: 3, Posters: posters})
	resp, err := http.Post(baseURL+"/api/v1/recommendations", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var out models.RecommendationResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	return out
}

func TestIntegration_RecommendWithPosters(t *testing.T) {
	s := newStack(t, t.TempDir())
	resp := recommendTitles(t, s.url, "Alien", true)
	if len(resp.Results) != 3 {
		t.Fatalf("got %d results", len(resp.Results))
	}
	if resp.Results[0].Title != "Aliens" {
		t.Errorf("top result = %q, want Aliens", resp.Results[0].Title)
	}
	if resp.Results[0].PosterURL != "https://img.example/w500/p2.jpg" {
		t.Errorf("poster = %q", resp.Results[0].PosterURL)
	}
	if resp.Results[2].PosterURL != "" {
		t.Error("only the first two results should carry posters")
	}
	if got := s.upstream.Load(); got != 2 {
		t.Errorf("upstream calls = %d, want 2", got)
	}

	// a second request is answered from the poster cache
	_ = recommendTitles(t, s.url, "Alien", true)
	if got := s.upstream.Load(); got != 2 {
		t.Errorf("upstream calls after repeat = %d, want 2", got)
	}
}

func TestIntegration_PostersPersistAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	first := newStack(t, dir)
	_ = recommendTitles(t, first.url, "Notting Hill", true)
	if first.upstream.Load() == 0 {
		t.Fatal("expected upstream lookups on the first run")
	}

	second := newStack(t, dir)
	resp := recommendTitles(t, second.url, "Notting Hill", true)
	if resp.Results[0].PosterURL == "" {
		t.Error("poster should come from the SQLite store")
	}
	if got := second.upstream.Load(); got != 0 {
		t.Errorf("upstream calls after restart = %d, want 0", got)
	}
}

func TestIntegration_WatcherReloadsCorpus(t *testing.T) {
	dir := t.TempDir()
	s := newStack(t, dir)
	before, err := s.svc.Status()
	if err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan struct{}, 1)
	w := watcher.NewWatcher(
		[]string{filepath.Join(dir, "movies.csv"), filepath.Join(dir, "vectors.bin.zst")},
		func() {
			if _, err := s.svc.Reload(context.Background()); err == nil {
				select {
				case reloaded <- struct{}{}:
				default:
				}
			}
		},
		watcher.WithDebounce(100*time.Millisecond),
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	meta := metadataCSV + "5,Alien 3,6.5\n"
	rows := append(append([][]float32{}, vectorRows...), []float32{0.99, 0.1, 0})
	writeCorpus(t, dir, meta, rows)

	select {
	case <-reloaded:
	case <-time.After(3 * time.Second):
		t.Fatal("corpus was not reloaded after the files changed")
	}
	after, err := s.svc.Status()
	if err != nil {
		t.Fatal(err)
	}
	if after.Items != 5 || after.Version == before.Version {
		t.Errorf("after reload: items %d version %s (before %s)", after.Items, after.Version, before.Version)
	}
	resp := recommendTitles(t, s.url, "Alien", false)
	if resp.Results[0].Title != "Alien 3" {
		t.Errorf("top result after reload = %q, want Alien 3", resp.Results[0].Title)
	}
}
