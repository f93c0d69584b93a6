package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/ruiji/internal/config"
	"github.com/hyperjump/ruiji/internal/corpus"
	"github.com/hyperjump/ruiji/internal/models"
	"github.com/hyperjump/ruiji/internal/recommend"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Corpus.MetadataPath = ""
	cfg.Corpus.VectorsPath = ""
	cfg.Recommend.MinTopN = 1
	return cfg
}

func newTestServer(t *testing.T, loaded bool) (*Server, *corpus.Holder) {
	t.Helper()
	movies := []models.Movie{
		{ID: 101, Title: "A", Rating: 7},
		{ID: 102, Title: "B", Rating: 6},
		{ID: 103, Title: "C", Rating: 5},
	}
	vectors := [][]float32{{1, 0}, {1, 0}, {0, 1}}
	loader := corpus.LoaderFunc(func(ctx context.Context) (*corpus.Snapshot, error) {
		return corpus.NewSnapshot(movies, nil, vectors)
	})
	holder := corpus.NewHolder(loader)
	if loaded {
		if _, err := holder.Reload(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	cfg := testConfig()
	svc := recommend.NewService(holder, cfg.Recommend)
	t.Cleanup(func() { _ = svc.Close() })
	return NewServer(svc, cfg, zap.NewNop()), holder
}

func do(t *testing.T, h http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != nil {
		r = httptest.NewRequest(method, target, bytes.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t, true)
	w := do(t, srv.Router(), http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestHandleRecommend(t *testing.T) {
	srv, _ := newTestServer(t, true)
	body, _ := json.Marshal(models.RecommendationRequest{Title: "A", TopN: 2})
	w := do(t, srv.Router(), http.MethodPost, "/api/v1/recommendations", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var resp models.RecommendationResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("got %d results", len(resp.Results))
	}
	if resp.Results[0].Title != "B" || resp.Results[0].ID != 102 || resp.Results[1].Title != "C" {
		t.Errorf("results = %+v", resp.Results)
	}
	if resp.Results[0].Score < 0.999 {
		t.Errorf("identical vectors should score ~1, got %v", resp.Results[0].Score)
	}
}

func TestHandleRecommend_UnknownAndBlank(t *testing.T) {
	srv, _ := newTestServer(t, true)
	h := srv.Router()
	tests := []struct {
		title   string
		message string
	}{
		{"Nope", models.MessageNoRecommendations},
		{"", models.MessageNoSelection},
	}
	for _, tt := range tests {
		body, _ := json.Marshal(models.RecommendationRequest{Title: tt.title})
		w := do(t, h, http.MethodPost, "/api/v1/recommendations", body)
		if w.Code != http.StatusOK {
			t.Errorf("%q: status %d", tt.title, w.Code)
			continue
		}
		var resp models.RecommendationResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		if len(resp.Results) != 0 || resp.Message != tt.message {
			t.Errorf("%q: results %d, message %q", tt.title, len(resp.Results), resp.Message)
		}
	}
}

func TestHandleRecommend_BadBody(t *testing.T) {
	srv, _ := newTestServer(t, true)
	w := do(t, srv.Router(), http.MethodPost, "/api/v1/recommendations", []byte("{not json"))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestHandleRecommend_NotLoaded(t *testing.T) {
	srv, _ := newTestServer(t, false)
	body, _ := json.Marshal(models.RecommendationRequest{Title: "A"})
	w := do(t, srv.Router(), http.MethodPost, "/api/v1/recommendations", body)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", w.Code)
	}
	w = do(t, srv.Router(), http.MethodGet, "/api/v1/status", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status endpoint: got %d, want 503", w.Code)
	}
}

func TestHandleTitles(t *testing.T) {
	srv, _ := newTestServer(t, true)
	h := srv.Router()

	w := do(t, h, http.MethodGet, "/api/v1/titles", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var list titlesResponse
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if list.Total != 3 || list.Titles[0] != "A" {
		t.Errorf("titles = %+v", list)
	}

	w = do(t, h, http.MethodGet, "/api/v1/titles?q=b&limit=5", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search status: got %d", w.Code)
	}
	var found titleSearchResponse
	if err := json.NewDecoder(w.Body).Decode(&found); err != nil {
		t.Fatal(err)
	}
	if found.Total != 1 || found.Matches[0].Title != "B" {
		t.Errorf("search = %+v", found)
	}

	w = do(t, h, http.MethodGet, "/api/v1/titles?q=b&limit=zero", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad limit: got %d, want 400", w.Code)
	}
}

func TestHandlePoster(t *testing.T) {
	srv, _ := newTestServer(t, true)
	h := srv.Router()

	w := do(t, h, http.MethodGet, "/api/v1/posters/101", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var p models.Poster
	if err := json.NewDecoder(w.Body).Decode(&p); err != nil {
		t.Fatal(err)
	}
	if p.MovieID != 101 || p.Available {
		t.Errorf("poster without upstream = %+v", p)
	}

	w = do(t, h, http.MethodGet, "/api/v1/posters/abc", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad id: got %d, want 400", w.Code)
	}
}

func TestHandleStatusAndReload(t *testing.T) {
	srv, holder := newTestServer(t, true)
	h := srv.Router()
	before, _ := holder.Current()

	w := do(t, h, http.MethodGet, "/api/v1/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var st struct {
		Corpus recommend.Status `json:"corpus"`
	}
	if err := json.NewDecoder(w.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if st.Corpus.Items != 3 || st.Corpus.Version != before.Version {
		t.Errorf("status corpus = %+v", st.Corpus)
	}

	w = do(t, h, http.MethodPost, "/api/v1/reload", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("reload: got %d", w.Code)
	}
	after, _ := holder.Current()
	if after.Version == before.Version {
		t.Error("reload should publish a new snapshot")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, true)
	h := srv.Router()
	_ = do(t, h, http.MethodGet, "/health", nil)
	w := do(t, h, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "ruiji_http_requests_total") {
		t.Error("metrics output should include ruiji_http_requests_total")
	}
}

func TestServer_StopWithoutStart(t *testing.T) {
	srv, _ := newTestServer(t, true)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		t.Errorf("Stop: %v", err)
	}
}
