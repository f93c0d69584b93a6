package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordRecommend(t *testing.T) {
	before := testutil.ToFloat64(RecommendRequests.WithLabelValues(OutcomeNotFound))
	RecordRecommend(OutcomeNotFound, 3*time.Millisecond)
	after := testutil.ToFloat64(RecommendRequests.WithLabelValues(OutcomeNotFound))
	if after != before+1 {
		t.Errorf("not_found counter = %v, want %v", after, before+1)
	}
}

func TestRecordCacheLookup(t *testing.T) {
	hits := testutil.ToFloat64(CacheLookups.WithLabelValues("test", "hit"))
	misses := testutil.ToFloat64(CacheLookups.WithLabelValues("test", "miss"))
	RecordCacheLookup("test", true)
	RecordCacheLookup("test", false)
	RecordCacheLookup("test", false)
	if got := testutil.ToFloat64(CacheLookups.WithLabelValues("test", "hit")); got != hits+1 {
		t.Errorf("hits = %v, want %v", got, hits+1)
	}
	if got := testutil.ToFloat64(CacheLookups.WithLabelValues("test", "miss")); got != misses+2 {
		t.Errorf("misses = %v, want %v", got, misses+2)
	}
}

func TestRecordCorpusReload(t *testing.T) {
	failures := testutil.ToFloat64(CorpusReloads.WithLabelValues("error"))
	RecordCorpusReload(42, nil)
	if got := testutil.ToFloat64(CorpusSize); got != 42 {
		t.Errorf("corpus size = %v, want 42", got)
	}
	RecordCorpusReload(0, errors.New("boom"))
	if got := testutil.ToFloat64(CorpusSize); got != 42 {
		t.Errorf("failed reload must not change corpus size, got %v", got)
	}
	if got := testutil.ToFloat64(CorpusReloads.WithLabelValues("error")); got != failures+1 {
		t.Errorf("error reloads = %v, want %v", got, failures+1)
	}
}

func TestRecordPosterFetch(t *testing.T) {
	before := testutil.ToFloat64(PosterFetches.WithLabelValues(PosterCircuitOpen))
	RecordPosterFetch(PosterCircuitOpen, 0)
	if got := testutil.ToFloat64(PosterFetches.WithLabelValues(PosterCircuitOpen)); got != before+1 {
		t.Errorf("circuit_open = %v, want %v", got, before+1)
	}
}
