package loadgen_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/hn-conformance/internal/loadgen"
	"github.com/jonesrussell/north-cloud/hn-conformance/internal/perf"
)

type fakeRecorder struct {
	mu    sync.Mutex
	names map[string]int
}

func (f *fakeRecorder) ObserveRequest(name string, _ time.Duration, _ bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.names == nil {
		f.names = map[string]int{}
	}
	f.names[name]++
}

func newUpstream(t *testing.T, topstories string) (*httptest.Server, *sync.Map) {
	t.Helper()
	var paths sync.Map
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths.Store(r.URL.Path, true)
		switch {
		case r.URL.Path == "/topstories.json":
			_, _ = w.Write([]byte(topstories))
		case strings.HasPrefix(r.URL.Path, "/item/"):
			_, _ = w.Write([]byte(`{"id":1,"type":"story","time":1}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &paths
}

func fastConfig(baseURL string) loadgen.Config {
	cfg := loadgen.DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.Users = 3
	cfg.Duration = 300 * time.Millisecond
	cfg.WaitMin = time.Millisecond
	cfg.WaitMax = 5 * time.Millisecond
	return cfg
}

func TestRun_RecordsNamedRequests(t *testing.T) {
	t.Parallel()

	srv, paths := newUpstream(t, `[11, 12, 13]`)
	rec := &fakeRecorder{}
	driver, err := loadgen.New(fastConfig(srv.URL), loadgen.WithRecorder(rec), loadgen.WithSeed(42))
	require.NoError(t, err)

	stats, err := driver.Run(context.Background())
	require.NoError(t, err)

	top, ok := stats.Entry(loadgen.NameTopStories)
	require.True(t, ok)
	seed, ok := stats.Entry(loadgen.NameSeed)
	require.True(t, ok)
	item, ok := stats.Entry(loadgen.NameItem)
	require.True(t, ok)

	agg := stats.Aggregate()
	assert.Equal(t, top.Requests+seed.Requests+item.Requests, agg.Requests)
	assert.Zero(t, agg.Failures)
	assert.Greater(t, top.Requests, item.Requests)

	allowed := map[string]bool{"/item/11.json": true, "/item/12.json": true, "/item/13.json": true}
	paths.Range(func(k, _ any) bool {
		if p := k.(string); strings.HasPrefix(p, "/item/") {
			assert.True(t, allowed[p], "unexpected item path %s", p)
		}
		return true
	})
	rec.mu.Lock()
	assert.Equal(t, agg.Requests, rec.names[loadgen.NameTopStories]+rec.names[loadgen.NameSeed]+rec.names[loadgen.NameItem])
	rec.mu.Unlock()
}

func TestRun_EmptySeedSkipsItemFetch(t *testing.T) {
	t.Parallel()

	srv, _ := newUpstream(t, `[]`)
	cfg := fastConfig(srv.URL)
	cfg.TopStoriesWeight = 0
	cfg.ItemWeight = 1

	driver, err := loadgen.New(cfg)
	require.NoError(t, err)

	stats, err := driver.Run(context.Background())
	require.NoError(t, err)

	_, ok := stats.Entry(loadgen.NameItem)
	assert.False(t, ok)
	seed, ok := stats.Entry(loadgen.NameSeed)
	require.True(t, ok)
	assert.Positive(t, seed.Requests)
}

func TestRun_CountsHTTPFailures(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := fastConfig(srv.URL)
	cfg.Users = 1
	driver, err := loadgen.New(cfg)
	require.NoError(t, err)

	stats, err := driver.Run(context.Background())
	require.NoError(t, err)

	agg := stats.Aggregate()
	assert.Positive(t, agg.Requests)
	assert.Equal(t, agg.Requests, agg.Failures)
}

func TestRun_CanceledParent(t *testing.T) {
	t.Parallel()

	srv, _ := newUpstream(t, `[1]`)
	driver, err := loadgen.New(fastConfig(srv.URL))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = driver.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStats_CSVReadableByThresholdChecker(t *testing.T) {
	t.Parallel()

	stats := loadgen.NewStats()
	for i := 1; i <= 20; i++ {
		stats.Record(http.MethodGet, loadgen.NameTopStories, time.Duration(i)*10*time.Millisecond, 100, i == 20)
	}

	path := filepath.Join(t.TempDir(), "perf_stats.csv")
	require.NoError(t, stats.WriteCSVFile(path))

	parsed, err := perf.ParseStatsFile(path)
	require.NoError(t, err)
	assert.Equal(t, loadgen.AggregateName, parsed.Name)
	assert.True(t, parsed.HasP95)
	assert.InDelta(t, 190.0, parsed.P95Ms, 1e-9)
	assert.InDelta(t, 0.05, parsed.FailureRate, 1e-9)

	var buf bytes.Buffer
	stats.Render(&buf)
	assert.Contains(t, buf.String(), loadgen.NameTopStories)
}

func TestNew_RejectsBadConfig(t *testing.T) {
	t.Parallel()

	base := loadgen.DefaultConfig()

	bad := base
	bad.Users = 0
	_, err := loadgen.New(bad)
	assert.Error(t, err)

	bad = base
	bad.WaitMax = base.WaitMin - time.Millisecond
	_, err = loadgen.New(bad)
	assert.Error(t, err)

	bad = base
	bad.TopStoriesWeight, bad.ItemWeight = 0, 0
	_, err = loadgen.New(bad)
	assert.Error(t, err)
}
