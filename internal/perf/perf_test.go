package perf_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/hn-conformance/internal/perf"
)

const locustHeader = "Type,Name,Request Count,Failure Count,Median Response Time,Average Response Time,50%,66%,75%,80%,90%,95%,98%,99%,99.9%,99.99%,100%\n"

func TestParseStats_LocustFile(t *testing.T) {
	t.Parallel()

	csv := locustHeader +
		"GET,/topstories.json,300,3,120,130,120,140,150,160,200,250,300,350,400,400,410\n" +
		",Aggregated,400,4,125,135,125,145,155,165,210,260,310,360,410,410,420\n"

	stats, err := perf.ParseStats(strings.NewReader(csv))

	require.NoError(t, err)
	assert.Equal(t, "Aggregated", stats.Name)
	assert.True(t, stats.HasP95)
	assert.InDelta(t, 260.0, stats.P95Ms, 1e-9)
	assert.InDelta(t, 0.01, stats.FailureRate, 1e-9)
}

func TestParseStats_AlternateNames(t *testing.T) {
	t.Parallel()

	csv := "Name,Requests,Failures,95%ile\n" +
		"Total,200,20,900\n"

	stats, err := perf.ParseStats(strings.NewReader(csv))

	require.NoError(t, err)
	assert.Equal(t, "Total", stats.Name)
	assert.InDelta(t, 900.0, stats.P95Ms, 1e-9)
	assert.InDelta(t, 0.1, stats.FailureRate, 1e-9)
}

func TestParseStats_FailureRateFallbacks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		row  string
		want float64
	}{
		{name: "empty requests count as one", row: "Aggregated,,1,100", want: 1},
		{name: "empty failures count as zero", row: "Aggregated,10,,100", want: 0},
		{name: "zero requests", row: "Aggregated,0,5,100", want: 0},
		{name: "garbage failures", row: "Aggregated,10,many,100", want: 0},
		{name: "garbage requests", row: "Aggregated,lots,1,100", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			csv := "Name,Request Count,Failure Count,95%\n" + tt.row + "\n"
			stats, err := perf.ParseStats(strings.NewReader(csv))

			require.NoError(t, err)
			assert.InDelta(t, tt.want, stats.FailureRate, 1e-9)
		})
	}
}

func TestParseStats_MissingCountColumns(t *testing.T) {
	t.Parallel()

	stats, err := perf.ParseStats(strings.NewReader("Name,95%\nAggregated,10\n"))

	require.NoError(t, err)
	assert.Zero(t, stats.FailureRate)
}

func TestParseStats_Errors(t *testing.T) {
	t.Parallel()

	_, err := perf.ParseStats(strings.NewReader(locustHeader + "GET,/item/{id}.json,1,0,1,1,1,1,1,1,1,1,1,1,1,1,1\n"))
	assert.ErrorIs(t, err, perf.ErrAggregateRowNotFound)

	_, err = perf.ParseStats(strings.NewReader(""))
	assert.ErrorIs(t, err, perf.ErrAggregateRowNotFound)

	_, err = perf.ParseStats(strings.NewReader("Name,95%\nAggregated,fast\n"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, perf.ErrAggregateRowNotFound)
}

func TestParseStats_NoP95Column(t *testing.T) {
	t.Parallel()

	stats, err := perf.ParseStats(strings.NewReader("Name,Request Count,Failure Count\nAggregated,10,0\n"))

	require.NoError(t, err)
	assert.False(t, stats.HasP95)
	assert.True(t, perf.Evaluate(stats, perf.DefaultThresholds()).OK())
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		stats     perf.Stats
		p95Breach bool
		rateBreak bool
	}{
		{name: "within limits", stats: perf.Stats{Name: "Aggregated", P95Ms: 800, HasP95: true, FailureRate: 0.05}},
		{name: "slow", stats: perf.Stats{Name: "Aggregated", P95Ms: 800.1, HasP95: true}, p95Breach: true},
		{name: "failing", stats: perf.Stats{Name: "Aggregated", P95Ms: 10, HasP95: true, FailureRate: 0.051}, rateBreak: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			v := perf.Evaluate(&tt.stats, perf.DefaultThresholds())

			assert.Equal(t, tt.p95Breach, v.P95Breached)
			assert.Equal(t, tt.rateBreak, v.FailureRateBreached)
			assert.Equal(t, !tt.p95Breach && !tt.rateBreak, v.OK())
		})
	}
}

func TestVerdict_SummaryAndRender(t *testing.T) {
	t.Parallel()

	v := perf.Evaluate(&perf.Stats{Name: "Aggregated", P95Ms: 912.34, HasP95: true, FailureRate: 0.02},
		perf.Thresholds{P95: 800 * time.Millisecond, FailureRate: 0.05})

	assert.Equal(t, "[perf] Aggregated p95=912.3 ms, failure_rate=2.00% (limits: p95<=800ms, failure<=5%)", v.Summary())

	var buf bytes.Buffer
	perf.Render(&buf, v)
	assert.Contains(t, buf.String(), "BREACHED")
	assert.Contains(t, buf.String(), "912.3 ms")
}

func TestParseStatsFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "perf_stats.csv")
	require.NoError(t, os.WriteFile(path, []byte("Name,95%\nAggregated (aggregated),42\n"), 0o600))

	stats, err := perf.ParseStatsFile(path)
	require.NoError(t, err)
	assert.InDelta(t, 42.0, stats.P95Ms, 1e-9)

	_, err = perf.ParseStatsFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}
