package perf

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Default limits.
const (
	DefaultP95Limit         = 800 * time.Millisecond
	DefaultFailureRateLimit = 0.05
)

// Thresholds are the limits a run must stay within.
type Thresholds struct {
	P95         time.Duration
	FailureRate float64
}

// DefaultThresholds returns p95 <= 800ms and failure rate <= 5%.
func DefaultThresholds() Thresholds {
	return Thresholds{P95: DefaultP95Limit, FailureRate: DefaultFailureRateLimit}
}

// Verdict is the result of checking Stats against Thresholds.
type Verdict struct {
	Stats      Stats
	Thresholds Thresholds

	P95Breached         bool
	FailureRateBreached bool
}

// OK reports whether no limit was breached.
func (v Verdict) OK() bool {
	return !v.P95Breached && !v.FailureRateBreached
}

// Evaluate checks s against t. A missing p95 column never breaches.
func Evaluate(s *Stats, t Thresholds) Verdict {
	limitMs := float64(t.P95) / float64(time.Millisecond)
	return Verdict{
		Stats:               *s,
		Thresholds:          t,
		P95Breached:         s.HasP95 && s.P95Ms > limitMs,
		FailureRateBreached: s.FailureRate > t.FailureRate,
	}
}

// Summary is a one-line description suitable for CI logs.
func (v Verdict) Summary() string {
	p95 := "n/a"
	if v.Stats.HasP95 {
		p95 = fmt.Sprintf("%.1f ms", v.Stats.P95Ms)
	}
	return fmt.Sprintf("[perf] %s p95=%s, failure_rate=%.2f%% (limits: p95<=%dms, failure<=%.0f%%)",
		v.Stats.Name, p95, v.Stats.FailureRate*100,
		v.Thresholds.P95.Milliseconds(), v.Thresholds.FailureRate*100)
}

// Render writes the verdict as a table.
func Render(w io.Writer, v Verdict) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Metric", "Value", "Limit", "Status"})

	p95 := "n/a"
	if v.Stats.HasP95 {
		p95 = fmt.Sprintf("%.1f ms", v.Stats.P95Ms)
	}
	t.AppendRow(table.Row{"p95", p95, fmt.Sprintf("%d ms", v.Thresholds.P95.Milliseconds()), status(v.P95Breached)})
	t.AppendRow(table.Row{
		"failure rate",
		fmt.Sprintf("%.2f%%", v.Stats.FailureRate*100),
		fmt.Sprintf("%.0f%%", v.Thresholds.FailureRate*100),
		status(v.FailureRateBreached),
	})
	t.Render()
}

func status(breached bool) string {
	if breached {
		return "BREACHED"
	}
	return "ok"
}
