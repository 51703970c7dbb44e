package loadgen

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

// AggregateName is the name of the totals row.
const AggregateName = "Aggregated"

// percentiles are the response-time columns written to the stats CSV.
var percentiles = []struct {
	label string
	q     float64
}{
	{"50%", 0.50}, {"66%", 0.66}, {"75%", 0.75}, {"80%", 0.80}, {"90%", 0.90},
	{"95%", 0.95}, {"98%", 0.98}, {"99%", 0.99}, {"99.9%", 0.999}, {"99.99%", 0.9999},
	{"100%", 1.0},
}

// Entry accumulates requests sharing a name.
type Entry struct {
	Method   string
	Name     string
	Requests int
	Failures int
	Bytes    int64
	times    []time.Duration
}

func (e *Entry) add(d time.Duration, size int64, failed bool) {
	e.Requests++
	if failed {
		e.Failures++
	}
	e.Bytes += size
	e.times = append(e.times, d)
}

// Percentile returns the nearest-rank q-quantile of response times.
func (e *Entry) Percentile(q float64) time.Duration {
	if len(e.times) == 0 {
		return 0
	}
	sorted := slices.Clone(e.times)
	slices.Sort(sorted)
	rank := int(math.Ceil(q*float64(len(sorted)))) - 1
	rank = max(0, min(rank, len(sorted)-1))
	return sorted[rank]
}

// Average returns the mean response time.
func (e *Entry) Average() time.Duration {
	if len(e.times) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range e.times {
		total += d
	}
	return total / time.Duration(len(e.times))
}

// Min returns the fastest response time.
func (e *Entry) Min() time.Duration {
	if len(e.times) == 0 {
		return 0
	}
	return slices.Min(e.times)
}

// Max returns the slowest response time.
func (e *Entry) Max() time.Duration {
	if len(e.times) == 0 {
		return 0
	}
	return slices.Max(e.times)
}

// Stats collects per-name and aggregate request statistics. Safe for
// concurrent use.
type Stats struct {
	mu        sync.Mutex
	entries   map[string]*Entry
	order     []string
	aggregate *Entry
	started   time.Time
	elapsed   time.Duration
}

// NewStats creates empty statistics.
func NewStats() *Stats {
	return &Stats{
		entries:   make(map[string]*Entry),
		aggregate: &Entry{Name: AggregateName},
		started:   time.Now(),
	}
}

// Record adds one request.
func (s *Stats) Record(method, name string, d time.Duration, size int64, failed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[name]
	if !ok {
		e = &Entry{Method: method, Name: name}
		s.entries[name] = e
		s.order = append(s.order, name)
	}
	e.add(d, size, failed)
	s.aggregate.add(d, size, failed)
}

func (s *Stats) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elapsed = time.Since(s.started)
}

// Entry returns a copy of the named entry.
func (s *Stats) Entry(name string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[name]
	if !ok {
		return Entry{}, false
	}
	return cloneEntry(e), true
}

// Aggregate returns a copy of the totals row.
func (s *Stats) Aggregate() Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneEntry(s.aggregate)
}

// Entries returns copies of every named entry sorted by name, followed by
// the aggregate.
func (s *Stats) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := slices.Clone(s.order)
	slices.Sort(names)
	out := make([]Entry, 0, len(names)+1)
	for _, n := range names {
		out = append(out, cloneEntry(s.entries[n]))
	}
	return append(out, cloneEntry(s.aggregate))
}

func cloneEntry(e *Entry) Entry {
	c := *e
	c.times = slices.Clone(e.times)
	return c
}

func (s *Stats) header() []string {
	h := []string{
		"Type", "Name", "Request Count", "Failure Count",
		"Median Response Time", "Average Response Time", "Min Response Time", "Max Response Time",
		"Average Content Size", "Requests/s", "Failures/s",
	}
	for _, p := range percentiles {
		h = append(h, p.label)
	}
	return h
}

// WriteCSV writes a Locust-compatible stats CSV.
func (s *Stats) WriteCSV(w io.Writer) error {
	entries := s.Entries()

	s.mu.Lock()
	seconds := s.elapsed.Seconds()
	if seconds == 0 {
		seconds = time.Since(s.started).Seconds()
	}
	s.mu.Unlock()

	cw := csv.NewWriter(w)
	if err := cw.Write(s.header()); err != nil {
		return fmt.Errorf("write stats header: %w", err)
	}
	for _, e := range entries {
		if err := cw.Write(csvRecord(e, seconds)); err != nil {
			return fmt.Errorf("write stats row %s: %w", e.Name, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the stats CSV to path.
func (s *Stats) WriteCSVFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create stats file: %w", err)
	}
	if err := s.WriteCSV(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func csvRecord(e Entry, seconds float64) []string {
	avgSize := 0.0
	if e.Requests > 0 {
		avgSize = float64(e.Bytes) / float64(e.Requests)
	}
	rps, fps := 0.0, 0.0
	if seconds > 0 {
		rps = float64(e.Requests) / seconds
		fps = float64(e.Failures) / seconds
	}

	rec := []string{
		e.Method,
		e.Name,
		strconv.Itoa(e.Requests),
		strconv.Itoa(e.Failures),
		msInt(e.Percentile(0.5)),
		msFloat(e.Average()),
		msFloat(e.Min()),
		msFloat(e.Max()),
		strconv.FormatFloat(avgSize, 'f', 2, 64),
		strconv.FormatFloat(rps, 'f', 6, 64),
		strconv.FormatFloat(fps, 'f', 6, 64),
	}
	for _, p := range percentiles {
		rec = append(rec, msInt(e.Percentile(p.q)))
	}
	return rec
}

func msInt(d time.Duration) string {
	return strconv.FormatInt(int64(math.Round(float64(d)/float64(time.Millisecond))), 10)
}

func msFloat(d time.Duration) string {
	return strconv.FormatFloat(float64(d)/float64(time.Millisecond), 'f', 2, 64)
}

// Render writes a summary table.
func (s *Stats) Render(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Name", "Requests", "Failures", "Median (ms)", "p95 (ms)", "Max (ms)"})
	for _, e := range s.Entries() {
		if e.Name == AggregateName {
			t.AppendFooter(table.Row{e.Name, e.Requests, e.Failures, msInt(e.Percentile(0.5)), msInt(e.Percentile(0.95)), msInt(e.Max())})
			continue
		}
		t.AppendRow(table.Row{e.Name, e.Requests, e.Failures, msInt(e.Percentile(0.5)), msInt(e.Percentile(0.95)), msInt(e.Max())})
	}
	t.Render()
}
