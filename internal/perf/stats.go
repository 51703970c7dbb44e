// Package perf evaluates load-test results against latency and error-rate
// limits. It reads Locust-compatible stats CSV files.
package perf

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
)

// ErrAggregateRowNotFound is returned when no aggregate row is present.
var ErrAggregateRowNotFound = errors.New("aggregated row not found in CSV")

// aggregateNames are the row names Locust versions use for totals.
var aggregateNames = []string{"Aggregated", "Total", "Aggregated (aggregated)"}

// Stats is the aggregate row of a stats file.
type Stats struct {
	Name string
	// P95Ms is the 95th percentile response time in milliseconds. HasP95 is
	// false when the file has no 95% column.
	P95Ms  float64
	HasP95 bool
	// FailureRate is failures/requests, or 0 when the counts do not parse.
	FailureRate float64
}

// ParseStatsFile reads the stats CSV at path.
func ParseStatsFile(path string) (*Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open stats file: %w", err)
	}
	defer f.Close()

	stats, err := ParseStats(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return stats, nil
}

// ParseStats reads a stats CSV and returns its first aggregate row.
func ParseStats(r io.Reader) (*Stats, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrAggregateRowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	for {
		record, readErr := reader.Read()
		if errors.Is(readErr, io.EOF) {
			return nil, ErrAggregateRowNotFound
		}
		if readErr != nil {
			return nil, fmt.Errorf("read row: %w", readErr)
		}

		row := toRow(header, record)
		name := row["Name"]
		if slices.Contains(aggregateNames, name) {
			return statsFromRow(name, header, row)
		}
	}
}

type row map[string]string

func toRow(header, record []string) row {
	r := make(row, len(header))
	for i, h := range header {
		if i < len(record) {
			r[h] = record[i]
		}
	}
	return r
}

// first returns the value of the first present key.
func (r row) first(keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := r[k]; ok {
			return v, true
		}
	}
	return "", false
}

func statsFromRow(name string, header []string, r row) (*Stats, error) {
	stats := &Stats{Name: name}

	for _, h := range header {
		if !strings.HasPrefix(strings.TrimSpace(h), "95%") {
			continue
		}
		p95, err := strconv.ParseFloat(strings.TrimSpace(r[h]), 64)
		if err != nil {
			return nil, fmt.Errorf("parse %q column: %w", h, err)
		}
		stats.P95Ms = p95
		stats.HasP95 = true
		break
	}

	stats.FailureRate = failureRate(r)
	return stats, nil
}

// failureRate never fails: missing or empty failure counts are 0, missing
// or empty request counts are 1, and anything unparsable (including zero
// requests) yields a rate of 0.
func failureRate(r row) float64 {
	failuresRaw, _ := r.first("Failure Count", "Failures")
	requestsRaw, _ := r.first("Request Count", "Requests")

	failures, ok := parseCount(failuresRaw, 0)
	if !ok {
		return 0
	}
	requests, ok := parseCount(requestsRaw, 1)
	if !ok || requests == 0 {
		return 0
	}
	return failures / requests
}

func parseCount(raw string, empty float64) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return empty, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
