package conformance

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Report collects the results of one run.
type Report struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Results  []Result
}

// Count returns how many results have status s.
func (r *Report) Count(s Status) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == s {
			n++
		}
	}
	return n
}

// OK reports whether no check failed.
func (r *Report) OK() bool { return r.Count(StatusFail) == 0 }

// Failures returns the failed results.
func (r *Report) Failures() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Status == StatusFail {
			out = append(out, res)
		}
	}
	return out
}

// Err joins every failure into one error, or returns nil.
func (r *Report) Err() error {
	var errs []error
	for _, res := range r.Failures() {
		errs = append(errs, fmt.Errorf("%s: %w", res.Name, res.Err))
	}
	return errors.Join(errs...)
}

// Summary is a one-line tally.
func (r *Report) Summary() string {
	return fmt.Sprintf("%d passed, %d failed, %d skipped in %s",
		r.Count(StatusPass), r.Count(StatusFail), r.Count(StatusSkip),
		r.Finished.Sub(r.Started).Round(time.Millisecond))
}

// Render writes the results as a table.
func (r *Report) Render(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Conformance run " + r.RunID)
	t.AppendHeader(table.Row{"Status", "Check", "Tags", "Duration", "Detail"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 5, WidthMax: 80},
	})

	for _, res := range r.Results {
		detail := ""
		if res.Err != nil {
			detail = res.Err.Error()
		}
		t.AppendRow(table.Row{
			statusText(res.Status),
			res.Name,
			joinTags(res.Tags),
			res.Duration.Round(time.Millisecond),
			detail,
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", r.Summary()})
	t.Render()
}

func statusText(s Status) string {
	switch s {
	case StatusPass:
		return text.FgGreen.Sprint("PASS")
	case StatusFail:
		return text.FgRed.Sprint("FAIL")
	default:
		return text.FgYellow.Sprint("SKIP")
	}
}

func joinTags(tags []Tag) string {
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = string(t)
	}
	return strings.Join(parts, ",")
}
