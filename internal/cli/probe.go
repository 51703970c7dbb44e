package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/hn-conformance/internal/hnapi"
	"github.com/jonesrussell/north-cloud/hn-conformance/internal/probe"
)

func newProbeCommand(opts *rootOptions) *cobra.Command {
	var (
		workers int
		rps     float64
		list    string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "probe [id...]",
		Short: "Fetch many items in parallel and tally found, absent and failed",
		Long: `Fetches the given item ids (or the first --limit ids of --list) through a
bounded worker pool. A failed fetch does not stop the others. Exits 1 when any
fetch failed.`,
		RunE: opts.run(func(cmd *cobra.Command, args []string, d *deps) error {
			client := d.client()

			ids := make([]int64, 0, len(args))
			for _, a := range args {
				id, err := parseItemID(a)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			if list != "" {
				if limit <= 0 {
					return usageError(errors.New("--limit must be positive"))
				}
				fromList, err := listHead(cmd, client, list, limit)
				if err != nil {
					return err
				}
				ids = append(ids, fromList...)
			}
			if len(ids) == 0 {
				return usageError(errors.New("no ids given (pass ids or --list)"))
			}

			if !cmd.Flags().Changed("workers") {
				workers = d.cfg.Probe.Workers
			}
			if !cmd.Flags().Changed("rate") {
				rps = d.cfg.Probe.RatePerSecond
			}
			p := probe.New(client,
				probe.WithWorkers(workers),
				probe.WithRate(rps, 1),
			)

			results, err := p.Probe(cmd.Context(), ids)
			if err != nil {
				return err
			}
			summary := renderProbe(cmd, results)
			if summary.Failed > 0 {
				return failed()
			}
			return nil
		}),
	}

	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent fetches (default from config)")
	cmd.Flags().Float64Var(&rps, "rate", 0, "requests per second, 0 for unlimited (default from config)")
	cmd.Flags().StringVar(&list, "list", "", "probe ids from this story list (top, new, best, ask, show, job)")
	cmd.Flags().IntVar(&limit, "limit", 30, "how many ids to take from --list")
	return cmd
}

func listHead(cmd *cobra.Command, client *hnapi.Client, name string, limit int) ([]int64, error) {
	endpoint, err := hnapi.ParseListEndpoint(name)
	if err != nil {
		return nil, usageError(err)
	}
	list, err := client.List(cmd.Context(), endpoint)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, min(limit, len(list)))
	for _, v := range list {
		if len(ids) == limit {
			break
		}
		if id, ok := hnapi.IntID(v); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func renderProbe(cmd *cobra.Command, results []probe.Result) probe.Summary {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Outcome", "Duration", "Detail"})

	for _, r := range results {
		detail := ""
		switch {
		case r.Outcome.IsFailed():
			detail = r.Outcome.Err().Error()
		case r.Outcome.IsFound():
			if typ, ok := r.Outcome.Payload()["type"].(string); ok {
				detail = typ
			}
		}
		t.AppendRow(table.Row{r.ID, r.Outcome.Kind(), r.Duration.Round(time.Millisecond), detail})
	}

	s := probe.Summarize(results)
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d found, %d absent, %d failed", s.Found, s.Absent, s.Failed)})
	t.Render()
	return s
}
