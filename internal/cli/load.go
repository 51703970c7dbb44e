package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/hn-conformance/internal/loadgen"
	"github.com/jonesrussell/north-cloud/hn-conformance/internal/logger"
	"github.com/jonesrussell/north-cloud/hn-conformance/internal/perf"
)

func newLoadCommand(opts *rootOptions) *cobra.Command {
	var (
		users    int
		duration time.Duration
		out      string
		gate     bool
	)

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Run a load test and write Locust-style stats CSV",
		Long: `Simulates users fetching /topstories.json and random items from it, writes
the stats CSV and prints a summary. With --gate the run is also checked against
the configured thresholds and exits 1 on breach.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: opts.run(func(cmd *cobra.Command, _ []string, d *deps) error {
			lc := d.cfg.Load
			if cmd.Flags().Changed("users") {
				lc.Users = users
			}
			if cmd.Flags().Changed("duration") {
				lc.Duration = duration
			}
			if cmd.Flags().Changed("out") {
				lc.StatsCSV = out
			}

			driver, err := loadgen.New(loadgen.Config{
				BaseURL:          d.client().BaseURL(),
				Users:            lc.Users,
				Duration:         lc.Duration,
				WaitMin:          lc.WaitMin,
				WaitMax:          lc.WaitMax,
				TopStoriesWeight: lc.TopStoriesWeight,
				ItemWeight:       lc.ItemWeight,
				SeedWindow:       lc.SeedWindow,
				Timeout:          d.cfg.API.Timeout,
			},
				loadgen.WithRecorder(d.metrics),
				loadgen.WithLogger(d.log),
			)
			if err != nil {
				return usageError(err)
			}

			stats, err := driver.Run(cmd.Context())
			if err != nil {
				d.log.Warn("Load run interrupted, writing partial stats", logger.Error(err))
			}
			if err = stats.WriteCSVFile(lc.StatsCSV); err != nil {
				return err
			}
			stats.Render(cmd.OutOrStdout())
			d.log.Info("Stats written", logger.String("path", lc.StatsCSV))

			if !gate {
				return nil
			}
			return gateStats(cmd, d, lc.StatsCSV)
		}),
	}

	cmd.Flags().IntVar(&users, "users", 0, "simulated users (default from config)")
	cmd.Flags().DurationVar(&duration, "duration", 0, "run length (default from config)")
	cmd.Flags().StringVar(&out, "out", "", "stats CSV path (default from config)")
	cmd.Flags().BoolVar(&gate, "gate", false, "check the run against the configured thresholds")
	return cmd
}

func newThresholdsCommand(opts *rootOptions) *cobra.Command {
	var (
		p95  time.Duration
		rate float64
	)

	cmd := &cobra.Command{
		Use:   "thresholds <stats.csv>",
		Short: "Check a stats CSV against p95 latency and failure rate limits",
		Long: `Reads the aggregate row of a Locust-style stats CSV and compares its p95
latency and failure rate against the limits. Exits 1 on breach and 2 when the
file cannot be read or has no aggregate row.`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: opts.run(func(cmd *cobra.Command, args []string, d *deps) error {
			if cmd.Flags().Changed("p95") {
				d.cfg.Thresholds.P95 = p95
			}
			if cmd.Flags().Changed("failure-rate") {
				d.cfg.Thresholds.FailureRate = rate
			}
			return gateStats(cmd, d, args[0])
		}),
	}

	cmd.Flags().DurationVar(&p95, "p95", 0, "p95 latency limit (default from config)")
	cmd.Flags().Float64Var(&rate, "failure-rate", 0, "failure rate limit as a fraction (default from config)")
	return cmd
}

func gateStats(cmd *cobra.Command, d *deps, path string) error {
	stats, err := perf.ParseStatsFile(path)
	if err != nil {
		return usageError(fmt.Errorf("thresholds: %w", err))
	}

	verdict := perf.Evaluate(stats, perf.Thresholds{
		P95:         d.cfg.Thresholds.P95,
		FailureRate: d.cfg.Thresholds.FailureRate,
	})
	perf.Render(cmd.OutOrStdout(), verdict)
	fmt.Fprintln(cmd.OutOrStdout(), verdict.Summary())

	if !verdict.OK() {
		d.log.Error("Performance thresholds breached",
			logger.Bool("p95_breached", verdict.P95Breached),
			logger.Bool("failure_rate_breached", verdict.FailureRateBreached),
		)
		return failed()
	}
	return nil
}
