package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/hn-conformance/internal/conformance"
)

func newCheckCommand(opts *rootOptions) *cobra.Command {
	var (
		tags []string
		seed uint64
		list bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run the conformance suite",
		Long: `Runs every conformance check (or those carrying one of --tag) and prints a
report. Exits 1 when any check fails; skipped checks do not fail the run.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: opts.run(func(cmd *cobra.Command, _ []string, d *deps) error {
			selected := make([]conformance.Tag, 0, len(tags))
			for _, t := range tags {
				tag, err := conformance.ParseTag(t)
				if err != nil {
					return usageError(err)
				}
				selected = append(selected, tag)
			}

			var runnerOpts []conformance.Option
			if cmd.Flags().Changed("seed") {
				runnerOpts = append(runnerOpts, conformance.WithSeed(seed))
			}
			runner := conformance.NewRunner(d.client(), runnerOpts...)

			if list {
				for _, c := range runner.Checks() {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%v\n", c.Name, c.Tags)
				}
				return nil
			}

			report := runner.Run(cmd.Context(), selected...)
			report.Render(cmd.OutOrStdout())
			if !report.OK() {
				return failed()
			}
			return nil
		}),
	}

	cmd.Flags().StringSliceVar(&tags, "tag", nil, "only run checks with this tag (repeatable: positive, negative, smoke, robustness, functional)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "seed for random sampling")
	cmd.Flags().BoolVar(&list, "list", false, "list checks without running them")
	return cmd
}
