package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/hn-conformance/internal/mockserver"
)

func newMockCommand(opts *rootOptions) *cobra.Command {
	var (
		port     int
		fixtures string
	)

	cmd := &cobra.Command{
		Use:   "mock",
		Short: "Serve a fake Hacker News API from fixtures",
		Long: `Serves fixture data under /v0 until interrupted. Point other commands at it
with --base-url http://localhost:<port>/v0.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: opts.run(func(cmd *cobra.Command, _ []string, d *deps) error {
			if cmd.Flags().Changed("port") {
				d.cfg.Mock.Port = port
			}
			if cmd.Flags().Changed("fixtures") {
				d.cfg.Mock.Fixtures = fixtures
			}

			fx, err := loadMockFixtures(d.cfg.Mock.Fixtures)
			if err != nil {
				return usageError(err)
			}

			srv := mockserver.New(fx, d.log)
			return srv.Run(cmd.Context(), fmt.Sprintf(":%d", d.cfg.Mock.Port), nil)
		}),
	}

	cmd.Flags().IntVar(&port, "port", 0, "listen port (default from config)")
	cmd.Flags().StringVar(&fixtures, "fixtures", "", "fixtures YAML (default: built-in data)")
	return cmd
}

func loadMockFixtures(path string) (*mockserver.Fixtures, error) {
	if path == "" {
		return mockserver.DefaultFixtures()
	}
	return mockserver.LoadFixtures(path)
}
