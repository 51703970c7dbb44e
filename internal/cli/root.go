// Package cli implements the hnconform command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/hn-conformance/internal/config"
)

// Version is overridden at build time with -ldflags "-X".
var Version = "dev"

// Exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// rootOptions holds the persistent flag values. Flags only override the
// loaded configuration when they were set explicitly.
type rootOptions struct {
	configPath string
	baseURL    string
	retries    int
	backoff    time.Duration
	timeout    time.Duration
	logLevel   string
	metricsOut string
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "hnconform",
		Short:         "Hacker News API conformance harness",
		Long:          `Checks the Hacker News API against its documented contracts, probes items in bulk and gates performance runs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	api := config.Defaults().API
	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default $CONFIG_PATH)")
	flags.StringVar(&opts.baseURL, "base-url", "", "API base URL (default $HACKERNEWS_BASE_URL or the public API)")
	flags.IntVar(&opts.retries, "retries", api.Retries, "retries after the first attempt")
	flags.DurationVar(&opts.backoff, "backoff", api.Backoff, "base backoff delay")
	flags.DurationVar(&opts.timeout, "timeout", api.Timeout, "per-attempt timeout")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&opts.metricsOut, "metrics-out", "", "write Prometheus metrics to this file on exit")

	cmd.AddCommand(
		newCheckCommand(opts),
		newListCommand(opts),
		newItemCommand(opts),
		newUserCommand(opts),
		newRawCommand(opts),
		newValidateCommand(opts),
		newProbeCommand(opts),
		newLoadCommand(opts),
		newThresholdsCommand(opts),
		newMockCommand(opts),
		newVersionCommand(),
	)
	return cmd
}

// Execute runs the CLI with args and returns the process exit code.
func Execute(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Err != nil {
			fmt.Fprintln(stderr, "Error:", exitErr.Err)
		}
		return exitErr.Code
	}
	fmt.Fprintln(stderr, "Error:", err)
	return ExitFailure
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hnconform version %s\n", Version)
		},
	}
}
