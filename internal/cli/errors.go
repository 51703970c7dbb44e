package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ExitError carries a specific exit code out of a command. A nil Err means
// the command already reported the problem.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

func usageError(err error) error {
	return &ExitError{Code: ExitUsage, Err: err}
}

// failed signals a non-zero exit after the command printed its own report.
func failed() error {
	return &ExitError{Code: ExitFailure}
}

// usageArgs wraps a positional-args validator so violations exit 2.
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	}
}
