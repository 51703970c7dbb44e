package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/hn-conformance/internal/hnapi"
	"github.com/jonesrussell/north-cloud/hn-conformance/internal/schema"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseItemID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, usageError(fmt.Errorf("invalid item id %q", s))
	}
	return id, nil
}

// outcomeJSON prints a Found payload or null for Absent. Failed is an error.
func outcomeJSON(w io.Writer, out hnapi.Outcome) error {
	switch {
	case out.IsFailed():
		return out.Err()
	case out.IsAbsent():
		return writeJSON(w, nil)
	default:
		return writeJSON(w, out.Payload())
	}
}

func newListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list <top|new|best|ask|show|job>",
		Short: "Fetch a story list",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: opts.run(func(cmd *cobra.Command, args []string, d *deps) error {
			endpoint, err := hnapi.ParseListEndpoint(args[0])
			if err != nil {
				return usageError(err)
			}
			ids, err := d.client().List(cmd.Context(), endpoint)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), ids)
		}),
	}
}

func newItemCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "item <id>",
		Short: "Fetch one item (prints null when absent)",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: opts.run(func(cmd *cobra.Command, args []string, d *deps) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			return outcomeJSON(cmd.OutOrStdout(), d.client().Item(cmd.Context(), id))
		}),
	}
}

func newUserCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "user <id>",
		Short: "Fetch one user (prints null when absent)",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: opts.run(func(cmd *cobra.Command, args []string, d *deps) error {
			return outcomeJSON(cmd.OutOrStdout(), d.client().User(cmd.Context(), args[0]))
		}),
	}
}

func newRawCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "raw <path>",
		Short: "Fetch any path below the base URL and print the decoded JSON",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: opts.run(func(cmd *cobra.Command, args []string, d *deps) error {
			v, err := d.client().Raw(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), v)
		}),
	}
}

func newValidateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <item|user> <id>",
		Short: "Fetch a record and validate it against its contract",
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: opts.run(func(cmd *cobra.Command, args []string, d *deps) error {
			client := d.client()

			var (
				out      hnapi.Outcome
				validate func(any) error
			)
			switch args[0] {
			case "item":
				id, err := parseItemID(args[1])
				if err != nil {
					return err
				}
				out, validate = client.Item(cmd.Context(), id), schema.ValidateItem
			case "user":
				out, validate = client.User(cmd.Context(), args[1]), schema.ValidateUser
			default:
				return usageError(fmt.Errorf("unknown record kind %q (want item or user)", args[0]))
			}

			if out.IsFailed() {
				return out.Err()
			}
			if out.IsAbsent() {
				return fmt.Errorf("%s %s is absent", args[0], args[1])
			}
			if err := validate(out.Payload()); err != nil {
				var verr *schema.ValidationError
				if errors.As(err, &verr) {
					fmt.Fprintf(cmd.OutOrStdout(), "INVALID %s %s: %v\n", args[0], args[1], err)
					return failed()
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK %s %s\n", args[0], args[1])
			return nil
		}),
	}
}
