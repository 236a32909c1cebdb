package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stratadb/strata/internal/doc"
)

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <type> <id>",
		Short: "Load a document by typed key",
		Long: `Load one document and print its body.

Example:
  strata get widget w-1`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(rootOpts, args[0], args[1], cmd)
		},
	}
	return cmd
}

func runGet(opts *RootOptions, typeKey, id string, cmd *cobra.Command) error {
	e, err := openEnv(opts)
	if err != nil {
		return err
	}
	defer e.close()

	ctx := cmd.Context()
	s, err := e.openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	instance, found, err := s.Load(ctx, typeKey, id)
	if err != nil {
		return WrapExitError(ExitFailure, "load document", err)
	}
	if !found {
		return NewExitError(ExitFailure, fmt.Sprintf("document %s/%s not found", typeKey, id))
	}

	d, ok := instance.(*doc.Document)
	if !ok {
		return NewExitError(ExitFailure, fmt.Sprintf("document %s/%s has an unexpected shape", typeKey, id))
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		return f.Success(map[string]any{"type": typeKey, "id": id, "body": d.Body})
	}
	body, err := json.Marshal(d.Body)
	if err != nil {
		return WrapExitError(ExitFailure, "render body", err)
	}
	return f.Success(string(body))
}
