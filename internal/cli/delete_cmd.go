package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <type> <id>",
		Short: "Delete a document by typed key and commit",
		Long: `Record a delete for the typed key and commit immediately.

Deleting a key with no row is not an error; the commit simply removes
nothing.

Example:
  strata delete widget w-1`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(rootOpts, args[0], args[1], cmd)
		},
	}
	return cmd
}

func runDelete(opts *RootOptions, typeKey, id string, cmd *cobra.Command) error {
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

	if err := s.DeleteByKey(typeKey, id); err != nil {
		return WrapExitError(ExitFailure, "delete document", err)
	}
	if err := s.SaveChangesContext(ctx); err != nil {
		return WrapExitError(ExitFailure, "commit", err)
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		return f.Success(map[string]any{"type": typeKey, "id": id})
	}
	return f.Success(fmt.Sprintf("deleted %s/%s", typeKey, id))
}
