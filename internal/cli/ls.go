package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stratadb/strata/internal/session"
	"github.com/stratadb/strata/internal/store"
)

// NewListCommand creates the ls command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls <type>",
		Short: "List document ids of a type",
		Long: `List the ids of every document of the given type visible to the
tenant, in id order.

Example:
  strata ls widget`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runList(opts *RootOptions, typeKey string, cmd *cobra.Command) error {
	e, err := openEnv(opts)
	if err != nil {
		return err
	}
	defer e.close()

	m, ok := e.reg.ByKey(typeKey)
	if !ok {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown type %q", typeKey))
	}

	tenant := e.cfg.Tenant
	if tenant == "" {
		tenant = session.DefaultTenant
	}
	ids, err := store.ListIDs(cmd.Context(), e.st, m.Table(), tenant)
	if err != nil {
		return WrapExitError(ExitFailure, "list documents", err)
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		if ids == nil {
			ids = []string{}
		}
		return f.Success(map[string]any{"type": typeKey, "ids": ids})
	}
	for _, id := range ids {
		fmt.Fprintln(cmd.OutOrStdout(), id)
	}
	if len(ids) == 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "no %s documents\n", typeKey)
	}
	return nil
}
