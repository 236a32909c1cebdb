package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the database schema from type definitions",
		Long: `Create (or update) the document tables for every defined type.

Reads the CUE type definitions, opens the SQLite database (creating it if
it does not exist), and ensures one table per document type. Idempotent.

Example:
  strata init --db ./strata.db --types ./types`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(rootOpts, cmd)
		},
	}
	return cmd
}

func runInit(opts *RootOptions, cmd *cobra.Command) error {
	e, err := openEnv(opts)
	if err != nil {
		return err
	}
	defer e.close()

	if err := e.st.EnsureSchema(e.reg); err != nil {
		return WrapExitError(ExitCommandError, "create schema", err)
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	types := e.reg.All()
	if opts.Format == "json" {
		names := make([]string, 0, len(types))
		for _, m := range types {
			names = append(names, m.TypeKey())
		}
		return f.Success(map[string]any{"database": e.cfg.Database, "types": names})
	}
	return f.Success(fmt.Sprintf("initialized %s with %d document type(s)", e.cfg.Database, len(types)))
}
