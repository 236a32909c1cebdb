package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stratadb/strata/internal/doc"
)

// StoreOptions holds flags for the store command.
type StoreOptions struct {
	*RootOptions
	Body string
}

// NewStoreCommand creates the store command.
func NewStoreCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StoreOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "store <type> [<id>]",
		Short: "Store a document and commit",
		Long: `Store one document of the given type and commit immediately.

When the id is omitted a UUIDv7 key is generated and printed.

Example:
  strata store widget w-1 --body '{"name":"bolt","count":3}'
  strata store widget --body '{"name":"nut"}'`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) == 2 {
				id = args[1]
			}
			return runStore(opts, args[0], id, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Body, "body", "{}", "document body as JSON")

	return cmd
}

func runStore(opts *StoreOptions, typeKey, id string, cmd *cobra.Command) error {
	var body map[string]any
	if err := json.Unmarshal([]byte(opts.Body), &body); err != nil {
		return WrapExitError(ExitCommandError, "invalid --body JSON", err)
	}

	e, err := openEnv(opts.RootOptions)
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

	d := &doc.Document{Type: typeKey, ID: id, Body: body}
	if err := s.Store(d); err != nil {
		return WrapExitError(ExitFailure, "store document", err)
	}
	if err := s.SaveChangesContext(ctx); err != nil {
		return WrapExitError(ExitFailure, "commit", err)
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		return f.Success(map[string]any{"type": typeKey, "id": d.ID})
	}
	return f.Success(fmt.Sprintf("stored %s/%s", typeKey, d.ID))
}
