// Package querysql constructs the parameterized SQL commands the engine
// issues against SQLite.
//
// CRITICAL: All values are parameterized (never interpolated). Only table
// names are formatted into command text, and they come from the startup
// registry, never from callers.
package querysql

import (
	"database/sql"
	"strings"
)

// CommandBuilder accumulates one SQL command: the statement text plus its
// named parameters. Builders are single-use and not safe for concurrent
// mutation.
type CommandBuilder struct {
	text strings.Builder
	args []any
}

// Append adds raw text to the command.
func (b *CommandBuilder) Append(text string) *CommandBuilder {
	b.text.WriteString(text)
	return b
}

// Bind registers a named parameter. The text referencing it uses the
// ":name" form.
func (b *CommandBuilder) Bind(name string, value any) *CommandBuilder {
	b.args = append(b.args, sql.Named(name, value))
	return b
}

// SQL returns the accumulated statement text.
func (b *CommandBuilder) SQL() string {
	return b.text.String()
}

// Args returns the bound parameters in registration order.
func (b *CommandBuilder) Args() []any {
	return b.args
}
