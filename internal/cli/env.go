package cli

import (
	"context"
	"log/slog"

	"github.com/stratadb/strata/internal/doc"
	"github.com/stratadb/strata/internal/session"
	"github.com/stratadb/strata/internal/store"
)

// env is the resolved runtime every command works against: merged config,
// a registry built from the CUE definitions, and an open store.
type env struct {
	cfg *Config
	reg *doc.Registry
	st  *store.Store
}

// openEnv resolves config, loads type definitions, and opens the database.
// The caller must call close.
func openEnv(opts *RootOptions) (*env, error) {
	cfg, err := ResolveConfig(opts.Config, opts.Database, opts.Types, opts.Tenant, opts.BatchSize)
	if err != nil {
		return nil, err
	}

	defs, err := LoadDefinitions(cfg.Types)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load type definitions", err)
	}

	reg := doc.NewRegistry()
	for _, def := range defs {
		if err := reg.Register(doc.DynamicMapping(def.Name, def.Table, nil)); err != nil {
			return nil, WrapExitError(ExitCommandError, "register type definitions", err)
		}
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open database", err)
	}
	return &env{cfg: cfg, reg: reg, st: st}, nil
}

func (e *env) close() {
	if err := e.st.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// openSession starts one session against the environment's store.
func (e *env) openSession(ctx context.Context) (*session.Session, error) {
	s, err := session.New(ctx, e.st, e.reg, session.Options{
		Tenant:    e.cfg.Tenant,
		BatchSize: e.cfg.BatchSize,
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open session", err)
	}
	return s, nil
}
