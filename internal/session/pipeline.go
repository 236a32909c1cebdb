package session

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/stratadb/strata/internal/codec"
	"github.com/stratadb/strata/internal/doc"
	"github.com/stratadb/strata/internal/querysql"
)

// DefaultBatchSize bounds how many commands one batch carries.
const DefaultBatchSize = 500

// CommandObserver is invoked with every command the pipeline executes.
// Used by the scenario harness to capture command traces.
type CommandObserver func(stmt string, id doc.Identity)

// Pipeline turns a resolved operation set into batched, parameterized
// commands and executes them on a borrowed open transaction.
//
// The pipeline never opens, commits, or rolls back the transaction; that
// is the session's responsibility. It guarantees all-or-nothing by
// signaling the first failure upward, leaving the session to discard the
// transaction.
type Pipeline struct {
	batchSize int
	ser       codec.Serializer
	filter    querysql.TenantFilter
	log       *slog.Logger
	observe   CommandObserver
}

// NewPipeline creates a commit pipeline. batchSize <= 0 selects
// DefaultBatchSize.
func NewPipeline(batchSize int, ser codec.Serializer, log *slog.Logger) *Pipeline {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Pipeline{batchSize: batchSize, ser: ser, log: log}
}

// SetObserver installs a command observer. Pass nil to remove it.
func (p *Pipeline) SetObserver(fn CommandObserver) {
	p.observe = fn
}

// Execute applies the operation set on the open transaction. An empty set
// is a legal no-op. Per-identity order within ops is preserved; batch
// boundaries never split an identity's single collapsed operation.
func (p *Pipeline) Execute(ctx context.Context, ops []PendingChange, tx *sql.Tx, tenant string) error {
	if len(ops) == 0 {
		return nil
	}
	for start := 0; start < len(ops); start += p.batchSize {
		end := min(start+p.batchSize, len(ops))
		if err := p.executeBatch(ctx, ops[start:end], tx, tenant); err != nil {
			return err
		}
	}
	p.log.Debug("pipeline executed", "operations", len(ops), "tenant", tenant)
	return nil
}

func (p *Pipeline) executeBatch(ctx context.Context, batch []PendingChange, tx *sql.Tx, tenant string) error {
	for _, op := range batch {
		cmd, err := p.buildCommand(op, tenant)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, cmd.SQL(), cmd.Args()...); err != nil {
			return newEngineError(ErrCodeCommitFailed, op.ID,
				fmt.Sprintf("%s rejected by store", op.Kind), err)
		}
		if p.observe != nil {
			p.observe(cmd.SQL(), op.ID)
		}
	}
	return nil
}

func (p *Pipeline) buildCommand(op PendingChange, tenant string) (*querysql.CommandBuilder, error) {
	switch op.Kind {
	case ChangeInsert, ChangeUpdate:
		body, err := p.ser.Marshal(op.Document)
		if err != nil {
			return nil, newEngineError(ErrCodeSerializeFailed, op.ID, "serialize document", err)
		}
		if op.Kind == ChangeInsert {
			return querysql.BuildInsert(op.Table, op.ID.Key, tenant, body), nil
		}
		return querysql.BuildUpsert(op.Table, op.ID.Key, tenant, body), nil
	case ChangeDelete:
		return querysql.BuildDelete(op.Table, op.ID.Key, tenant, p.filter), nil
	default:
		return nil, newEngineError(ErrCodeCommitFailed, op.ID,
			fmt.Sprintf("unknown change kind %d", op.Kind), nil)
	}
}
