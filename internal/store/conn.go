package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNoTransaction is returned when Commit or Tx is called outside an open
// transaction.
var ErrNoTransaction = errors.New("store: no open transaction")

// ErrTransactionOpen is returned when Begin is called while a transaction
// is already open on the connection.
var ErrTransactionOpen = errors.New("store: transaction already open")

// ManagedConn is a dedicated database connection owned by exactly one
// session for its lifetime. The session opens and commits transactions on
// it; the commit pipeline only borrows the open transaction for the
// duration of one save.
//
// INVARIANT: at most one transaction is open per connection at a time.
type ManagedConn struct {
	conn *sql.Conn
	tx   *sql.Tx
}

// Acquire checks a dedicated connection out of the pool.
func (s *Store) Acquire(ctx context.Context) (*ManagedConn, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	return &ManagedConn{conn: conn}, nil
}

// Begin opens the connection's transaction.
func (c *ManagedConn) Begin(ctx context.Context) error {
	if c.tx != nil {
		return ErrTransactionOpen
	}
	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	c.tx = tx
	return nil
}

// Tx returns the open transaction, or nil when none is open.
func (c *ManagedConn) Tx() *sql.Tx {
	return c.tx
}

// Commit commits the open transaction.
func (c *ManagedConn) Commit() error {
	if c.tx == nil {
		return ErrNoTransaction
	}
	err := c.tx.Commit()
	c.tx = nil
	if err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Rollback discards the open transaction. No-op when none is open, so it
// is safe in the session's failure paths.
func (c *ManagedConn) Rollback() error {
	if c.tx == nil {
		return nil
	}
	err := c.tx.Rollback()
	c.tx = nil
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback transaction: %w", err)
	}
	return nil
}

// QueryRowContext runs a point query on the connection, inside the open
// transaction when one exists.
func (c *ManagedConn) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	if c.tx != nil {
		return c.tx.QueryRowContext(ctx, query, args...)
	}
	return c.conn.QueryRowContext(ctx, query, args...)
}

// Close rolls back any open transaction and returns the connection to the
// pool.
func (c *ManagedConn) Close() error {
	if c.conn == nil {
		return nil
	}
	rbErr := c.Rollback()
	closeErr := c.conn.Close()
	c.conn = nil
	if rbErr != nil {
		return rbErr
	}
	if closeErr != nil {
		return fmt.Errorf("close connection: %w", closeErr)
	}
	return nil
}
