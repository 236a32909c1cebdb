package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/stratadb/strata/internal/querysql"
)

// RowQuerier is the read surface LoadRow needs; satisfied by *sql.DB,
// *sql.Tx, *sql.Conn, and *ManagedConn.
type RowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// LoadRow reads one tenant-scoped row body. found=false when no row
// exists for the id under that tenant.
func LoadRow(ctx context.Context, q RowQuerier, table, id, tenant string) (body []byte, found bool, err error) {
	cmd := querysql.BuildSelect(table, id, tenant, querysql.TenantFilter{})
	var data string
	err = q.QueryRowContext(ctx, cmd.SQL(), cmd.Args()...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load %s/%s: %w", table, id, err)
	}
	return []byte(data), true, nil
}

// ListIDs returns the ids of every row in a table visible to the tenant,
// in id order.
func ListIDs(ctx context.Context, st *Store, table, tenant string) ([]string, error) {
	cmd := querysql.BuildList(table, tenant, querysql.TenantFilter{})
	rows, err := st.Query(ctx, cmd.SQL(), cmd.Args()...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("list %s: scan: %w", table, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	return ids, nil
}
