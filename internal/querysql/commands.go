package querysql

import "fmt"

// The four commands the commit pipeline and load path issue. Every table
// is aliased "d" so the tenant fragment's qualifier resolves uniformly.

// BuildInsert returns a plain INSERT for a document known not to exist.
// A duplicate key surfaces as a constraint violation, which the pipeline
// reports as a commit error.
func BuildInsert(table, id, tenant string, body []byte) *CommandBuilder {
	b := &CommandBuilder{}
	b.Append(fmt.Sprintf("INSERT INTO %s AS d (id, tenant_id, data, updated_at) VALUES (:id, :tenant_id, :data, datetime('now'))", table))
	b.Bind("id", id)
	b.Bind(tenantParam, tenant)
	b.Bind("data", string(body))
	return b
}

// BuildUpsert returns the update form: INSERT .. ON CONFLICT DO UPDATE.
// Updates are upserts so a retried commit after an external delete cannot
// strand a zero-row UPDATE.
func BuildUpsert(table, id, tenant string, body []byte) *CommandBuilder {
	b := &CommandBuilder{}
	b.Append(fmt.Sprintf("INSERT INTO %s AS d (id, tenant_id, data, updated_at) VALUES (:id, :tenant_id, :data, datetime('now')) ON CONFLICT(id, tenant_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at", table))
	b.Bind("id", id)
	b.Bind(tenantParam, tenant)
	b.Bind("data", string(body))
	return b
}

// BuildDelete returns a tenant-scoped DELETE for one document.
func BuildDelete(table, id, tenant string, f TenantFilter) *CommandBuilder {
	b := &CommandBuilder{}
	b.Append(fmt.Sprintf("DELETE FROM %s AS d WHERE d.id = :id AND ", table))
	b.Bind("id", id)
	f.Apply(b, tenant)
	return b
}

// BuildSelect returns a tenant-scoped point lookup of one row body.
func BuildSelect(table, id, tenant string, f TenantFilter) *CommandBuilder {
	b := &CommandBuilder{}
	b.Append(fmt.Sprintf("SELECT d.data FROM %s AS d WHERE d.id = :id AND ", table))
	b.Bind("id", id)
	f.Apply(b, tenant)
	return b
}

// BuildList returns a tenant-scoped listing of document ids.
// ORDER BY keeps output deterministic.
func BuildList(table, tenant string, f TenantFilter) *CommandBuilder {
	b := &CommandBuilder{}
	b.Append(fmt.Sprintf("SELECT d.id FROM %s AS d WHERE ", table))
	f.Apply(b, tenant)
	b.Append(" ORDER BY d.id")
	return b
}
