package querysql

import "strings"

// TenantColumn is the column every document table scopes rows by.
const TenantColumn = "tenant_id"

// tenantParam is the named parameter the fragment binds.
const tenantParam = "tenant_id"

// tenantFragment is the canonical predicate text. It is a compile-time
// constant: only the bound parameter value varies between sessions.
const tenantFragment = "d." + TenantColumn + " = :" + tenantParam

// TenantFilter appends the tenant-equality predicate to generated commands
// and recognizes its own canonical text, so the query layer can detect
// scoping that is already present instead of injecting it twice.
//
// TenantFilter is stateless, immutable, and shared across sessions.
type TenantFilter struct{}

// Fragment returns the canonical predicate text.
func (TenantFilter) Fragment() string {
	return tenantFragment
}

// Apply appends the predicate text and binds the tenant parameter.
// The text is identical for every call; only the bound value differs.
func (TenantFilter) Apply(b *CommandBuilder, tenant string) {
	b.Append(tenantFragment)
	b.Bind(tenantParam, tenant)
}

// Contains reports whether text already carries the canonical predicate.
func (TenantFilter) Contains(text string) bool {
	return strings.Contains(text, tenantFragment)
}
