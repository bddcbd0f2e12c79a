// Package rbac maps authenticated principals to the static permission table
// and gates every API handler behind it.
package rbac

// Permission is an atomic capability a role may hold.
type Permission string

// Capabilities exposed by the portal API.
const (
	PermProjectsRead   Permission = "projects.read"
	PermProjectsCreate Permission = "projects.create"
	PermInvoicesRead   Permission = "invoices.read"
	PermFilesRead      Permission = "files.read"
	PermFilesUpload    Permission = "files.upload"
)

// Role names assignable to portal users.
const (
	RoleCustomer = "customer"
	RoleViewer   = "viewer"
)

// rolePermissions is the static role table. Every role maps to a fixed,
// non-empty permission set; anything absent from this table is denied.
var rolePermissions = map[string]map[Permission]struct{}{
	RoleCustomer: permSet(
		PermProjectsRead,
		PermProjectsCreate,
		PermInvoicesRead,
		PermFilesRead,
		PermFilesUpload,
	),
	RoleViewer: permSet(
		PermProjectsRead,
		PermInvoicesRead,
		PermFilesRead,
	),
}

// RoleAllows reports whether the role grants the permission. Unknown roles
// and unknown permissions are always denied.
func RoleAllows(role string, perm Permission) bool {
	granted, ok := rolePermissions[role]
	if !ok {
		return false
	}
	_, ok = granted[perm]
	return ok
}

// RolePermissions returns the granted permission names for a role,
// empty for unknown roles.
func RolePermissions(role string) []Permission {
	granted, ok := rolePermissions[role]
	if !ok {
		return nil
	}
	perms := make([]Permission, 0, len(granted))
	for p := range granted {
		perms = append(perms, p)
	}
	return perms
}

func permSet(perms ...Permission) map[Permission]struct{} {
	set := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}
