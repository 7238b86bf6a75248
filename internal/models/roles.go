package models

import "sort"

// Role constants define all valid roles in the system
const (
	RoleAdmin  = "admin"
	RoleCoach  = "coach"
	RolePlayer = "player"
	RoleScout  = "scout"
)

// Permission constants define all capability strings granted through roles
const (
	PermTacticsRead  = "tactics.read"
	PermTacticsWrite = "tactics.write"
	PermSquadsRead   = "squads.read"
	PermSquadsWrite  = "squads.write"
	PermReportsRead  = "reports.read"
	PermReportsWrite = "reports.write"
	PermUsersRead    = "users.read"
	PermUsersWrite   = "users.write"

	// Wildcard permission - grants everything (admin only)
	PermAll = "*"
)

// rolePermissions is the single source of truth for the role -> permission
// mapping. Permissions are embedded into tokens at issuance so downstream
// authorization never needs a database round-trip; the cost is that a
// demoted user keeps the old set until the access token expires. That
// staleness window is bounded by the access-token TTL.
var rolePermissions = map[string][]string{
	RoleAdmin: {PermAll},
	RoleCoach: {
		PermTacticsRead, PermTacticsWrite,
		PermSquadsRead, PermSquadsWrite,
		PermReportsRead, PermUsersRead,
	},
	RolePlayer: {PermTacticsRead, PermSquadsRead},
	RoleScout:  {PermTacticsRead, PermReportsRead, PermReportsWrite},
}

// IsValidRole checks if a role exists
func IsValidRole(role string) bool {
	_, ok := rolePermissions[role]
	return ok
}

// RolePermissions returns the permission set for a role. Pure and
// deterministic: no I/O, sorted output, unknown roles get an empty set.
func RolePermissions(role string) []string {
	perms, ok := rolePermissions[role]
	if !ok {
		return []string{}
	}

	out := make([]string, len(perms))
	copy(out, perms)
	sort.Strings(out)
	return out
}

// HasPermission checks if a permission set contains a required permission.
// Handles the wildcard "*" for admin access.
func HasPermission(permissions []string, required string) bool {
	for _, p := range permissions {
		if p == PermAll {
			return true
		}
		if p == required {
			return true
		}
	}
	return false
}
