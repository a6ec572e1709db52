package auth

import "sort"

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

const (
	PermBacklogRead  = "backlog:read"
	PermBacklogWrite = "backlog:write"
	PermTicketImport = "ticket:import"
	PermAlertSend    = "alert:send"
	PermUserManage   = "user:manage"
)

var rolePermissions = map[string][]string{
	RoleAdmin: {PermBacklogRead, PermBacklogWrite, PermTicketImport, PermAlertSend, PermUserManage},
	RoleUser:  {PermBacklogRead},
}

func IsKnownRole(role string) bool {
	_, ok := rolePermissions[role]
	return ok
}

func HasPermission(role, perm string) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// Permissions returns a copy of the role table, suitable for serving to clients.
func Permissions() map[string][]string {
	out := make(map[string][]string, len(rolePermissions))
	for role, perms := range rolePermissions {
		cp := append([]string(nil), perms...)
		sort.Strings(cp)
		out[role] = cp
	}
	return out
}
