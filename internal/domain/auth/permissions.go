package auth

import "context"

const (
	PermTimesheetPunch   = "timesheets.punch"
	PermTimesheetRead    = "timesheets.read"
	PermTimesheetApprove = "timesheets.approve"
	PermTimesheetExport  = "timesheets.export"
	PermAuditRead        = "audit.read"
)

var DefaultPermissions = []string{
	PermTimesheetPunch,
	PermTimesheetRead,
	PermTimesheetApprove,
	PermTimesheetExport,
	PermAuditRead,
}

var RolePermissions = map[string][]string{
	RoleEmployee: {
		PermTimesheetPunch,
		PermTimesheetRead,
	},
	RoleManager: {
		PermTimesheetPunch,
		PermTimesheetRead,
		PermTimesheetApprove,
		PermTimesheetExport,
	},
	RoleAdmin: {
		PermTimesheetPunch,
		PermTimesheetRead,
		PermTimesheetApprove,
		PermTimesheetExport,
		PermAuditRead,
	},
}

// StaticPermissions resolves permissions from RolePermissions.
type StaticPermissions struct{}

func (StaticPermissions) HasPermission(_ context.Context, role, permission string) (bool, error) {
	for _, perm := range RolePermissions[role] {
		if perm == permission {
			return true, nil
		}
	}
	return false, nil
}
