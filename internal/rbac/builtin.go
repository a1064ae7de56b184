package rbac

// Built-in role identifiers.
const (
	RoleAdministrator     = "administrator"
	RoleHRAdministrator   = "hr-administrator"
	RoleDepartmentManager = "department-manager"
	RoleManager           = "manager"
	RoleEmployee          = "employee"
	RoleViewer            = "viewer"
)

func grant(scope Scope, perms ...Permission) []ScopedPermission {
	out := make([]ScopedPermission, 0, len(perms))
	for _, p := range perms {
		out = append(out, ScopedPermission{Permission: p, Scope: scope})
	}
	return out
}

func concat(groups ...[]ScopedPermission) []ScopedPermission {
	var out []ScopedPermission
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// BuiltinRoles returns the default role definitions.
func BuiltinRoles() []Role {
	return []Role{
		{
			ID:          RoleAdministrator,
			Name:        "Administrator",
			Description: "Full access to every module",
			Level:       10,
			Permissions: grant(ScopeAll,
				EmployeeRead, EmployeeCreate, EmployeeUpdate, EmployeeDelete,
				DepartmentRead, DepartmentManage,
				AttendanceRead, AttendanceCreate, AttendanceApprove,
				LeaveRead, LeaveCreate, LeaveApprove,
				PayrollRead, PayrollManage,
				PerformanceRead, PerformanceUpdate,
				ReportRead, ReportExport,
				UserRead, UserManage,
				RoleRead, RoleManage,
			),
		},
		{
			ID:          RoleHRAdministrator,
			Name:        "HR Administrator",
			Description: "Manages employee records, payroll and leave company-wide",
			Level:       8,
			Permissions: grant(ScopeAll,
				EmployeeRead, EmployeeCreate, EmployeeUpdate, EmployeeDelete,
				DepartmentRead, DepartmentManage,
				AttendanceRead, AttendanceApprove,
				LeaveRead, LeaveCreate, LeaveApprove,
				PayrollRead, PayrollManage,
				PerformanceRead, PerformanceUpdate,
				ReportRead, ReportExport,
				UserRead,
				RoleRead,
			),
		},
		{
			ID:          RoleDepartmentManager,
			Name:        "Department Manager",
			Description: "Approves leave and attendance for one department",
			Level:       6,
			Permissions: concat(
				grant(ScopeDepartment,
					EmployeeRead,
					AttendanceRead, AttendanceApprove,
					LeaveRead, LeaveApprove,
					PerformanceRead, PerformanceUpdate,
				),
				grant(ScopeOwn, LeaveCreate, AttendanceCreate, PayrollRead),
				grant(ScopeAll, DepartmentRead, ReportRead),
			),
		},
		{
			ID:          RoleManager,
			Name:        "Manager",
			Description: "Reads team records and reports",
			Level:       5,
			Permissions: concat(
				grant(ScopeDepartment, EmployeeRead, AttendanceRead, LeaveRead, PerformanceRead),
				grant(ScopeOwn, LeaveCreate, AttendanceCreate, PayrollRead),
				grant(ScopeAll, DepartmentRead, ReportRead),
			),
		},
		{
			ID:          RoleEmployee,
			Name:        "Employee",
			Description: "Self service access to own records",
			Level:       2,
			Permissions: concat(
				grant(ScopeOwn,
					EmployeeRead,
					AttendanceRead, AttendanceCreate,
					LeaveRead, LeaveCreate,
					PayrollRead,
					PerformanceRead,
				),
				grant(ScopeAll, DepartmentRead),
			),
		},
		{
			ID:          RoleViewer,
			Name:        "Viewer",
			Description: "Read-only access to the directory",
			Level:       1,
			Permissions: grant(ScopeAll, EmployeeRead, DepartmentRead),
		},
	}
}
