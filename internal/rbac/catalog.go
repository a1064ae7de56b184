package rbac

import (
	"fmt"
	"sort"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Actions recognised by the catalog.
const (
	ActionRead    = "read"
	ActionCreate  = "create"
	ActionUpdate  = "update"
	ActionDelete  = "delete"
	ActionApprove = "approve"
	ActionManage  = "manage"
	ActionExport  = "export"
)

// Resources recognised by the catalog.
const (
	ResourceEmployee    = "employee"
	ResourceDepartment  = "department"
	ResourceAttendance  = "attendance"
	ResourceLeave       = "leave"
	ResourcePayroll     = "payroll"
	ResourcePerformance = "performance"
	ResourceReport      = "report"
	ResourceUser        = "user"
	ResourceRole        = "role"

	// ResourceAny is matched literally; see ExpandWildcards.
	ResourceAny = "*"
)

// Catalog permissions.
var (
	EmployeeRead   = Permission{Action: ActionRead, Resource: ResourceEmployee}
	EmployeeCreate = Permission{Action: ActionCreate, Resource: ResourceEmployee}
	EmployeeUpdate = Permission{Action: ActionUpdate, Resource: ResourceEmployee}
	EmployeeDelete = Permission{Action: ActionDelete, Resource: ResourceEmployee}

	DepartmentRead   = Permission{Action: ActionRead, Resource: ResourceDepartment}
	DepartmentManage = Permission{Action: ActionManage, Resource: ResourceDepartment}

	AttendanceRead    = Permission{Action: ActionRead, Resource: ResourceAttendance}
	AttendanceCreate  = Permission{Action: ActionCreate, Resource: ResourceAttendance}
	AttendanceApprove = Permission{Action: ActionApprove, Resource: ResourceAttendance}

	LeaveRead    = Permission{Action: ActionRead, Resource: ResourceLeave}
	LeaveCreate  = Permission{Action: ActionCreate, Resource: ResourceLeave}
	LeaveApprove = Permission{Action: ActionApprove, Resource: ResourceLeave}

	PayrollRead   = Permission{Action: ActionRead, Resource: ResourcePayroll}
	PayrollManage = Permission{Action: ActionManage, Resource: ResourcePayroll}

	PerformanceRead   = Permission{Action: ActionRead, Resource: ResourcePerformance}
	PerformanceUpdate = Permission{Action: ActionUpdate, Resource: ResourcePerformance}

	ReportRead   = Permission{Action: ActionRead, Resource: ResourceReport}
	ReportExport = Permission{Action: ActionExport, Resource: ResourceReport}

	UserRead   = Permission{Action: ActionRead, Resource: ResourceUser}
	UserManage = Permission{Action: ActionManage, Resource: ResourceUser}

	RoleRead   = Permission{Action: ActionRead, Resource: ResourceRole}
	RoleManage = Permission{Action: ActionManage, Resource: ResourceRole}
)

var catalog = map[string]Permission{
	"EMPLOYEE_READ":      EmployeeRead,
	"EMPLOYEE_CREATE":    EmployeeCreate,
	"EMPLOYEE_UPDATE":    EmployeeUpdate,
	"EMPLOYEE_DELETE":    EmployeeDelete,
	"DEPARTMENT_READ":    DepartmentRead,
	"DEPARTMENT_MANAGE":  DepartmentManage,
	"ATTENDANCE_READ":    AttendanceRead,
	"ATTENDANCE_CREATE":  AttendanceCreate,
	"ATTENDANCE_APPROVE": AttendanceApprove,
	"LEAVE_READ":         LeaveRead,
	"LEAVE_CREATE":       LeaveCreate,
	"LEAVE_APPROVE":      LeaveApprove,
	"PAYROLL_READ":       PayrollRead,
	"PAYROLL_MANAGE":     PayrollManage,
	"PERFORMANCE_READ":   PerformanceRead,
	"PERFORMANCE_UPDATE": PerformanceUpdate,
	"REPORT_READ":        ReportRead,
	"REPORT_EXPORT":      ReportExport,
	"USER_READ":          UserRead,
	"USER_MANAGE":        UserManage,
	"ROLE_READ":          RoleRead,
	"ROLE_MANAGE":        RoleManage,
}

var known = func() map[Permission]struct{} {
	set := make(map[Permission]struct{}, len(catalog))
	for _, p := range catalog {
		set[p] = struct{}{}
	}
	return set
}()

// Lookup returns the named catalog permission. Unknown names are programming
// errors and panic.
func Lookup(name string) Permission {
	p, ok := catalog[name]
	if !ok {
		panic(fmt.Sprintf("rbac: unknown catalog entry %q", name))
	}
	return p
}

// Known reports whether p is a catalog permission or a literal wildcard grant
// over a catalog action.
func Known(p Permission) bool {
	if _, ok := known[p]; ok {
		return true
	}
	if p.Resource != ResourceAny {
		return false
	}
	for k := range known {
		if k.Action == p.Action {
			return true
		}
	}
	return false
}

// CatalogEntry is a named catalog permission with a display label.
type CatalogEntry struct {
	Name       string     `json:"name"`
	Permission Permission `json:"permission"`
	Label      string     `json:"label"`
}

// Catalog lists every catalog permission ordered by name.
func Catalog() []CatalogEntry {
	title := cases.Title(language.English)
	entries := make([]CatalogEntry, 0, len(catalog))
	for name, p := range catalog {
		entries = append(entries, CatalogEntry{
			Name:       name,
			Permission: p,
			Label:      title.String(p.Action + " " + p.Resource),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

// Resources lists every concrete catalog resource, sorted.
func Resources() []string {
	set := make(map[string]struct{})
	for p := range known {
		set[p.Resource] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for r := range set {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}
