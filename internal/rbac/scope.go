package rbac

// ScopeSatisfied decides whether a grant with the given scope reaches target.
//
// An empty scope is ScopeAll. Own and department scopes need both sides of the
// comparison present; a nil target never satisfies them. Unrecognised scopes
// deny.
func ScopeSatisfied(scope Scope, subject Subject, target *Target) bool {
	switch scope {
	case ScopeAll, "":
		return true
	case ScopeOwn:
		if target == nil || target.OwnerUserID == "" {
			return false
		}
		return target.OwnerUserID == subject.UserID
	case ScopeDepartment:
		if target == nil || target.DepartmentID == "" || subject.DepartmentID == "" {
			return false
		}
		return target.DepartmentID == subject.DepartmentID
	default:
		return false
	}
}
