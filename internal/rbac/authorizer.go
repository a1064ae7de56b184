package rbac

// RoleResolver resolves role definitions by ID.
type RoleResolver interface {
	GetRole(id string) (Role, bool)
}

// DecisionObserver is notified of every permission decision.
type DecisionObserver interface {
	ObserveDecision(action, resource string, allowed bool)
}

// Authorizer answers allow/deny questions against a RoleResolver. Decisions are
// pure reads and safe for concurrent use.
type Authorizer struct {
	roles    RoleResolver
	observer DecisionObserver
}

// Option customises an Authorizer.
type Option func(*Authorizer)

// WithObserver attaches a decision observer.
func WithObserver(o DecisionObserver) Option {
	return func(a *Authorizer) { a.observer = o }
}

// NewAuthorizer constructs an Authorizer.
func NewAuthorizer(roles RoleResolver, opts ...Option) *Authorizer {
	a := &Authorizer{roles: roles}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// HasPermission reports whether subject may perform action on resource for
// target. The first grant matching (action, resource) exactly decides; "*" is
// only matched literally. Unknown roles deny.
func (a *Authorizer) HasPermission(subject Subject, action, resource string, target *Target) bool {
	allowed := a.decide(subject, action, resource, target)
	if a != nil && a.observer != nil {
		a.observer.ObserveDecision(action, resource, allowed)
	}
	return allowed
}

func (a *Authorizer) decide(subject Subject, action, resource string, target *Target) bool {
	role, ok := a.role(subject)
	if !ok {
		return false
	}
	for _, grant := range role.Permissions {
		if grant.Action == action && grant.Resource == resource {
			return ScopeSatisfied(grant.Scope, subject, target)
		}
	}
	return false
}

// HasLevel reports whether the subject's role level reaches required. Unknown
// roles have level 0 and always fail the gate.
func (a *Authorizer) HasLevel(subject Subject, required int) bool {
	role, ok := a.role(subject)
	return ok && role.Level >= required
}

// Level returns the subject's role level, or 0 for unknown roles.
func (a *Authorizer) Level(subject Subject) int {
	role, ok := a.role(subject)
	if !ok {
		return 0
	}
	return role.Level
}

// Grants returns the permissions granted to the subject's role.
func (a *Authorizer) Grants(subject Subject) []ScopedPermission {
	role, ok := a.role(subject)
	if !ok {
		return nil
	}
	return append([]ScopedPermission(nil), role.Permissions...)
}

// Visibility reports the widest scope at which subject may perform action on
// resource. Listings use it to turn a decision into a query filter.
func (a *Authorizer) Visibility(subject Subject, action, resource string) (Scope, bool) {
	switch {
	case a.decide(subject, action, resource, nil):
		return ScopeAll, true
	case subject.DepartmentID != "" && a.decide(subject, action, resource, &Target{DepartmentID: subject.DepartmentID}):
		return ScopeDepartment, true
	case subject.UserID != "" && a.decide(subject, action, resource, &Target{OwnerUserID: subject.UserID}):
		return ScopeOwn, true
	}
	return "", false
}

// Requirement combines a permission check with a level gate. Zero-valued parts
// are skipped; set parts are ANDed.
type Requirement struct {
	Action   string
	Resource string
	Level    int
	Target   *Target
}

// Allow evaluates every part of req and reports whether all pass. An empty
// requirement denies.
func (a *Authorizer) Allow(subject Subject, req Requirement) bool {
	checked := false
	if req.Action != "" || req.Resource != "" {
		if !a.HasPermission(subject, req.Action, req.Resource, req.Target) {
			return false
		}
		checked = true
	}
	if req.Level > 0 {
		if !a.HasLevel(subject, req.Level) {
			return false
		}
		checked = true
	}
	return checked
}

func (a *Authorizer) role(subject Subject) (Role, bool) {
	if a == nil || a.roles == nil || subject.RoleID == "" {
		return Role{}, false
	}
	return a.roles.GetRole(subject.RoleID)
}
