package rbac

// ExpandWildcards returns a copy of perms where every grant on ResourceAny is
// replaced, at the same position, by one grant per resource with the same action
// and scope. perms itself is left untouched.
// Callers that want "*" to mean "every resource" run this before handing the
// role to an Authorizer; the Authorizer itself only matches "*" literally.
func ExpandWildcards(perms []ScopedPermission, resources []string) []ScopedPermission {
	out := make([]ScopedPermission, 0, len(perms))
	for _, p := range perms {
		if p.Resource != ResourceAny {
			out = append(out, p)
			continue
		}
		for _, res := range resources {
			if res == "" || res == ResourceAny {
				continue
			}
			out = append(out, ScopedPermission{
				Permission: Permission{Action: p.Action, Resource: res},
				Scope:      p.Scope,
			})
		}
	}
	return out
}

// ExpandRoles applies ExpandWildcards to every role.
func ExpandRoles(roles []Role, resources []string) []Role {
	out := make([]Role, len(roles))
	for i, role := range roles {
		role.Permissions = ExpandWildcards(role.Permissions, resources)
		out[i] = role
	}
	return out
}
