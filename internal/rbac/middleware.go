package rbac

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/staffora/staffora/internal/platform/httpx"
)

type subjectContextKey struct{}

// ContextWithSubject stores the authenticated subject in context.
func ContextWithSubject(ctx context.Context, subject Subject) context.Context {
	return context.WithValue(ctx, subjectContextKey{}, subject)
}

// SubjectFromContext extracts the authenticated subject from context.
func SubjectFromContext(ctx context.Context) (Subject, bool) {
	subject, ok := ctx.Value(subjectContextKey{}).(Subject)
	return subject, ok && subject.UserID != ""
}

// TargetFunc builds the target of a request. Returning nil means no target.
type TargetFunc func(r *http.Request) *Target

// Middleware wires authorization checks into HTTP handlers. The subject is
// expected in the request context (see ContextWithSubject).
type Middleware struct {
	Authorizer *Authorizer
	Logger     *slog.Logger
}

// Require ensures the subject holds (action, resource) for the request target.
func (m Middleware) Require(action, resource string, target TargetFunc) func(http.Handler) http.Handler {
	return m.guard(func(r *http.Request, subject Subject) bool {
		var t *Target
		if target != nil {
			t = target(r)
		}
		return m.Authorizer.HasPermission(subject, action, resource, t)
	}, slog.String("action", action), slog.String("resource", resource))
}

// RequireLevel ensures the subject's role level reaches level.
func (m Middleware) RequireLevel(level int) func(http.Handler) http.Handler {
	return m.guard(func(r *http.Request, subject Subject) bool {
		return m.Authorizer.HasLevel(subject, level)
	}, slog.Int("level", level))
}

// RequireAll ensures every part of req passes. A non-nil target func overrides req.Target.
func (m Middleware) RequireAll(req Requirement, target TargetFunc) func(http.Handler) http.Handler {
	return m.guard(func(r *http.Request, subject Subject) bool {
		check := req
		if target != nil {
			check.Target = target(r)
		}
		return m.Authorizer.Allow(subject, check)
	}, slog.String("action", req.Action), slog.String("resource", req.Resource), slog.Int("level", req.Level))
}

func (m Middleware) guard(allow func(*http.Request, Subject) bool, attrs ...slog.Attr) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, ok := SubjectFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			if allow(r, subject) {
				next.ServeHTTP(w, r)
				return
			}
			if m.Logger != nil {
				args := []any{slog.String("user_id", subject.UserID), slog.String("role_id", subject.RoleID), slog.String("path", r.URL.Path)}
				for _, a := range attrs {
					args = append(args, a)
				}
				if _, known := m.Authorizer.role(subject); !known {
					m.Logger.Warn("rbac unknown role", args...)
				} else {
					m.Logger.Debug("rbac denied", args...)
				}
			}
			httpx.RespondError(w, httpx.ErrForbidden)
		})
	}
}
