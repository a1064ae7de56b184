package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/staffora/staffora/internal/platform/httpx"
	"github.com/staffora/staffora/internal/rbac"
	"github.com/staffora/staffora/internal/shared"
)

// SubjectLookup resolves the current role and department of a user.
type SubjectLookup interface {
	Subject(ctx context.Context, userID string) (rbac.Subject, error)
}

// BearerToken extracts the token of an Authorization: Bearer header.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// Middleware places the request subject into context. Bearer tokens take
// precedence over the cookie session. Either way the user's current role and
// department are looked up, so deactivated or reassigned users lose their old
// privileges before the credential expires. Requests without credentials pass
// through anonymously and are rejected later by the rbac guards.
func Middleware(service *Service, lookup SubjectLookup, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := BearerToken(r); token != "" {
				subject, err := service.ResolveSubject(r.Context(), token)
				if err != nil {
					httpx.RespondError(w, httpx.ErrUnauthorized)
					return
				}
				serveWithSubject(w, r, next, lookup, logger, subject)
				return
			}

			sess := shared.SessionFromContext(r.Context())
			if sess == nil || sess.User() == "" {
				next.ServeHTTP(w, r)
				return
			}
			subject := rbac.Subject{UserID: sess.User(), RoleID: sess.Role(), DepartmentID: sess.Department()}
			serveWithSubject(w, r, next, lookup, logger, subject)
		})
	}
}

func serveWithSubject(w http.ResponseWriter, r *http.Request, next http.Handler, lookup SubjectLookup, logger *slog.Logger, subject rbac.Subject) {
	if lookup != nil {
		fresh, err := lookup.Subject(r.Context(), subject.UserID)
		switch {
		case err == nil:
			subject = fresh
		case errors.Is(err, shared.ErrNotFound), errors.Is(err, httpx.ErrNotFound):
			next.ServeHTTP(w, r)
			return
		default:
			logger.Error("resolve subject", slog.String("user_id", subject.UserID), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
	}
	next.ServeHTTP(w, r.WithContext(rbac.ContextWithSubject(r.Context(), subject)))
}
