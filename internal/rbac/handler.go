package rbac

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/staffora/staffora/internal/platform/httpx"
)

// ReloadLevel is the role level required to force a role reload.
const ReloadLevel = 9

// Handler exposes the catalog, role snapshot and decision endpoints.
type Handler struct {
	logger     *slog.Logger
	service    *Service
	authorizer *Authorizer
	rbac       Middleware
	validator  *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, authorizer *Authorizer, rbac Middleware) *Handler {
	return &Handler{logger: logger, service: service, authorizer: authorizer, rbac: rbac, validator: validator.New()}
}

// MountRoutes registers rbac routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/permissions", h.listPermissions)
	r.Post("/check", h.check)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(ActionRead, ResourceRole, nil))
		r.Get("/roles", h.listRoles)
		r.Get("/roles/{id}", h.getRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireLevel(ReloadLevel))
		r.Post("/reload", h.reload)
	})
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": Catalog()})
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{
		"roles":   h.service.ListRoles(),
		"version": h.service.Store().Version(),
	})
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	role, err := h.service.GetRole(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

// CheckRequest asks for a batch of decisions on behalf of the current subject.
type CheckRequest struct {
	Checks []CheckItem `json:"checks" validate:"max=50,dive"`
	Level  int         `json:"level" validate:"gte=0"`
}

// CheckItem is one permission question.
type CheckItem struct {
	Action   string  `json:"action" validate:"required"`
	Resource string  `json:"resource" validate:"required"`
	Target   *Target `json:"target,omitempty"`
}

// CheckResult answers one CheckItem.
type CheckResult struct {
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Allowed  bool   `json:"allowed"`
}

// CheckResponse answers a CheckRequest.
type CheckResponse struct {
	Results []CheckResult `json:"results"`
	Level   *bool         `json:"level,omitempty"`
	Role    string        `json:"role"`
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	subject, ok := SubjectFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req CheckRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid json body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	resp := CheckResponse{Results: make([]CheckResult, 0, len(req.Checks)), Role: subject.RoleID}
	for _, item := range req.Checks {
		resp.Results = append(resp.Results, CheckResult{
			Action:   item.Action,
			Resource: item.Resource,
			Allowed:  h.authorizer.HasPermission(subject, item.Action, item.Resource, item.Target),
		})
	}
	if req.Level > 0 {
		passed := h.authorizer.HasLevel(subject, req.Level)
		resp.Level = &passed
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) reload(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Invalidate(r.Context()); err != nil {
		h.logger.Error("rbac reload", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	store := h.service.Store()
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": store.Len(), "version": store.Version()})
}
