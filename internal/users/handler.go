package users

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/staffora/staffora/internal/platform/httpx"
	"github.com/staffora/staffora/internal/rbac"
	"github.com/staffora/staffora/internal/shared"
)

// ManageLevel is the role level required for account administration.
const ManageLevel = 8

// Handler manages user management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, validator: validator.New()}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ActionRead, rbac.ResourceUser, nil))
		r.Get("/", h.listUsers)
		r.Get("/{id}", h.getUser)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.Requirement{Action: rbac.ActionManage, Resource: rbac.ResourceUser, Level: ManageLevel}, nil))
		r.Post("/", h.createUser)
		r.Put("/{id}/role", h.assignRole)
		r.Put("/{id}/department", h.setDepartment)
		r.Put("/{id}/active", h.setActive)
	})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageRequest(r)
	filter := ListFilter{RoleID: r.URL.Query().Get("role_id"), Page: page, PerPage: perPage}
	if raw := r.URL.Query().Get("department_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid department_id")
			return
		}
		filter.DepartmentID = &id
	}
	users, pagination, err := h.service.ListUsers(r.Context(), filter)
	if err != nil {
		h.fail(w, "list users", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": users, "pagination": pagination})
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.URLParamInt64(r, "id")
	if !ok {
		httpx.RespondError(w, ErrNotFound)
		return
	}
	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		h.fail(w, "get user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if !h.decode(w, r, &in) {
		return
	}
	actor, _ := rbac.SubjectFromContext(r.Context())
	user, err := h.service.CreateUser(r.Context(), actor, in)
	if err != nil {
		h.fail(w, "create user", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, user)
}

type assignRoleRequest struct {
	RoleID string `json:"role_id" validate:"required"`
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, &assignRoleRequest{}, func(actor rbac.Subject, id int64, body any) error {
		return h.service.AssignRole(r.Context(), actor, id, body.(*assignRoleRequest).RoleID)
	})
}

type departmentRequest struct {
	DepartmentID *int64 `json:"department_id" validate:"omitempty,gt=0"`
}

func (h *Handler) setDepartment(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, &departmentRequest{}, func(actor rbac.Subject, id int64, body any) error {
		return h.service.SetDepartment(r.Context(), actor, id, body.(*departmentRequest).DepartmentID)
	})
}

type activeRequest struct {
	Active *bool `json:"active" validate:"required"`
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, &activeRequest{}, func(actor rbac.Subject, id int64, body any) error {
		return h.service.SetActive(r.Context(), actor, id, *body.(*activeRequest).Active)
	})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request, body any, apply func(rbac.Subject, int64, any) error) {
	id, ok := httpx.URLParamInt64(r, "id")
	if !ok {
		httpx.RespondError(w, ErrNotFound)
		return
	}
	if !h.decode(w, r, body) {
		return
	}
	actor, _ := rbac.SubjectFromContext(r.Context())
	if err := apply(actor, id, body); err != nil {
		h.fail(w, "update user", err)
		return
	}
	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		h.fail(w, "reload user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid json body")
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Warn(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
