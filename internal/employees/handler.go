package employees

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

// Handler exposes employee and department endpoints.
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

// MountEmployeeRoutes registers /employees routes. Record-level checks run
// in the service because the target is only known after loading the row.
func (h *Handler) MountEmployeeRoutes(r chi.Router) {
	r.Get("/", h.listEmployees)
	r.Post("/", h.createEmployee)
	r.Get("/{id}", h.getEmployee)
	r.Put("/{id}", h.updateEmployee)
	r.Delete("/{id}", h.deleteEmployee)
}

// MountDepartmentRoutes registers /departments routes.
func (h *Handler) MountDepartmentRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ActionRead, rbac.ResourceDepartment, nil))
		r.Get("/", h.listDepartments)
		r.Get("/{id}", h.getDepartment)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ActionManage, rbac.ResourceDepartment, nil))
		r.Post("/", h.createDepartment)
		r.Put("/{id}", h.updateDepartment)
		r.Delete("/{id}", h.deleteDepartment)
	})
}

func subject(w http.ResponseWriter, r *http.Request) (rbac.Subject, bool) {
	s, ok := rbac.SubjectFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
	}
	return s, ok
}

func (h *Handler) listEmployees(w http.ResponseWriter, r *http.Request) {
	sub, ok := subject(w, r)
	if !ok {
		return
	}
	page, perPage := shared.PageRequest(r)
	q := r.URL.Query()
	filter := ListFilter{Status: q.Get("status"), Search: q.Get("q"), Page: page, PerPage: perPage}
	if raw := q.Get("department_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid department_id")
			return
		}
		filter.DepartmentID = &id
	}
	items, pagination, err := h.service.ListEmployees(r.Context(), sub, filter)
	if err != nil {
		h.fail(w, "list employees", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"employees": items, "pagination": pagination})
}

func (h *Handler) getEmployee(w http.ResponseWriter, r *http.Request) {
	sub, ok := subject(w, r)
	if !ok {
		return
	}
	id, ok := httpx.URLParamInt64(r, "id")
	if !ok {
		httpx.RespondError(w, ErrEmployeeNotFound)
		return
	}
	e, err := h.service.GetEmployee(r.Context(), sub, id)
	if err != nil {
		h.fail(w, "get employee", err)
		return
	}
	httpx.JSON(w, http.StatusOK, e)
}

func (h *Handler) createEmployee(w http.ResponseWriter, r *http.Request) {
	sub, ok := subject(w, r)
	if !ok {
		return
	}
	var in EmployeeInput
	if !h.decode(w, r, &in) {
		return
	}
	e, err := h.service.CreateEmployee(r.Context(), sub, in)
	if err != nil {
		h.fail(w, "create employee", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, e)
}

func (h *Handler) updateEmployee(w http.ResponseWriter, r *http.Request) {
	sub, ok := subject(w, r)
	if !ok {
		return
	}
	id, ok := httpx.URLParamInt64(r, "id")
	if !ok {
		httpx.RespondError(w, ErrEmployeeNotFound)
		return
	}
	var in EmployeeInput
	if !h.decode(w, r, &in) {
		return
	}
	e, err := h.service.UpdateEmployee(r.Context(), sub, id, in)
	if err != nil {
		h.fail(w, "update employee", err)
		return
	}
	httpx.JSON(w, http.StatusOK, e)
}

func (h *Handler) deleteEmployee(w http.ResponseWriter, r *http.Request) {
	sub, ok := subject(w, r)
	if !ok {
		return
	}
	id, ok := httpx.URLParamInt64(r, "id")
	if !ok {
		httpx.RespondError(w, ErrEmployeeNotFound)
		return
	}
	if err := h.service.DeleteEmployee(r.Context(), sub, id); err != nil {
		h.fail(w, "delete employee", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listDepartments(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListDepartments(r.Context())
	if err != nil {
		h.fail(w, "list departments", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"departments": items})
}

func (h *Handler) getDepartment(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.URLParamInt64(r, "id")
	if !ok {
		httpx.RespondError(w, ErrDepartmentNotFound)
		return
	}
	d, err := h.service.GetDepartment(r.Context(), id)
	if err != nil {
		h.fail(w, "get department", err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) createDepartment(w http.ResponseWriter, r *http.Request) {
	sub, _ := rbac.SubjectFromContext(r.Context())
	var in DepartmentInput
	if !h.decode(w, r, &in) {
		return
	}
	d, err := h.service.CreateDepartment(r.Context(), sub, in)
	if err != nil {
		h.fail(w, "create department", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, d)
}

func (h *Handler) updateDepartment(w http.ResponseWriter, r *http.Request) {
	sub, _ := rbac.SubjectFromContext(r.Context())
	id, ok := httpx.URLParamInt64(r, "id")
	if !ok {
		httpx.RespondError(w, ErrDepartmentNotFound)
		return
	}
	var in DepartmentInput
	if !h.decode(w, r, &in) {
		return
	}
	d, err := h.service.UpdateDepartment(r.Context(), sub, id, in)
	if err != nil {
		h.fail(w, "update department", err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) deleteDepartment(w http.ResponseWriter, r *http.Request) {
	sub, _ := rbac.SubjectFromContext(r.Context())
	id, ok := httpx.URLParamInt64(r, "id")
	if !ok {
		httpx.RespondError(w, ErrDepartmentNotFound)
		return
	}
	if err := h.service.DeleteDepartment(r.Context(), sub, id); err != nil {
		h.fail(w, "delete department", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
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
