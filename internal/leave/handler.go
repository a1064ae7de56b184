package leave

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/staffora/staffora/internal/platform/httpx"
	"github.com/staffora/staffora/internal/rbac"
	"github.com/staffora/staffora/internal/shared"
)

// Handler exposes leave endpoints. Record-level checks run in the service.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers leave routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.submit)
	r.Get("/{id}", h.get)
	r.Get("/{id}/history", h.history)
	r.Post("/{id}/approve", h.approve)
	r.Post("/{id}/reject", h.reject)
	r.Post("/{id}/cancel", h.cancel)
}

func (h *Handler) subjectAndID(w http.ResponseWriter, r *http.Request) (rbac.Subject, uuid.UUID, bool) {
	subject, ok := rbac.SubjectFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return subject, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, ErrNotFound)
		return subject, uuid.Nil, false
	}
	return subject, id, true
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	subject, ok := rbac.SubjectFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	page, perPage := shared.PageRequest(r)
	filter := ListFilter{Status: Status(r.URL.Query().Get("status")), Page: page, PerPage: perPage}
	if raw := r.URL.Query().Get("department_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid department_id")
			return
		}
		filter.DepartmentID = &id
	}
	items, pagination, err := h.service.List(r.Context(), subject, filter)
	if err != nil {
		h.fail(w, "list leave", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"requests": items, "pagination": pagination})
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	subject, ok := rbac.SubjectFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var in SubmitInput
	if !h.decode(w, r, &in) {
		return
	}
	req, err := h.service.Submit(r.Context(), subject, in)
	if err != nil {
		h.fail(w, "submit leave", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, req)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	subject, id, ok := h.subjectAndID(w, r)
	if !ok {
		return
	}
	req, err := h.service.Get(r.Context(), subject, id)
	if err != nil {
		h.fail(w, "get leave", err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	subject, id, ok := h.subjectAndID(w, r)
	if !ok {
		return
	}
	logs, err := h.service.History(r.Context(), subject, id)
	if err != nil {
		h.fail(w, "leave history", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"history": logs})
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	h.decision(w, r, h.service.Approve)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	h.decision(w, r, h.service.Reject)
}

func (h *Handler) decision(w http.ResponseWriter, r *http.Request, decide func(context.Context, rbac.Subject, uuid.UUID, string) (Request, error)) {
	subject, id, ok := h.subjectAndID(w, r)
	if !ok {
		return
	}
	var in DecisionInput
	if r.ContentLength != 0 && !h.decode(w, r, &in) {
		return
	}
	req, err := decide(r.Context(), subject, id, in.Note)
	if err != nil {
		h.fail(w, "decide leave", err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	subject, id, ok := h.subjectAndID(w, r)
	if !ok {
		return
	}
	req, err := h.service.Cancel(r.Context(), subject, id)
	if err != nil {
		h.fail(w, "cancel leave", err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
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
