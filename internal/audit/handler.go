package audit

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/staffora/staffora/internal/platform/httpx"
	"github.com/staffora/staffora/internal/rbac"
)

// ViewLevel is the minimum role level allowed to read the audit trail.
const ViewLevel = 8

const (
	exportRateLimit  = 10
	exportRateWindow = time.Minute
	defaultDateRange = 7 * 24 * time.Hour
	maxDateRange     = 90 * 24 * time.Hour
)

var errInvalidFilter = errors.New("invalid filter")

// Handler serves the audit timeline.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
	now     func() time.Time
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service, guard rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: guard, now: time.Now}
}

// MountRoutes registers the timeline and the CSV export.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireAll(rbac.Requirement{Action: rbac.ActionRead, Resource: rbac.ResourceReport, Level: ViewLevel}, nil)).
		Get("/", h.timeline)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.Requirement{Action: rbac.ActionExport, Resource: rbac.ResourceReport, Level: ViewLevel}, nil))
		r.Use(httprate.Limit(exportRateLimit, exportRateWindow,
			httprate.WithKeyFuncs(rateLimitKey),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "export rate limit reached")
			}),
		))
		r.Get("/export.csv", h.export)
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	if subject, ok := rbac.SubjectFromContext(r.Context()); ok && subject.UserID != "" {
		return "user:" + subject.UserID, nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.logger.Error("load audit timeline", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	rows, err := h.service.Export(r.Context(), filters)
	if err != nil {
		h.logger.Error("export audit timeline", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="audit-timeline.csv"`)
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"at", "actor_id", "action", "entity", "entity_id"})
	for _, row := range rows {
		_ = cw.Write([]string{row.At.UTC().Format(time.RFC3339), strconv.FormatInt(row.ActorID, 10), row.Action, row.Entity, row.EntityID})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		h.logger.Warn("write csv", slog.Any("error", err))
	}
}

func (h *Handler) parseFilters(r *http.Request) (TimelineFilters, error) {
	q := r.URL.Query()
	to := h.now().UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		parsed, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return TimelineFilters{}, fmt.Errorf("%w: to must be YYYY-MM-DD", errInvalidFilter)
		}
		to = parsed.AddDate(0, 0, 1)
	}
	from := to.Add(-defaultDateRange)
	if v := strings.TrimSpace(q.Get("from")); v != "" {
		parsed, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return TimelineFilters{}, fmt.Errorf("%w: from must be YYYY-MM-DD", errInvalidFilter)
		}
		from = parsed
	}
	if !from.Before(to) || to.Sub(from) > maxDateRange {
		return TimelineFilters{}, fmt.Errorf("%w: range must be positive and at most 90 days", errInvalidFilter)
	}

	filters := TimelineFilters{
		From:   from,
		To:     to,
		Entity: strings.TrimSpace(q.Get("entity")),
		Action: strings.TrimSpace(q.Get("action")),
	}
	for key, dst := range map[string]*int{"page": &filters.Page, "page_size": &filters.PageSize} {
		if v := strings.TrimSpace(q.Get(key)); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return TimelineFilters{}, fmt.Errorf("%w: %s must be a positive integer", errInvalidFilter, key)
			}
			*dst = n
		}
	}
	if v := strings.TrimSpace(q.Get("actor_id")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return TimelineFilters{}, fmt.Errorf("%w: actor_id must be a positive integer", errInvalidFilter)
		}
		filters.ActorID = n
	}
	return filters, nil
}
