package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/staffora/staffora/internal/platform/httpx"
	"github.com/staffora/staffora/internal/rbac"
	"github.com/staffora/staffora/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	authorizer     *rbac.Authorizer
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, authorizer *rbac.Authorizer, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	return &Handler{
		logger:         logger,
		service:        service,
		authorizer:     authorizer,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Post("/otp/request", h.handleOTPRequest)
	r.Post("/otp/verify", h.handleOTPVerify)
	r.Get("/me", h.handleMe)
	r.Get("/csrf", h.handleCSRF)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type otpRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type otpVerifyRequest struct {
	ChallengeID string `json:"challenge_id" validate:"required,uuid"`
	Code        string `json:"code" validate:"required,numeric"`
}

type userView struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	RoleID       string `json:"role_id"`
	DepartmentID *int64 `json:"department_id,omitempty"`
}

type loginResponse struct {
	Token     Token    `json:"token"`
	CSRFToken string   `json:"csrf_token,omitempty"`
	User      userView `json:"user"`
}

func newUserView(u *User) userView {
	return userView{ID: u.ID, Email: u.Email, RoleID: u.RoleID, DepartmentID: u.DepartmentID}
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

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}
	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", shared.ErrInvalidCredentials.Error())
		return
	}
	token, err := h.service.IssueToken(user)
	if err != nil {
		h.logger.Error("issue token", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	resp := loginResponse{Token: token, User: newUserView(user)}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		if err := h.sessionManager.Renew(r.Context(), sess); err != nil {
			h.logger.Warn("renew session", slog.Any("error", err))
		}
		subject := user.Subject()
		sess.SetPrincipal(subject.UserID, subject.RoleID, subject.DepartmentID)
		resp.CSRFToken, _ = h.csrfManager.EnsureToken(sess)
		expiresAt := time.Now().Add(h.sessionManager.TTL())
		if err := h.service.RegisterSession(r.Context(), sess.ID, user.ID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
			h.logger.Warn("register session", slog.Any("error", err))
		}
	}
	h.logger.Info("login", slog.Int64("user_id", user.ID), slog.String("role_id", user.RoleID))
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
			h.logger.Warn("remove session", slog.Any("error", err))
		}
		h.sessionManager.Destroy(sess)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleOTPRequest(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if !h.decode(w, r, &req) {
		return
	}
	challengeID, err := h.service.RequestOTP(r.Context(), req.Email)
	if err != nil {
		h.logger.Error("request otp", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"challenge_id": challengeID})
}

func (h *Handler) handleOTPVerify(w http.ResponseWriter, r *http.Request) {
	var req otpVerifyRequest
	if !h.decode(w, r, &req) {
		return
	}
	user, token, err := h.service.VerifyOTP(r.Context(), req.ChallengeID, req.Code)
	switch {
	case errors.Is(err, ErrOTPLocked):
		httpx.Problem(w, http.StatusTooManyRequests, "Too Many Attempts", err.Error())
		return
	case errors.Is(err, ErrOTPInvalid):
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
		return
	case err != nil:
		h.logger.Error("verify otp", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, loginResponse{Token: token, User: newUserView(user)})
}

type meResponse struct {
	UserID       string                  `json:"user_id"`
	RoleID       string                  `json:"role_id"`
	DepartmentID string                  `json:"department_id,omitempty"`
	Level        int                     `json:"level"`
	Permissions  []rbac.ScopedPermission `json:"permissions"`
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	subject, ok := rbac.SubjectFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	httpx.JSON(w, http.StatusOK, meResponse{
		UserID:       subject.UserID,
		RoleID:       subject.RoleID,
		DepartmentID: subject.DepartmentID,
		Level:        h.authorizer.Level(subject),
		Permissions:  h.authorizer.Grants(subject),
	})
}

func (h *Handler) handleCSRF(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	token, err := h.csrfManager.EnsureToken(sess)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	httpx.JSON(w, http.StatusOK, map[string]string{"csrf_token": token})
}
