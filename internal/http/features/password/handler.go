package password

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/tendant/recipebox-idm/internal/http/features/common"
	"github.com/tendant/recipebox-idm/internal/httputil"
	"github.com/tendant/recipebox-idm/internal/metrics"
	"github.com/tendant/recipebox-idm/pkg/auth"
	"github.com/tendant/recipebox-idm/pkg/domain"
)

// Service is the password lifecycle used by the handler.
type Service interface {
	Login(ctx context.Context, email, password string) (*domain.User, error)
	SetPassword(ctx context.Context, userID uuid.UUID, newPassword string) (*domain.User, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error
	Status(ctx context.Context, userID uuid.UUID) (*auth.PasswordStatus, error)
}

// Handler handles password authentication endpoints.
type Handler struct {
	logger    *slog.Logger
	passwords Service
	sessions  common.SessionIssuer
	metrics   *metrics.Metrics
}

// NewHandler creates a new password handler.
func NewHandler(logger *slog.Logger, passwords Service, sessions common.SessionIssuer, m *metrics.Metrics) *Handler {
	return &Handler{
		logger:    logger,
		passwords: passwords,
		sessions:  sessions,
		metrics:   m,
	}
}

// LoginRequest represents a login request.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// SetPasswordRequest sets the first password of an account.
type SetPasswordRequest struct {
	Password string `json:"password" validate:"required"`
}

// ChangePasswordRequest replaces an existing password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
}

// StatusResponse describes the credentials of the account. HasPassword and
// HasGoogleAuth are the names the web client reads.
type StatusResponse struct {
	HasPassword   bool   `json:"hasPassword"`
	HasGoogleAuth bool   `json:"hasGoogleAuth"`
	PasswordSet   bool   `json:"passwordSet"`
	AuthProvider  string `json:"authProvider"`
}

// SetPasswordResponse returns the account with its new password state.
type SetPasswordResponse struct {
	Message string              `json:"message"`
	User    common.UserResponse `json:"user"`
}

// Login authenticates with email and password.
// POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	user, err := h.passwords.Login(r.Context(), req.Email, req.Password)
	h.metrics.AuthEvent(metrics.EventLogin, err)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	session, err := h.sessions.IssueForUser(user)
	if err != nil {
		httputil.WriteError(w, h.logger, err, "user_id", user.ID)
		return
	}

	httputil.JSON(w, http.StatusOK, common.SessionResponse{
		Message:   "login successful",
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		User:      common.NewUserResponse(user),
	})
}

// Status reports whether the account has a password.
// GET /api/auth/password-status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(w, r)
	if !ok {
		return
	}

	status, err := h.passwords.Status(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, h.logger, err, "user_id", userID)
		return
	}

	httputil.JSON(w, http.StatusOK, StatusResponse{
		HasPassword:   status.PasswordSet,
		HasGoogleAuth: status.HasGoogle,
		PasswordSet:   status.PasswordSet,
		AuthProvider:  string(status.AuthProvider),
	})
}

// SetPassword sets a password on an account that has none.
// POST /api/auth/set-password
func (h *Handler) SetPassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(w, r)
	if !ok {
		return
	}

	var req SetPasswordRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	user, err := h.passwords.SetPassword(r.Context(), userID, req.Password)
	h.metrics.AuthEvent(metrics.EventPasswordSet, err)
	if err != nil {
		httputil.WriteError(w, h.logger, err, "user_id", userID)
		return
	}

	h.logger.Info("password set", "user_id", userID)
	httputil.JSON(w, http.StatusOK, SetPasswordResponse{
		Message: "password set successfully",
		User:    common.NewUserResponse(user),
	})
}

// ChangePassword replaces the password after checking the current one.
// POST /api/auth/change-password
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(w, r)
	if !ok {
		return
	}

	var req ChangePasswordRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	err := h.passwords.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword)
	h.metrics.AuthEvent(metrics.EventPasswordChange, err)
	if err != nil {
		httputil.WriteError(w, h.logger, err, "user_id", userID)
		return
	}

	h.logger.Info("password changed", "user_id", userID)
	httputil.JSON(w, http.StatusOK, common.MessageResponse{Message: "password changed successfully"})
}
