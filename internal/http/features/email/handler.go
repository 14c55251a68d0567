package email

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/tendant/recipebox-idm/internal/http/features/common"
	"github.com/tendant/recipebox-idm/internal/httputil"
	"github.com/tendant/recipebox-idm/internal/metrics"
	"github.com/tendant/recipebox-idm/pkg/auth"
	"github.com/tendant/recipebox-idm/pkg/domain"
)

// CodeService sends and checks signup verification codes.
type CodeService interface {
	RequestCode(ctx context.Context, in auth.RequestCodeInput) error
	VerifyCode(ctx context.Context, email, code string) (*domain.User, error)
}

// Handler handles email code signup endpoints.
type Handler struct {
	logger   *slog.Logger
	codes    CodeService
	sessions common.SessionIssuer
	metrics  *metrics.Metrics
}

// NewHandler creates a new email signup handler.
func NewHandler(logger *slog.Logger, codes CodeService, sessions common.SessionIssuer, m *metrics.Metrics) *Handler {
	return &Handler{
		logger:   logger,
		codes:    codes,
		sessions: sessions,
		metrics:  m,
	}
}

// SendCodeRequest starts a local signup.
type SendCodeRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// VerifyCodeRequest completes a local signup.
type VerifyCodeRequest struct {
	Email string `json:"email" validate:"required"`
	Code  string `json:"code" validate:"required"`
}

// SendCode stores a pending account and mails its code.
// POST /api/auth/send-code
func (h *Handler) SendCode(w http.ResponseWriter, r *http.Request) {
	h.requestCode(w, r, "verification code sent to your email")
}

// ResendCode replaces the pending code with a new one.
// POST /api/auth/resend-code
func (h *Handler) ResendCode(w http.ResponseWriter, r *http.Request) {
	h.requestCode(w, r, "a new verification code has been sent")
}

func (h *Handler) requestCode(w http.ResponseWriter, r *http.Request, message string) {
	var req SendCodeRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	err := h.codes.RequestCode(r.Context(), auth.RequestCodeInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	h.metrics.AuthEvent(metrics.EventCodeSent, err)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, common.MessageResponse{Message: message})
}

// VerifyCode verifies the account and starts a session.
// POST /api/auth/verify-code
func (h *Handler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req VerifyCodeRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	user, err := h.codes.VerifyCode(r.Context(), req.Email, req.Code)
	h.metrics.AuthEvent(metrics.EventCodeVerified, err)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	session, err := h.sessions.IssueForUser(user)
	if err != nil {
		httputil.WriteError(w, h.logger, err, "user_id", user.ID)
		return
	}

	h.logger.Info("user verified", "user_id", user.ID)

	httputil.JSON(w, http.StatusCreated, common.SessionResponse{
		Message:   "account verified",
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		User:      common.NewUserResponse(user),
	})
}
