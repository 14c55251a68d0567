package me

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/tendant/recipebox-idm/internal/http/features/common"
	"github.com/tendant/recipebox-idm/internal/httputil"
	"github.com/tendant/recipebox-idm/pkg/domain"
)

// ProfileService reads and edits the current user's profile.
type ProfileService interface {
	Get(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	Update(ctx context.Context, userID uuid.UUID, upd domain.ProfileUpdate) (*domain.User, error)
}

// Handler handles user profile endpoints.
type Handler struct {
	logger   *slog.Logger
	profiles ProfileService
}

// NewHandler creates a new me handler.
func NewHandler(logger *slog.Logger, profiles ProfileService) *Handler {
	return &Handler{
		logger:   logger,
		profiles: profiles,
	}
}

// VerifyResponse confirms a session token.
type VerifyResponse struct {
	Valid bool                `json:"valid"`
	User  common.UserResponse `json:"user"`
}

// ProfileResponse wraps the profile.
type ProfileResponse struct {
	Message string              `json:"message,omitempty"`
	User    common.UserResponse `json:"user"`
}

// UpdateRequest represents a profile update request. Absent fields are unchanged.
type UpdateRequest struct {
	Name        *string `json:"name,omitempty"`
	Photo       *string `json:"photo,omitempty"`
	BannerImage *string `json:"bannerImage,omitempty"`
}

// Verify confirms the token still maps to an account.
// GET /api/auth/verify
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	httputil.JSON(w, http.StatusOK, VerifyResponse{Valid: true, User: common.NewUserResponse(user)})
}

// GetProfile returns the current user's profile.
// GET /api/auth/profile
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	httputil.JSON(w, http.StatusOK, ProfileResponse{User: common.NewUserResponse(user)})
}

// UpdateProfile updates the current user's profile.
// PUT /api/auth/profile
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(w, r)
	if !ok {
		return
	}

	var req UpdateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	user, err := h.profiles.Update(r.Context(), userID, domain.ProfileUpdate{
		Name:        req.Name,
		Photo:       req.Photo,
		BannerImage: req.BannerImage,
	})
	if err != nil {
		httputil.WriteError(w, h.logger, err, "user_id", userID)
		return
	}

	httputil.JSON(w, http.StatusOK, ProfileResponse{
		Message: "profile updated successfully",
		User:    common.NewUserResponse(user),
	})
}

func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) (*domain.User, bool) {
	userID, ok := common.UserID(w, r)
	if !ok {
		return nil, false
	}

	user, err := h.profiles.Get(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, h.logger, err, "user_id", userID)
		return nil, false
	}
	return user, true
}
