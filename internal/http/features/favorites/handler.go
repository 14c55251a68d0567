package favorites

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tendant/recipebox-idm/internal/http/features/common"
	"github.com/tendant/recipebox-idm/internal/httputil"
	"github.com/tendant/recipebox-idm/internal/metrics"
	"github.com/tendant/recipebox-idm/pkg/auth"
)

// Service toggles and lists favorites.
type Service interface {
	Toggle(ctx context.Context, userID uuid.UUID, recipeID string) (*auth.ToggleResult, error)
	List(ctx context.Context, userID uuid.UUID) ([]string, error)
}

// Handler handles favorite recipe endpoints.
type Handler struct {
	logger    *slog.Logger
	favorites Service
	metrics   *metrics.Metrics
}

// NewHandler creates a new favorites handler.
func NewHandler(logger *slog.Logger, favorites Service, m *metrics.Metrics) *Handler {
	return &Handler{logger: logger, favorites: favorites, metrics: m}
}

// ListResponse lists favorite recipe IDs.
type ListResponse struct {
	Favorites []string `json:"favorites"`
}

// ToggleResponse is the state after a toggle.
type ToggleResponse struct {
	Message   string   `json:"message"`
	Favorited bool     `json:"favorited"`
	Favorites []string `json:"favorites"`
}

// List returns the current user's favorites.
// GET /api/auth/favorites
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(w, r)
	if !ok {
		return
	}

	favorites, err := h.favorites.List(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, h.logger, err, "user_id", userID)
		return
	}
	if favorites == nil {
		favorites = []string{}
	}

	httputil.JSON(w, http.StatusOK, ListResponse{Favorites: favorites})
}

// Toggle adds or removes a recipe from the current user's favorites.
// POST /api/auth/favorites/{recipeID}
func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(w, r)
	if !ok {
		return
	}
	recipeID := chi.URLParam(r, "recipeID")

	result, err := h.favorites.Toggle(r.Context(), userID, recipeID)
	h.metrics.AuthEvent(metrics.EventFavoriteToggle, err)
	if err != nil {
		httputil.WriteError(w, h.logger, err, "user_id", userID, "recipe_id", recipeID)
		return
	}

	message := "removed from favorites"
	if result.Favorited {
		message = "added to favorites"
	}
	favorites := result.Favorites
	if favorites == nil {
		favorites = []string{}
	}

	httputil.JSON(w, http.StatusOK, ToggleResponse{
		Message:   message,
		Favorited: result.Favorited,
		Favorites: favorites,
	})
}
