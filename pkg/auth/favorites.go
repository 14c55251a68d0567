package auth

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/tendant/recipebox-idm/pkg/domain"
)

// ToggleResult is the favorite state after a toggle.
type ToggleResult struct {
	Favorited bool
	Favorites []string
}

// FavoritesService manages the favorite recipes of a user.
type FavoritesService struct {
	favorites FavoriteStore
	recipes   RecipeResolver
}

// NewFavoritesService creates a new favorites service.
func NewFavoritesService(favorites FavoriteStore, recipes RecipeResolver) *FavoritesService {
	return &FavoritesService{
		favorites: favorites,
		recipes:   recipes,
	}
}

// Toggle adds recipeID to the user's favorites if absent and removes it if
// present. Repeating the call flips the state again; callers that need
// "ensure favorited" semantics must check the current state first.
func (s *FavoritesService) Toggle(ctx context.Context, userID uuid.UUID, recipeID string) (*ToggleResult, error) {
	recipeID = strings.TrimSpace(recipeID)
	if recipeID == "" {
		return nil, domain.NewFieldError("recipeId", nil, "recipe id is required")
	}

	exists, err := s.recipes.RecipeExists(ctx, recipeID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrRecipeNotFound
	}

	favorited, favorites, err := s.favorites.ToggleFavorite(ctx, userID, recipeID)
	if err != nil {
		return nil, err
	}

	return &ToggleResult{Favorited: favorited, Favorites: favorites}, nil
}

// List returns the user's favorite recipe ids.
func (s *FavoritesService) List(ctx context.Context, userID uuid.UUID) ([]string, error) {
	return s.favorites.ListFavorites(ctx, userID)
}
