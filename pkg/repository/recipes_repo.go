package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// RecipesRepository resolves recipe references.
type RecipesRepository struct {
	db *sql.DB
}

// NewRecipesRepository creates a new recipes repository.
func NewRecipesRepository(db *sql.DB) *RecipesRepository {
	return &RecipesRepository{db: db}
}

// RecipeExists reports whether a recipe with the given ID exists.
func (r *RecipesRepository) RecipeExists(ctx context.Context, recipeID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM recipes WHERE id = $1)`, recipeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check recipe: %w", err)
	}
	return exists, nil
}
