package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/recipebox-idm/pkg/domain"
)

// FavoritesRepository stores user favorites as rows of user_favorites.
type FavoritesRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewFavoritesRepository creates a new favorites repository.
func NewFavoritesRepository(db *sql.DB) *FavoritesRepository {
	return &FavoritesRepository{db: db, now: time.Now}
}

// ToggleFavorite removes recipeID from the user's favorites if present and
// adds it otherwise. The user row is locked so toggles of one user serialize.
func (r *FavoritesRepository) ToggleFavorite(ctx context.Context, userID uuid.UUID, recipeID string) (bool, []string, error) {
	var favorited bool
	var favorites []string

	err := Tx(ctx, r.db, func(tx *sql.Tx) error {
		var locked uuid.UUID
		err := tx.QueryRowContext(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&locked)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("lock user: %w", err)
		}

		result, err := tx.ExecContext(ctx,
			`DELETE FROM user_favorites WHERE user_id = $1 AND recipe_id = $2`, userID, recipeID)
		if err != nil {
			return fmt.Errorf("remove favorite: %w", err)
		}
		removed, err := result.RowsAffected()
		if err != nil {
			return err
		}

		if removed == 0 {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO user_favorites (user_id, recipe_id, created_at) VALUES ($1, $2, $3)`,
				userID, recipeID, r.now())
			if isForeignKeyViolation(err) {
				return domain.ErrRecipeNotFound
			}
			if err != nil {
				return fmt.Errorf("add favorite: %w", err)
			}
			favorited = true
		}

		favorites, err = listFavorites(ctx, tx, userID)
		return err
	})
	if err != nil {
		return false, nil, err
	}
	return favorited, favorites, nil
}

// ListFavorites returns the user's favorite recipe IDs, oldest first.
func (r *FavoritesRepository) ListFavorites(ctx context.Context, userID uuid.UUID) ([]string, error) {
	return listFavorites(ctx, r.db, userID)
}

func listFavorites(ctx context.Context, q DBTX, userID uuid.UUID) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT recipe_id FROM user_favorites WHERE user_id = $1 ORDER BY created_at, recipe_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	defer rows.Close()

	favorites := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		favorites = append(favorites, id)
	}
	return favorites, rows.Err()
}
