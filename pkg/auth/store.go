package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/recipebox-idm/pkg/domain"
)

// UserStore persists users. Every method is atomic with respect to the
// user record it touches.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// UpsertPending creates or refreshes an unverified signup. It returns
	// domain.ErrUserAlreadyExists when a verified account owns the email.
	UpsertPending(ctx context.Context, p domain.PendingSignup) (*domain.User, error)
	// ConsumeOTP verifies the account holding email and codeHash if the
	// code has not expired at now, clearing the code. It returns
	// domain.ErrInvalidOrExpiredCode on any mismatch.
	ConsumeOTP(ctx context.Context, email, codeHash string, now time.Time) (*domain.User, error)
	// ClearOTP removes the pending code if it still equals codeHash.
	ClearOTP(ctx context.Context, userID uuid.UUID, codeHash string) error

	// LinkIdentity locks the account matching googleID, or failing that
	// email, applies merge and saves the result in one transaction.
	LinkIdentity(ctx context.Context, googleID, email string, merge domain.LinkFunc) (*domain.User, error)

	// SetPasswordHash stores the first password of an account. It returns
	// domain.ErrPasswordAlreadySet when one is already present.
	SetPasswordHash(ctx context.Context, userID uuid.UUID, hash string) error
	// ReplacePasswordHash swaps oldHash for newHash. It returns
	// domain.ErrInvalidCredentials when the stored hash is no longer oldHash.
	ReplacePasswordHash(ctx context.Context, userID uuid.UUID, oldHash, newHash string) error

	UpdateProfile(ctx context.Context, userID uuid.UUID, upd domain.ProfileUpdate) (*domain.User, error)
}

// FavoriteStore persists the favorite set of each user.
type FavoriteStore interface {
	// ToggleFavorite flips membership of recipeID and returns the new state
	// and the full set, serialized per user.
	ToggleFavorite(ctx context.Context, userID uuid.UUID, recipeID string) (bool, []string, error)
	ListFavorites(ctx context.Context, userID uuid.UUID) ([]string, error)
}

// RecipeResolver checks recipe references.
type RecipeResolver interface {
	RecipeExists(ctx context.Context, recipeID string) (bool, error)
}

// Notifier delivers a message to an address.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}
