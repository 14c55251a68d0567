package auth

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/tendant/recipebox-idm/pkg/domain"
)

const maxMediaRefLength = 2048

// ProfileService reads and edits account profiles.
type ProfileService struct {
	users     UserStore
	favorites FavoriteStore
}

// NewProfileService creates a new profile service.
func NewProfileService(users UserStore, favorites FavoriteStore) *ProfileService {
	return &ProfileService{users: users, favorites: favorites}
}

// Get returns the user with favorites loaded.
func (s *ProfileService) Get(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	favorites, err := s.favorites.ListFavorites(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Favorites = favorites

	return user, nil
}

// Update applies the non-nil fields of upd. A photo set here counts as an
// upload and is never replaced by a provider photo.
func (s *ProfileService) Update(ctx context.Context, userID uuid.UUID, upd domain.ProfileUpdate) (*domain.User, error) {
	if upd.Name != nil {
		name, err := validateName(*upd.Name)
		if err != nil {
			return nil, err
		}
		upd.Name = &name
	}
	if upd.Photo != nil {
		if err := validateMediaRef("photo", *upd.Photo); err != nil {
			return nil, err
		}
	}
	if upd.BannerImage != nil {
		if err := validateMediaRef("bannerImage", *upd.BannerImage); err != nil {
			return nil, err
		}
	}

	if upd.IsEmpty() {
		return s.Get(ctx, userID)
	}

	if _, err := s.users.UpdateProfile(ctx, userID, upd); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

func validateMediaRef(field, ref string) error {
	if strings.TrimSpace(ref) == "" {
		return domain.NewFieldError(field, nil, "%s must not be empty", field)
	}
	if len(ref) > maxMediaRefLength {
		return domain.NewFieldError(field, nil, "%s must be at most %d characters long", field, maxMediaRefLength)
	}
	if strings.ContainsAny(ref, "\x00\r\n") {
		return domain.NewFieldError(field, nil, "%s contains invalid characters", field)
	}
	return nil
}
