package common

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/recipebox-idm/internal/http/middleware"
	"github.com/tendant/recipebox-idm/internal/httputil"
	"github.com/tendant/recipebox-idm/pkg/domain"
)

// SessionIssuer issues session tokens.
type SessionIssuer interface {
	IssueForUser(user *domain.User) (*domain.Session, error)
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Photo        *string   `json:"photo,omitempty"`
	BannerImage  *string   `json:"bannerImage,omitempty"`
	AuthProvider string    `json:"authProvider"`
	PasswordSet  bool      `json:"passwordSet"`
	IsVerified   bool      `json:"isVerified"`
	Favorites    []string  `json:"favorites"`
	CreatedAt    time.Time `json:"createdAt"`
}

// NewUserResponse builds the public view of user.
func NewUserResponse(user *domain.User) UserResponse {
	provider := user.AuthProvider
	if provider == "" {
		provider = domain.ProviderLocal
	}
	favorites := user.Favorites
	if favorites == nil {
		favorites = []string{}
	}
	return UserResponse{
		ID:           user.ID.String(),
		Name:         user.Name,
		Email:        user.Email,
		Photo:        user.Photo,
		BannerImage:  user.BannerImage,
		AuthProvider: string(provider),
		PasswordSet:  user.PasswordSet,
		IsVerified:   user.IsVerified,
		Favorites:    favorites,
		CreatedAt:    user.CreatedAt,
	}
}

// SessionResponse carries a new session token.
type SessionResponse struct {
	Message   string       `json:"message"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      UserResponse `json:"user"`
}

// MessageResponse is a bare success message.
type MessageResponse struct {
	Message string `json:"message"`
}

// UserID returns the authenticated user or writes 401.
func UserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
	}
	return userID, ok
}
