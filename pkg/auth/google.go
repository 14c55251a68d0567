package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/recipebox-idm/pkg/domain"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleConfig holds Google OAuth configuration.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string

	// Endpoint and UserInfoURL default to Google's.
	Endpoint    oauth2.Endpoint
	UserInfoURL string
}

// GoogleIdentity is the profile Google returns after the handshake.
type GoogleIdentity struct {
	Subject  string `json:"id"`
	Email    string `json:"email"`
	Verified bool   `json:"verified_email"`
	Name     string `json:"name"`
	Picture  string `json:"picture"`
}

// GoogleService handles the Google OAuth handshake and links the resulting
// identity to an account.
type GoogleService struct {
	oauth       *oauth2.Config
	userInfoURL string
	users       UserStore
	httpClient  *http.Client
	now         func() time.Time
}

// NewGoogleService creates a new Google service.
func NewGoogleService(config GoogleConfig, users UserStore) *GoogleService {
	endpoint := config.Endpoint
	if endpoint.AuthURL == "" {
		endpoint = google.Endpoint
	}
	userInfoURL := config.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = googleUserInfoURL
	}

	return &GoogleService{
		oauth: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURI,
			Endpoint:     endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: userInfoURL,
		users:       users,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		now:         time.Now,
	}
}

// AuthCodeURL returns the Google consent URL carrying state.
func (s *GoogleService) AuthCodeURL(state string) string {
	return s.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

// Exchange trades an authorization code for the caller's Google profile.
// Every failure wraps domain.ErrIdentityProvider.
func (s *GoogleService) Exchange(ctx context.Context, code string) (*GoogleIdentity, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: token exchange: %w", domain.ErrIdentityProvider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIdentityProvider, err)
	}

	resp, err := s.oauth.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: userinfo: %w", domain.ErrIdentityProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: userinfo status %d: %s", domain.ErrIdentityProvider, resp.StatusCode, string(body))
	}

	var identity GoogleIdentity
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		return nil, fmt.Errorf("%w: decode userinfo: %w", domain.ErrIdentityProvider, err)
	}
	if identity.Subject == "" || identity.Email == "" {
		return nil, fmt.Errorf("%w: userinfo missing id or email", domain.ErrIdentityProvider)
	}
	if !identity.Verified {
		return nil, fmt.Errorf("%w: google email is not verified", domain.ErrIdentityProvider)
	}

	return &identity, nil
}

// LinkOrCreate resolves a Google identity to an account: first by Google
// id, then by email, creating a verified account when neither matches.
// Calling it again with the same identity returns the same account.
func (s *GoogleService) LinkOrCreate(ctx context.Context, identity GoogleIdentity) (*domain.User, error) {
	identity.Email = NormalizeEmail(identity.Email)
	if identity.Subject == "" || identity.Email == "" {
		return nil, fmt.Errorf("%w: identity missing id or email", domain.ErrIdentityProvider)
	}

	user, err := s.users.LinkIdentity(ctx, identity.Subject, identity.Email, mergeGoogleIdentity(identity, s.now()))
	if err != nil {
		if errors.Is(err, domain.ErrIdentityConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrIdentityLinkFailed, err)
	}
	return user, nil
}

// mergeGoogleIdentity returns the link rules applied to a matched or new account.
func mergeGoogleIdentity(identity GoogleIdentity, now time.Time) domain.LinkFunc {
	return func(u *domain.User) (*domain.User, error) {
		if u == nil {
			return newGoogleUser(identity, now), nil
		}

		if u.GoogleID == nil {
			subject := identity.Subject
			u.GoogleID = &subject
		} else if *u.GoogleID != identity.Subject {
			return nil, domain.ErrIdentityConflict
		}

		if identity.Picture != "" && u.ProviderPhotoReplaceable() {
			picture := identity.Picture
			u.Photo = &picture
			u.PhotoSource = domain.PhotoSourceProvider
		}

		if !u.IsVerified {
			// Nobody proved they own the pending name and password, so the
			// account starts over as a Google account.
			u.Name = googleName(identity)
			u.PasswordHash = nil
			u.PasswordSet = false
			u.AuthProvider = domain.ProviderGoogle
			u.IsVerified = true
			u.ClearOTP()
		}

		if !u.PasswordSet && u.HasPassword() {
			u.PasswordSet = true
		}

		if u.AuthProvider == "" {
			u.AuthProvider = domain.ProviderGoogle
		}

		u.UpdatedAt = now
		return u, nil
	}
}

func newGoogleUser(identity GoogleIdentity, now time.Time) *domain.User {
	subject := identity.Subject

	user := &domain.User{
		ID:           uuid.New(),
		Name:         googleName(identity),
		Email:        identity.Email,
		PasswordSet:  false,
		AuthProvider: domain.ProviderGoogle,
		GoogleID:     &subject,
		IsVerified:   true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if identity.Picture != "" {
		picture := identity.Picture
		user.Photo = &picture
		user.PhotoSource = domain.PhotoSourceProvider
	}
	return user
}

// googleName falls back to the local part of the email.
func googleName(identity GoogleIdentity) string {
	if name := SanitizeName(identity.Name); name != "" {
		return name
	}
	return identity.Email[:max(strings.Index(identity.Email, "@"), 0)]
}
