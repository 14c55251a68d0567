package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tendant/recipebox-idm/pkg/domain"
)

const (
	// DefaultSessionTTL is the lifetime of an issued token.
	DefaultSessionTTL = 7 * 24 * time.Hour

	minSecretLen = 32
)

// SessionConfig holds session configuration.
type SessionConfig struct {
	TTL       time.Duration
	JWTSecret []byte
	Issuer    string
}

// SessionService mints and validates stateless bearer tokens. Expiry is
// the only way a token stops being valid.
type SessionService struct {
	config SessionConfig
	now    func() time.Time
}

// NewSessionService creates a new session service.
func NewSessionService(config SessionConfig) (*SessionService, error) {
	if len(config.JWTSecret) < minSecretLen {
		return nil, errors.New("jwt secret must be at least 32 bytes")
	}
	if config.TTL == 0 {
		config.TTL = DefaultSessionTTL
	}
	return &SessionService{
		config: config,
		now:    time.Now,
	}, nil
}

// SessionClaims represents the claims in a session token.
type SessionClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

// Issue signs a token for the user.
func (s *SessionService) Issue(userID uuid.UUID, email string) (*domain.Session, error) {
	now := s.now()
	expiresAt := now.Add(s.config.TTL)

	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID.String(),
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID: userID.String(),
		Email:  email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.config.JWTSecret)
	if err != nil {
		return nil, err
	}

	return &domain.Session{Token: signed, ExpiresAt: expiresAt}, nil
}

// IssueForUser is Issue for a loaded account.
func (s *SessionService) IssueForUser(user *domain.User) (*domain.Session, error) {
	return s.Issue(user.ID, user.Email)
}

// Validate checks the signature, expiry and issuer of a token and returns
// the identity it carries.
func (s *SessionService) Validate(tokenString string) (*domain.Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrInvalidToken
		}
		return s.config.JWTSecret, nil
	}, opts...)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, domain.ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	return &domain.Identity{UserID: userID, Email: claims.Email}, nil
}
