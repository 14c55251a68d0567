package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/recipebox-idm/pkg/domain"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestSessionService(t *testing.T) *SessionService {
	t.Helper()
	svc, err := NewSessionService(SessionConfig{JWTSecret: testSecret, Issuer: "recipebox"})
	require.NoError(t, err)
	return svc
}

func TestNewSessionService_RequiresLongSecret(t *testing.T) {
	_, err := NewSessionService(SessionConfig{JWTSecret: []byte("short")})
	assert.Error(t, err)
}

func TestSessionService_IssueAndValidate(t *testing.T) {
	svc := newTestSessionService(t)
	userID := uuid.New()

	session, err := svc.Issue(userID, "ab@gmail.com")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), session.ExpiresAt, time.Minute)

	identity, err := svc.Validate(session.Token)
	require.NoError(t, err)
	assert.Equal(t, userID, identity.UserID)
	assert.Equal(t, "ab@gmail.com", identity.Email)
}

func TestSessionService_ClaimsShape(t *testing.T) {
	svc := newTestSessionService(t)
	userID := uuid.New()

	session, err := svc.Issue(userID, "ab@gmail.com")
	require.NoError(t, err)

	claims := &SessionClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(session.Token, claims)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.Equal(t, "recipebox", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestSessionService_Expired(t *testing.T) {
	svc := newTestSessionService(t)

	session, err := svc.Issue(uuid.New(), "ab@gmail.com")
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }
	_, err = svc.Validate(session.Token)
	assert.Equal(t, domain.ErrInvalidToken, err)
}

func TestSessionService_InvalidTokens(t *testing.T) {
	svc := newTestSessionService(t)

	other, err := NewSessionService(SessionConfig{JWTSecret: []byte(strings.Repeat("z", 32)), Issuer: "recipebox"})
	require.NoError(t, err)
	foreign, err := other.Issue(uuid.New(), "ab@gmail.com")
	require.NoError(t, err)

	wrongIssuer, err := NewSessionService(SessionConfig{JWTSecret: testSecret, Issuer: "someone-else"})
	require.NoError(t, err)
	misissued, err := wrongIssuer.Issue(uuid.New(), "ab@gmail.com")
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			Issuer:    "recipebox",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	badSubject := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "not-a-uuid",
			Issuer:    "recipebox",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	badSubjectToken, err := badSubject.SignedString(testSecret)
	require.NoError(t, err)

	noExpiry := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: uuid.NewString(),
			Issuer:  "recipebox",
		},
	})
	noExpiryToken, err := noExpiry.SignedString(testSecret)
	require.NoError(t, err)

	tests := map[string]string{
		"garbage":        "not.a.token",
		"empty":          "",
		"wrong secret":   foreign.Token,
		"wrong issuer":   misissued.Token,
		"alg none":       unsigned,
		"bad subject":    badSubjectToken,
		"missing expiry": noExpiryToken,
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Validate(token)
			assert.Equal(t, domain.ErrInvalidToken, err)
		})
	}
}
