package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/recipebox-idm/internal/config"
	"github.com/tendant/recipebox-idm/internal/metrics"
	"github.com/tendant/recipebox-idm/pkg/auth"
	"github.com/tendant/recipebox-idm/pkg/domain"
)

var testUser = &domain.User{
	ID:         uuid.MustParse("6f1c0f55-6c55-4a53-9d4a-2a5b7c9f0e11"),
	Name:       "Ada",
	Email:      "ada@example.com",
	IsVerified: true,
}

type stubCodes struct{}

func (stubCodes) RequestCode(context.Context, auth.RequestCodeInput) error { return nil }
func (stubCodes) VerifyCode(context.Context, string, string) (*domain.User, error) {
	return testUser, nil
}

type stubPasswords struct{}

func (stubPasswords) Login(context.Context, string, string) (*domain.User, error) {
	return nil, domain.ErrInvalidCredentials
}
func (stubPasswords) SetPassword(context.Context, uuid.UUID, string) (*domain.User, error) {
	return testUser, nil
}
func (stubPasswords) ChangePassword(context.Context, uuid.UUID, string, string) error {
	return nil
}
func (stubPasswords) Status(context.Context, uuid.UUID) (*auth.PasswordStatus, error) {
	return &auth.PasswordStatus{PasswordSet: true, AuthProvider: domain.ProviderLocal}, nil
}

type stubProfiles struct{}

func (stubProfiles) Get(context.Context, uuid.UUID) (*domain.User, error) { return testUser, nil }
func (stubProfiles) Update(context.Context, uuid.UUID, domain.ProfileUpdate) (*domain.User, error) {
	return testUser, nil
}

type stubFavorites struct{}

func (stubFavorites) Toggle(context.Context, uuid.UUID, string) (*auth.ToggleResult, error) {
	return &auth.ToggleResult{Favorited: true, Favorites: []string{"r1"}}, nil
}
func (stubFavorites) List(context.Context, uuid.UUID) ([]string, error) {
	return []string{"r1"}, nil
}

func newTestRouter(t *testing.T, m *metrics.Metrics) (http.Handler, *auth.SessionService) {
	t.Helper()
	sessions, err := auth.NewSessionService(auth.SessionConfig{
		TTL:       time.Hour,
		JWTSecret: []byte("0123456789abcdef0123456789abcdef"),
		Issuer:    "recipebox",
	})
	require.NoError(t, err)

	router := NewRouter(RouterConfig{
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Sessions:    sessions,
		Codes:       stubCodes{},
		Passwords:   stubPasswords{},
		Profiles:    stubProfiles{},
		Favorites:   stubFavorites{},
		FrontendURL: "http://localhost:5173",
		Metrics:     m,
		Validation:  config.ValidationConfig{MaxRequestBodySize: 1 << 20},
		CORS:        config.CORSConfig{AllowedOrigins: []string{"http://localhost:5173"}, MaxAge: 300},
	})
	return router, sessions
}

func TestRouter_Health(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRouter_ProtectedRoutes(t *testing.T) {
	router, sessions := newTestRouter(t, nil)
	session, err := sessions.IssueForUser(testUser)
	require.NoError(t, err)

	routes := []struct {
		method, path string
	}{
		{http.MethodGet, "/api/auth/verify"},
		{http.MethodGet, "/api/auth/profile"},
		{http.MethodGet, "/api/auth/password-status"},
		{http.MethodGet, "/api/auth/favorites"},
		{http.MethodPost, "/api/auth/favorites/r1"},
	}
	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(rt.method, rt.path, nil))
			assert.Equal(t, http.StatusUnauthorized, rec.Code)

			req := httptest.NewRequest(rt.method, rt.path, nil)
			req.Header.Set("Authorization", "Bearer "+session.Token)
			rec = httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		})
	}
}

func TestRouter_PublicRoutes(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	body := `{"name":"Ada","email":"ada@example.com","password":"secret1"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/send-code", strings.NewReader(body)))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/verify-code",
		strings.NewReader(`{"email":"ada@example.com","code":"123456"}`)))
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"ada@example.com","password":"wrong1"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_GoogleNotMountedWithoutConfig(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/google", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "not found", resp["message"])
}

func TestRouter_CORSPreflight(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/profile", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestRouter_Metrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	router, _ := newTestRouter(t, m)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `recipebox_idm_http_requests_total{method="GET",path="/health",status="200"} 1`)
}
