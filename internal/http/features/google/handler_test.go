package google

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/recipebox-idm/internal/http/features/common"
	"github.com/tendant/recipebox-idm/pkg/auth"
	"github.com/tendant/recipebox-idm/pkg/domain"
)

const frontend = "http://localhost:5173"

type stubFlow struct {
	identity    *auth.GoogleIdentity
	exchangeErr error
	user        *domain.User
	linkErr     error
}

func (f *stubFlow) AuthCodeURL(state string) string {
	return "https://accounts.google.com/o/oauth2/auth?state=" + url.QueryEscape(state)
}

func (f *stubFlow) Exchange(context.Context, string) (*auth.GoogleIdentity, error) {
	return f.identity, f.exchangeErr
}

func (f *stubFlow) LinkOrCreate(context.Context, auth.GoogleIdentity) (*domain.User, error) {
	return f.user, f.linkErr
}

type stubIssuer struct{}

func (stubIssuer) IssueForUser(user *domain.User) (*domain.Session, error) {
	return &domain.Session{Token: "jwt-token", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func newTestHandler(flow *stubFlow) (*Handler, *MemoryStateStore) {
	states := NewMemoryStateStore(time.Minute)
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), flow, stubIssuer{}, states, frontend+"/", nil)
	return h, states
}

func startFlow(t *testing.T, h *Handler, redirectTo string) string {
	t.Helper()
	target := "/api/auth/google"
	if redirectTo != "" {
		target += "?redirectTo=" + url.QueryEscape(redirectTo)
	}
	rec := httptest.NewRecorder()
	h.Start(rec, httptest.NewRequest(http.MethodGet, target, nil))

	if rec.Code != http.StatusFound {
		t.Fatalf("Start status = %d, want 302", rec.Code)
	}
	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("bad Location: %v", err)
	}
	state := loc.Query().Get("state")
	if state == "" {
		t.Fatal("Start did not pass a state")
	}
	return state
}

func callback(h *Handler, query url.Values) *url.URL {
	rec := httptest.NewRecorder()
	h.Callback(rec, httptest.NewRequest(http.MethodGet, "/api/auth/google/callback?"+query.Encode(), nil))
	loc, _ := url.Parse(rec.Header().Get("Location"))
	return loc
}

func TestCallback_Success(t *testing.T) {
	user := &domain.User{ID: uuid.New(), Name: "Ada", Email: "ada@gmail.com", AuthProvider: domain.ProviderGoogle, IsVerified: true}
	h, states := newTestHandler(&stubFlow{
		identity: &auth.GoogleIdentity{Subject: "g-1", Email: "ada@gmail.com", Verified: true},
		user:     user,
	})
	defer states.Close()

	state := startFlow(t, h, "/recipes/42")
	loc := callback(h, url.Values{"state": {state}, "code": {"auth-code"}})

	if loc.Path != "/auth/callback" || loc.Host != "localhost:5173" {
		t.Fatalf("redirect = %s, want frontend callback", loc)
	}
	q := loc.Query()
	if q.Get("token") != "jwt-token" {
		t.Errorf("token = %q", q.Get("token"))
	}
	if q.Get("redirectTo") != "/recipes/42" {
		t.Errorf("redirectTo = %q", q.Get("redirectTo"))
	}
	var got common.UserResponse
	if err := json.Unmarshal([]byte(q.Get("user")), &got); err != nil {
		t.Fatalf("user param: %v", err)
	}
	if got.ID != user.ID.String() || got.AuthProvider != "google" {
		t.Errorf("user = %+v", got)
	}

	// The state is single use
	loc = callback(h, url.Values{"state": {state}, "code": {"auth-code"}})
	if loc.Path != "/login" || loc.Query().Get("error") != "oauth_failed" {
		t.Errorf("replayed state redirect = %s", loc)
	}
}

func TestCallback_Failures(t *testing.T) {
	tests := []struct {
		name  string
		flow  *stubFlow
		query func(state string) url.Values
	}{
		{
			name:  "provider error",
			flow:  &stubFlow{},
			query: func(state string) url.Values { return url.Values{"state": {state}, "error": {"access_denied"}} },
		},
		{
			name:  "unknown state",
			flow:  &stubFlow{},
			query: func(string) url.Values { return url.Values{"state": {"forged"}, "code": {"c"}} },
		},
		{
			name:  "missing code",
			flow:  &stubFlow{},
			query: func(state string) url.Values { return url.Values{"state": {state}} },
		},
		{
			name:  "exchange fails",
			flow:  &stubFlow{exchangeErr: domain.ErrIdentityProvider},
			query: func(state string) url.Values { return url.Values{"state": {state}, "code": {"c"}} },
		},
		{
			name: "identity conflict",
			flow: &stubFlow{
				identity: &auth.GoogleIdentity{Subject: "g-2", Email: "ada@gmail.com", Verified: true},
				linkErr:  domain.ErrIdentityConflict,
			},
			query: func(state string) url.Values { return url.Values{"state": {state}, "code": {"c"}} },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, states := newTestHandler(tt.flow)
			defer states.Close()

			state := startFlow(t, h, "")
			loc := callback(h, tt.query(state))

			if loc.Path != "/login" || loc.Query().Get("error") != "oauth_failed" {
				t.Errorf("redirect = %s, want login with oauth_failed", loc)
			}
		})
	}
}

func TestSafeRedirect(t *testing.T) {
	tests := map[string]string{
		"":                      "/",
		"/":                     "/",
		"/recipes/42?tab=notes": "/recipes/42?tab=notes",
		"//evil.example.com":    "/",
		"/\\evil.example.com":   "/",
		"https://evil.example":  "/",
		"recipes":               "/",
		"/a\r\nSet-Cookie: x=y": "/",
	}
	for in, want := range tests {
		if got := safeRedirect(in); got != want {
			t.Errorf("safeRedirect(%q) = %q, want %q", in, got, want)
		}
	}
}
