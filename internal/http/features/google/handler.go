package google

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/recipebox-idm/internal/http/features/common"
	"github.com/tendant/recipebox-idm/internal/metrics"
	"github.com/tendant/recipebox-idm/pkg/auth"
	"github.com/tendant/recipebox-idm/pkg/domain"
)

// Flow is the Google handshake and account linking.
type Flow interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GoogleIdentity, error)
	LinkOrCreate(ctx context.Context, identity auth.GoogleIdentity) (*domain.User, error)
}

// Handler handles Google OAuth endpoints.
type Handler struct {
	logger      *slog.Logger
	flow        Flow
	sessions    common.SessionIssuer
	states      StateStore
	frontendURL string
	metrics     *metrics.Metrics
	now         func() time.Time
}

// NewHandler creates a new Google handler.
func NewHandler(
	logger *slog.Logger,
	flow Flow,
	sessions common.SessionIssuer,
	states StateStore,
	frontendURL string,
	m *metrics.Metrics,
) *Handler {
	return &Handler{
		logger:      logger,
		flow:        flow,
		sessions:    sessions,
		states:      states,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		metrics:     m,
		now:         time.Now,
	}
}

// Start initiates the Google OAuth flow.
// GET /api/auth/google?redirectTo=/path
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	key := uuid.NewString()
	state := OAuthState{
		RedirectTo: safeRedirect(r.URL.Query().Get("redirectTo")),
		CreatedAt:  h.now(),
	}

	if err := h.states.Save(r.Context(), key, state); err != nil {
		h.logger.Error("failed to save oauth state", "error", err)
		h.fail(w, r)
		return
	}

	http.Redirect(w, r, h.flow.AuthCodeURL(key), http.StatusFound)
}

// Callback completes the flow and hands the session to the frontend.
// GET /api/auth/google/callback
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		h.logger.Warn("google denied authorization", "error", e)
		h.fail(w, r)
		return
	}

	key, code := q.Get("state"), q.Get("code")
	if key == "" || code == "" {
		h.fail(w, r)
		return
	}

	state, err := h.states.Consume(r.Context(), key)
	if err != nil {
		if !errors.Is(err, ErrStateNotFound) {
			h.logger.Error("failed to load oauth state", "error", err)
		}
		h.fail(w, r)
		return
	}

	user, err := h.complete(r.Context(), code)
	h.metrics.AuthEvent(metrics.EventGoogleLogin, err)
	if err != nil {
		level := slog.LevelError
		if domain.KindOf(err) == domain.KindConflict {
			level = slog.LevelWarn
		}
		h.logger.Log(r.Context(), level, "google login failed", "error", err, "kind", domain.KindOf(err).String())
		h.fail(w, r)
		return
	}

	session, err := h.sessions.IssueForUser(user)
	if err != nil {
		h.logger.Error("failed to issue session", "error", err, "user_id", user.ID)
		h.fail(w, r)
		return
	}

	userJSON, err := json.Marshal(common.NewUserResponse(user))
	if err != nil {
		h.logger.Error("failed to encode user", "error", err, "user_id", user.ID)
		h.fail(w, r)
		return
	}

	v := url.Values{}
	v.Set("token", session.Token)
	v.Set("user", string(userJSON))
	v.Set("redirectTo", state.RedirectTo)

	h.logger.Info("google login", "user_id", user.ID)
	http.Redirect(w, r, h.frontendURL+"/auth/callback?"+v.Encode(), http.StatusFound)
}

func (h *Handler) complete(ctx context.Context, code string) (*domain.User, error) {
	identity, err := h.flow.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	return h.flow.LinkOrCreate(ctx, *identity)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.frontendURL+"/login?error=oauth_failed", http.StatusFound)
}

// safeRedirect keeps same-origin relative paths only.
func safeRedirect(target string) string {
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return "/"
	}
	if strings.ContainsAny(target, "\r\n") {
		return "/"
	}
	return target
}
