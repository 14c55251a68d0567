package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/tendant/recipebox-idm/internal/config"
	"github.com/tendant/recipebox-idm/internal/http/features/common"
	"github.com/tendant/recipebox-idm/internal/http/features/email"
	"github.com/tendant/recipebox-idm/internal/http/features/favorites"
	"github.com/tendant/recipebox-idm/internal/http/features/google"
	"github.com/tendant/recipebox-idm/internal/http/features/me"
	"github.com/tendant/recipebox-idm/internal/http/features/password"
	"github.com/tendant/recipebox-idm/internal/http/middleware"
	"github.com/tendant/recipebox-idm/internal/httputil"
	"github.com/tendant/recipebox-idm/internal/metrics"
)

// Sessions issues and validates session tokens.
type Sessions interface {
	common.SessionIssuer
	middleware.TokenValidator
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger    *slog.Logger
	Sessions  Sessions
	Codes     email.CodeService
	Passwords password.Service
	Profiles  me.ProfileService
	Favorites favorites.Service

	// GoogleFlow is nil when Google OAuth is not configured.
	GoogleFlow  google.Flow
	OAuthStates google.StateStore
	FrontendURL string

	// Metrics is optional. /metrics is mounted only when set.
	Metrics *metrics.Metrics

	RateLimitConfig config.RateLimitConfig
	SecurityHeaders config.SecurityHeadersConfig
	Validation      config.ValidationConfig
	CORS            config.CORSConfig
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(cfg.Metrics.Middleware())
	r.Use(middleware.SecurityHeaders(cfg.SecurityHeaders))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           cfg.CORS.MaxAge,
	}))
	r.Use(middleware.RequestSizeLimit(cfg.Validation.MaxRequestBodySize))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	// Create rate limiters for different endpoint types
	rateLimiters := middleware.CreateRateLimiters(cfg.RateLimitConfig, cfg.Logger)
	requireAuth := middleware.Auth(cfg.Sessions)

	emailHandler := email.NewHandler(cfg.Logger, cfg.Codes, cfg.Sessions, cfg.Metrics)
	passwordHandler := password.NewHandler(cfg.Logger, cfg.Passwords, cfg.Sessions, cfg.Metrics)
	meHandler := me.NewHandler(cfg.Logger, cfg.Profiles)
	favoritesHandler := favorites.NewHandler(cfg.Logger, cfg.Favorites, cfg.Metrics)

	r.Route("/api/auth", func(r chi.Router) {
		// Signup codes
		r.Group(func(r chi.Router) {
			r.Use(rateLimiters[middleware.LimitOTP])
			r.Post("/send-code", emailHandler.SendCode)
			r.Post("/resend-code", emailHandler.ResendCode)
		})
		r.With(rateLimiters[middleware.LimitVerify]).Post("/verify-code", emailHandler.VerifyCode)

		r.With(rateLimiters[middleware.LimitAuth]).Post("/login", passwordHandler.Login)

		// Register Google OAuth routes (if configured)
		if cfg.GoogleFlow != nil {
			googleHandler := google.NewHandler(cfg.Logger, cfg.GoogleFlow, cfg.Sessions, cfg.OAuthStates, cfg.FrontendURL, cfg.Metrics)
			r.Group(func(r chi.Router) {
				r.Use(rateLimiters[middleware.LimitAuth])
				r.Get("/google", googleHandler.Start)
				r.Get("/google/callback", googleHandler.Callback)
			})
		}

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(rateLimiters[middleware.LimitProfile])
			r.Get("/verify", meHandler.Verify)
			r.Get("/profile", meHandler.GetProfile)
			r.Put("/profile", meHandler.UpdateProfile)
			r.Get("/password-status", passwordHandler.Status)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(rateLimiters[middleware.LimitAuth])
			r.Post("/set-password", passwordHandler.SetPassword)
			r.Post("/change-password", passwordHandler.ChangePassword)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(rateLimiters[middleware.LimitFavorites])
			r.Get("/favorites", favoritesHandler.List)
			r.Post("/favorites/{recipeID}", favoritesHandler.Toggle)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.Error(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httputil.Error(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}
