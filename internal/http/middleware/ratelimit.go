package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/tendant/recipebox-idm/internal/config"
	"github.com/tendant/recipebox-idm/internal/httputil"
)

// RateLimitConfig holds rate limiting configuration for a specific endpoint type.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	Logger   *slog.Logger
}

// RateLimit creates an IP-based rate limiter middleware with logging.
// Clients are keyed by RemoteAddr, which chi's RealIP middleware has
// already resolved from proxy headers.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.Requests,
		cfg.Window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Logger != nil {
				cfg.Logger.Warn("rate limit exceeded",
					"ip", r.RemoteAddr,
					"request_id", chimw.GetReqID(r.Context()),
					"path", r.URL.Path,
					"method", r.Method,
					"user_agent", r.UserAgent(),
				)
			}
			httputil.Error(w, http.StatusTooManyRequests, "rate limit exceeded. please try again later")
		}),
	)
}

// NoRateLimit returns a no-op middleware when rate limiting is disabled.
func NoRateLimit() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return next
	}
}

// Rate limiter keys used by the router.
const (
	LimitAuth      = "auth"
	LimitOTP       = "otp"
	LimitVerify    = "verify"
	LimitProfile   = "profile"
	LimitFavorites = "favorites"
)

// CreateRateLimiters creates rate limiting middleware functions based on configuration.
func CreateRateLimiters(cfg config.RateLimitConfig, logger *slog.Logger) map[string]func(http.Handler) http.Handler {
	if !cfg.Enabled {
		noOp := NoRateLimit()
		return map[string]func(http.Handler) http.Handler{
			LimitAuth:      noOp,
			LimitOTP:       noOp,
			LimitVerify:    noOp,
			LimitProfile:   noOp,
			LimitFavorites: noOp,
		}
	}

	limit := func(requests, windowMinutes int) func(http.Handler) http.Handler {
		return RateLimit(RateLimitConfig{
			Requests: requests,
			Window:   time.Duration(windowMinutes) * time.Minute,
			Logger:   logger,
		})
	}

	return map[string]func(http.Handler) http.Handler{
		LimitAuth:      limit(cfg.AuthRequestsPerMinute, cfg.AuthWindowMinutes),
		LimitOTP:       limit(cfg.OTPRequestsPerWindow, cfg.OTPWindowMinutes),
		LimitVerify:    limit(cfg.VerifyRequestsPerWindow, cfg.VerifyWindowMinutes),
		LimitProfile:   limit(cfg.ProfileRequestsPerMinute, cfg.ProfileWindowMinutes),
		LimitFavorites: limit(cfg.FavoritesRequestsPerMinute, cfg.FavoritesWindowMinutes),
	}
}
