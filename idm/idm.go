// Package idm provides the recipe box identity service as an embeddable
// library: email code signup, password login, Google sign-in, profiles and
// favorite recipes.
//
// Setup:
//
//  1. Apply the schema with repository.Migrate (or run the SQL in
//     pkg/repository/migrations with your own tool)
//  2. Create an IDM instance and mount its handler
//
// Basic usage:
//
//	ctx := context.Background()
//	db, _ := sql.Open("postgres", "postgres://localhost/recipebox?sslmode=disable")
//
//	ids, err := idm.New(ctx, idm.Config{
//	    DB:          db,
//	    JWTSecret:   "your-secret-key-at-least-32-chars",
//	    FrontendURL: "http://localhost:5173",
//	})
//	if err != nil {
//	    log.Fatal(err) // Will fail if migrations haven't been run
//	}
//	defer ids.Close()
//
//	http.ListenAndServe(":5001", ids.Handler())
//
// With Google OAuth:
//
//	ids, err := idm.New(ctx, idm.Config{
//	    DB:        db,
//	    JWTSecret: "your-secret-key-at-least-32-chars",
//	    Google: &idm.GoogleConfig{
//	        ClientID:     "your-client-id",
//	        ClientSecret: "your-client-secret",
//	        RedirectURI:  "http://localhost:5001/api/auth/google/callback",
//	    },
//	})
package idm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/recipebox-idm/internal/config"
	httpserver "github.com/tendant/recipebox-idm/internal/http"
	"github.com/tendant/recipebox-idm/internal/http/features/google"
	"github.com/tendant/recipebox-idm/internal/http/middleware"
	"github.com/tendant/recipebox-idm/internal/metrics"
	"github.com/tendant/recipebox-idm/internal/notification"
	"github.com/tendant/recipebox-idm/pkg/auth"
	"github.com/tendant/recipebox-idm/pkg/repository"
)

// Config holds the configuration for the IDM library.
type Config struct {
	// DB is the database connection (required).
	DB *sql.DB

	// JWTSecret is the secret key for signing session tokens (required, min 32 chars).
	JWTSecret string

	// JWTIssuer is the issuer claim in session tokens (default: "recipebox").
	JWTIssuer string

	// SessionTTL is the lifetime of session tokens (default: 7 days).
	SessionTTL time.Duration

	// AppName appears in verification emails (default: "RecipeBox").
	AppName string

	// OTPTTL is the lifetime of an emailed signup code (default: 10 minutes).
	OTPTTL time.Duration

	StrictEmailValidation bool
	BlockDisposableEmail  bool

	// HashMaxConcurrent bounds concurrent password hashing (default: 4).
	HashMaxConcurrent int

	// FrontendURL receives the Google sign-in redirect (default: http://localhost:5173).
	FrontendURL string

	// Notifier delivers signup codes. Codes are logged when nil.
	Notifier auth.Notifier

	// Google enables Google OAuth authentication (optional).
	Google *GoogleConfig

	// OAuthStates holds Google handshake state. An in-memory store is used
	// when nil, which only works with a single replica.
	OAuthStates google.StateStore

	// Metrics is optional.
	Metrics *metrics.Metrics

	PasswordPolicy  config.PasswordPolicyConfig
	RateLimit       config.RateLimitConfig
	SecurityHeaders config.SecurityHeadersConfig
	Validation      config.ValidationConfig
	CORS            config.CORSConfig

	// Logger is the structured logger (default: JSON to stdout).
	Logger *slog.Logger
}

// GoogleConfig holds Google OAuth configuration.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string

	// StateTTL bounds the time between start and callback (default: 10 minutes).
	StateTTL time.Duration
}

// IDM is the main identity management instance.
type IDM struct {
	config          Config
	usersRepo       *repository.UsersRepository
	sessionService  *auth.SessionService
	passwordService *auth.PasswordService
	handler         http.Handler
	ownedStates     *google.MemoryStateStore
}

// New creates a new IDM instance with the given configuration.
// Returns an error if required database tables don't exist.
func New(ctx context.Context, cfg Config) (*IDM, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	// Validate schema exists
	if err := validateSchema(ctx, cfg.DB); err != nil {
		return nil, err
	}

	// Initialize repositories
	usersRepo := repository.NewUsersRepository(cfg.DB)
	favoritesRepo := repository.NewFavoritesRepository(cfg.DB)
	recipesRepo := repository.NewRecipesRepository(cfg.DB)

	// Initialize services
	hasher := auth.NewHasher(auth.DefaultHashParams(), cfg.HashMaxConcurrent)
	policy := auth.NewPasswordPolicy(cfg.PasswordPolicy)

	sessionService, err := auth.NewSessionService(auth.SessionConfig{
		TTL:       cfg.SessionTTL,
		JWTSecret: []byte(cfg.JWTSecret),
		Issuer:    cfg.JWTIssuer,
	})
	if err != nil {
		return nil, fmt.Errorf("idm: %w", err)
	}

	otpService := auth.NewOTPService(usersRepo, cfg.Notifier, hasher, policy, auth.OTPConfig{
		TTL:                   cfg.OTPTTL,
		AppName:               cfg.AppName,
		StrictEmailValidation: cfg.StrictEmailValidation,
		BlockDisposableEmail:  cfg.BlockDisposableEmail,
	})
	passwordService := auth.NewPasswordService(usersRepo, hasher, policy)
	profileService := auth.NewProfileService(usersRepo, favoritesRepo)
	favoritesService := auth.NewFavoritesService(favoritesRepo, recipesRepo)

	i := &IDM{
		config:          cfg,
		usersRepo:       usersRepo,
		sessionService:  sessionService,
		passwordService: passwordService,
	}

	routerCfg := httpserver.RouterConfig{
		Logger:          cfg.Logger,
		Sessions:        sessionService,
		Codes:           otpService,
		Passwords:       passwordService,
		Profiles:        profileService,
		Favorites:       favoritesService,
		FrontendURL:     cfg.FrontendURL,
		Metrics:         cfg.Metrics,
		RateLimitConfig: cfg.RateLimit,
		SecurityHeaders: cfg.SecurityHeaders,
		Validation:      cfg.Validation,
		CORS:            cfg.CORS,
	}

	// Google OAuth routes (if configured)
	if cfg.Google != nil {
		routerCfg.GoogleFlow = auth.NewGoogleService(auth.GoogleConfig{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURI:  cfg.Google.RedirectURI,
		}, usersRepo)

		routerCfg.OAuthStates = cfg.OAuthStates
		if routerCfg.OAuthStates == nil {
			i.ownedStates = google.NewMemoryStateStore(cfg.Google.StateTTL)
			routerCfg.OAuthStates = i.ownedStates
			cfg.Logger.Warn("Google OAuth: using in-memory state storage (not safe for multi-replica)")
		}
	}

	i.handler = httpserver.NewRouter(routerCfg)
	return i, nil
}

// Handler returns the HTTP handler serving /health and /api/auth/*.
func (i *IDM) Handler() http.Handler {
	return i.handler
}

// Close releases background resources. It does not close the DB.
func (i *IDM) Close() error {
	if i.ownedStates != nil {
		return i.ownedStates.Close()
	}
	return nil
}

// SessionService returns the session service for advanced usage.
func (i *IDM) SessionService() *auth.SessionService {
	return i.sessionService
}

// AuthMiddleware returns middleware that validates session tokens.
// Use this to protect your own routes:
//
//	r.Group(func(r chi.Router) {
//	    r.Use(ids.AuthMiddleware())
//	    r.Get("/recipes/mine", handler)
//	})
func (i *IDM) AuthMiddleware() func(http.Handler) http.Handler {
	return middleware.Auth(i.sessionService)
}

// GetUserID extracts the user ID from a request.
// Use after AuthMiddleware:
//
//	userID, ok := idm.GetUserID(r)
func GetUserID(r *http.Request) (string, bool) {
	id, ok := middleware.GetUserID(r.Context())
	if !ok {
		return "", false
	}
	return id.String(), true
}

// GetUserIDFromContext extracts the user ID from a context.
func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	return middleware.GetUserID(ctx)
}

// User represents basic user info returned by GetUser.
type User struct {
	ID           string
	Name         string
	Email        string
	IsVerified   bool
	AuthProvider string
}

// GetUser retrieves the current user from the database.
// Use after AuthMiddleware:
//
//	user, err := ids.GetUser(r)
func (i *IDM) GetUser(r *http.Request) (*User, error) {
	id, ok := middleware.GetUserID(r.Context())
	if !ok {
		return nil, errors.New("user not authenticated")
	}

	u, err := i.usersRepo.GetByID(r.Context(), id)
	if err != nil {
		return nil, err
	}

	return &User{
		ID:           u.ID.String(),
		Name:         u.Name,
		Email:        u.Email,
		IsVerified:   u.IsVerified,
		AuthProvider: string(u.AuthProvider),
	}, nil
}

func validateConfig(cfg *Config) error {
	if cfg.DB == nil {
		return errors.New("idm: DB is required")
	}
	if cfg.JWTSecret == "" {
		return errors.New("idm: JWTSecret is required")
	}
	if len(cfg.JWTSecret) < 32 {
		return errors.New("idm: JWTSecret must be at least 32 characters")
	}
	if cfg.Google != nil {
		if cfg.Google.ClientID == "" || cfg.Google.ClientSecret == "" {
			return errors.New("idm: Google ClientID and ClientSecret are required when Google is configured")
		}
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.JWTIssuer == "" {
		cfg.JWTIssuer = "recipebox"
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 7 * 24 * time.Hour
	}
	if cfg.AppName == "" {
		cfg.AppName = "RecipeBox"
	}
	if cfg.OTPTTL == 0 {
		cfg.OTPTTL = 10 * time.Minute
	}
	if cfg.HashMaxConcurrent <= 0 {
		cfg.HashMaxConcurrent = 4
	}
	if cfg.FrontendURL == "" {
		cfg.FrontendURL = "http://localhost:5173"
	}
	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notification.NewLogSender(cfg.Logger)
	}
	if cfg.Google != nil && cfg.Google.StateTTL == 0 {
		cfg.Google.StateTTL = 10 * time.Minute
	}
	if cfg.PasswordPolicy.MinLength == 0 {
		cfg.PasswordPolicy = config.PasswordPolicyConfig{MinLength: 6, RequireNumber: true}
	}
	if cfg.Validation.MaxRequestBodySize == 0 {
		cfg.Validation.MaxRequestBodySize = 1 << 20
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		cfg.CORS.AllowedOrigins = []string{cfg.FrontendURL}
	}
}

// validateSchema checks that required database tables exist.
func validateSchema(ctx context.Context, db *sql.DB) error {
	requiredTables := []string{"users", "recipes", "user_favorites"}

	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name = $1
	`

	for _, table := range requiredTables {
		var name string
		err := db.QueryRowContext(ctx, query, table).Scan(&name)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("idm: missing table '%s' - run migrations first", table)
		}
		if err != nil {
			return fmt.Errorf("idm: failed to check schema: %w", err)
		}
	}

	return nil
}
