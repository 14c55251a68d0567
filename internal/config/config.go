package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const minJWTSecretLen = 32

// Config holds application configuration.
type Config struct {
	// Server
	ServerAddr  string
	ServerPort  int
	FrontendURL string
	LogLevel    string

	// Database
	DBHost            string
	DBPort            int
	DBUser            string
	DBPassword        string
	DBName            string
	DBSSLMode         string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	// JWT
	JWTSecret  string
	JWTIssuer  string
	SessionTTL time.Duration

	// Signup
	AppName               string
	OTPTTL                time.Duration
	StrictEmailValidation bool
	BlockDisposableEmail  bool
	HashMaxConcurrent     int

	// Google OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string
	OAuthStateTTL      time.Duration

	MetricsEnabled bool

	RateLimit       RateLimitConfig
	SecurityHeaders SecurityHeadersConfig
	Validation      ValidationConfig
	PasswordPolicy  PasswordPolicyConfig
	SMTP            SMTPConfig
	Redis           RedisConfig
	CORS            CORSConfig
}

// RateLimitConfig holds per-IP limits for each endpoint group.
type RateLimitConfig struct {
	Enabled bool

	AuthRequestsPerMinute int
	AuthWindowMinutes     int

	OTPRequestsPerWindow int
	OTPWindowMinutes     int

	VerifyRequestsPerWindow int
	VerifyWindowMinutes     int

	ProfileRequestsPerMinute int
	ProfileWindowMinutes     int

	FavoritesRequestsPerMinute int
	FavoritesWindowMinutes     int
}

// SecurityHeadersConfig tunes the headers sent with every API response.
// An empty CSP falls back to a policy that allows no content at all.
type SecurityHeadersConfig struct {
	Enabled           bool
	CSP               string
	HSTSMaxAge        int
	ReferrerPolicy    string
	PermissionsPolicy string
}

// ValidationConfig holds request validation limits.
type ValidationConfig struct {
	MaxRequestBodySize int64
}

// PasswordPolicyConfig holds password complexity requirements.
type PasswordPolicyConfig struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireNumber    bool
	RequireSpecial   bool
}

// SMTPConfig holds outgoing mail settings. Mail is logged instead of sent when Host is empty.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	FromName string
}

// RedisConfig selects the shared OAuth state store. It is unused when Addr is empty.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis address is set.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// CORSConfig holds cross-origin settings for the SPA.
type CORSConfig struct {
	AllowedOrigins []string
	MaxAge         int
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	frontendURL := strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:5173"), "/")

	cfg := &Config{
		// Server defaults
		ServerAddr:  getEnv("SERVER_ADDR", "0.0.0.0"),
		ServerPort:  getEnvInt("SERVER_PORT", 5001),
		FrontendURL: frontendURL,
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// Database defaults
		DBHost:            getEnv("DB_HOST", "localhost"),
		DBPort:            getEnvInt("DB_PORT", 5432),
		DBUser:            getEnv("DB_USER", "postgres"),
		DBPassword:        getEnv("DB_PASSWORD", "postgres"),
		DBName:            getEnv("DB_NAME", "recipebox"),
		DBSSLMode:         getEnv("DB_SSLMODE", "disable"),
		DBMaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),

		// JWT defaults
		JWTSecret:  getEnv("JWT_SECRET", ""),
		JWTIssuer:  getEnv("JWT_ISSUER", "recipebox"),
		SessionTTL: getEnvDuration("SESSION_TTL", 7*24*time.Hour),

		AppName:               getEnv("APP_NAME", "RecipeBox"),
		OTPTTL:                getEnvDuration("OTP_TTL", 10*time.Minute),
		StrictEmailValidation: getEnvBool("STRICT_EMAIL_VALIDATION", true),
		BlockDisposableEmail:  getEnvBool("BLOCK_DISPOSABLE_EMAIL", false),
		HashMaxConcurrent:     getEnvInt("HASH_MAX_CONCURRENT", 0),

		// Google OAuth (optional)
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURI:  getEnv("GOOGLE_REDIRECT_URI", "http://localhost:5001/api/auth/google/callback"),
		OAuthStateTTL:      getEnvDuration("OAUTH_STATE_TTL", 10*time.Minute),

		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),

		RateLimit: RateLimitConfig{
			Enabled:                    getEnvBool("RATE_LIMIT_ENABLED", true),
			AuthRequestsPerMinute:      getEnvInt("RATE_LIMIT_AUTH_REQUESTS", 10),
			AuthWindowMinutes:          getEnvInt("RATE_LIMIT_AUTH_WINDOW_MINUTES", 1),
			OTPRequestsPerWindow:       getEnvInt("RATE_LIMIT_OTP_REQUESTS", 5),
			OTPWindowMinutes:           getEnvInt("RATE_LIMIT_OTP_WINDOW_MINUTES", 15),
			VerifyRequestsPerWindow:    getEnvInt("RATE_LIMIT_VERIFY_REQUESTS", 10),
			VerifyWindowMinutes:        getEnvInt("RATE_LIMIT_VERIFY_WINDOW_MINUTES", 15),
			ProfileRequestsPerMinute:   getEnvInt("RATE_LIMIT_PROFILE_REQUESTS", 30),
			ProfileWindowMinutes:       getEnvInt("RATE_LIMIT_PROFILE_WINDOW_MINUTES", 1),
			FavoritesRequestsPerMinute: getEnvInt("RATE_LIMIT_FAVORITES_REQUESTS", 60),
			FavoritesWindowMinutes:     getEnvInt("RATE_LIMIT_FAVORITES_WINDOW_MINUTES", 1),
		},

		SecurityHeaders: SecurityHeadersConfig{
			Enabled:           getEnvBool("SECURITY_HEADERS_ENABLED", true),
			CSP:               getEnv("SECURITY_CSP", ""),
			HSTSMaxAge:        getEnvInt("SECURITY_HSTS_MAX_AGE", 31536000),
			ReferrerPolicy:    getEnv("SECURITY_REFERRER_POLICY", "no-referrer"),
			PermissionsPolicy: getEnv("SECURITY_PERMISSIONS_POLICY", "geolocation=(), microphone=(), camera=()"),
		},

		Validation: ValidationConfig{
			MaxRequestBodySize: getEnvInt64("MAX_REQUEST_BODY_SIZE", 1<<20),
		},

		PasswordPolicy: PasswordPolicyConfig{
			MinLength:        getEnvInt("PASSWORD_MIN_LENGTH", 6),
			RequireUppercase: getEnvBool("PASSWORD_REQUIRE_UPPERCASE", false),
			RequireLowercase: getEnvBool("PASSWORD_REQUIRE_LOWERCASE", false),
			RequireNumber:    getEnvBool("PASSWORD_REQUIRE_NUMBER", true),
			RequireSpecial:   getEnvBool("PASSWORD_REQUIRE_SPECIAL", false),
		},

		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnvInt("SMTP_PORT", 587),
			User:     getEnv("SMTP_USER", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "noreply@recipebox.local"),
			FromName: getEnv("SMTP_FROM_NAME", "RecipeBox"),
		},

		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},

		CORS: CORSConfig{
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{frontendURL}),
			MaxAge:         getEnvInt("CORS_MAX_AGE", 300),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < minJWTSecretLen {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes", minJWTSecretLen)
	}
	u, err := url.Parse(c.FrontendURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("FRONTEND_URL must be an absolute URL, got %q", c.FrontendURL)
	}
	if c.OTPTTL <= 0 {
		return fmt.Errorf("OTP_TTL must be positive")
	}
	return nil
}

// HasGoogleOAuth returns true if Google OAuth is configured.
func (c *Config) HasGoogleOAuth() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
