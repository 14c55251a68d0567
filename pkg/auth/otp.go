package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"html"
	"math/big"
	"strings"
	"time"

	"github.com/tendant/recipebox-idm/pkg/domain"
)

const (
	otpMin        = 100000
	otpMax        = 999999
	otpLength     = 6
	defaultOTPTTL = 10 * time.Minute
	maxNameLength = 100
)

// OTPConfig configures email code verification.
type OTPConfig struct {
	TTL                   time.Duration
	AppName               string
	StrictEmailValidation bool
	BlockDisposableEmail  bool
}

// RequestCodeInput is a local signup awaiting email verification.
type RequestCodeInput struct {
	Name     string
	Email    string
	Password string
}

// OTPService issues and checks emailed signup codes.
type OTPService struct {
	users    UserStore
	notifier Notifier
	hasher   *Hasher
	policy   *PasswordPolicy
	cfg      OTPConfig

	now     func() time.Time
	newCode func() (string, error)
}

// NewOTPService creates a new OTP service.
func NewOTPService(users UserStore, notifier Notifier, hasher *Hasher, policy *PasswordPolicy, cfg OTPConfig) *OTPService {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultOTPTTL
	}
	if cfg.AppName == "" {
		cfg.AppName = "RecipeBox"
	}
	if policy == nil {
		policy = DefaultPasswordPolicy()
	}
	return &OTPService{
		users:    users,
		notifier: notifier,
		hasher:   hasher,
		policy:   policy,
		cfg:      cfg,
		now:      time.Now,
		newCode:  GenerateOTP,
	}
}

// RequestCode stores a fresh code on the pending account for in.Email and
// mails it. Any earlier code for the account stops being valid.
func (s *OTPService) RequestCode(ctx context.Context, in RequestCodeInput) error {
	name, err := validateName(in.Name)
	if err != nil {
		return err
	}
	if err := ValidateEmail(in.Email, s.cfg.StrictEmailValidation, s.cfg.BlockDisposableEmail); err != nil {
		return err
	}
	email := NormalizeEmail(in.Email)

	if err := s.policy.ValidatePassword(in.Password); err != nil {
		return err
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return err
	}
	if existing != nil && existing.IsVerified {
		return domain.ErrUserAlreadyExists
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return err
	}

	code, err := s.newCode()
	if err != nil {
		return err
	}
	codeHash := HashToken(code)

	user, err := s.users.UpsertPending(ctx, domain.PendingSignup{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		OTPCodeHash:  codeHash,
		OTPExpiresAt: s.now().Add(s.cfg.TTL),
	})
	if err != nil {
		return err
	}

	subject, body := verificationMessage(s.cfg.AppName, name, code, s.cfg.TTL)
	if err := s.notifier.Send(ctx, email, subject, body); err != nil {
		if clearErr := s.users.ClearOTP(context.WithoutCancel(ctx), user.ID, codeHash); clearErr != nil {
			err = errors.Join(err, clearErr)
		}
		return fmt.Errorf("%w: %w", domain.ErrNotificationFailed, err)
	}

	return nil
}

// VerifyCode marks the account verified if code is its current, unexpired
// code. Wrong and expired codes fail identically.
func (s *OTPService) VerifyCode(ctx context.Context, email, code string) (*domain.User, error) {
	email = NormalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || !isOTPFormat(code) {
		return nil, domain.ErrInvalidOrExpiredCode
	}

	return s.users.ConsumeOTP(ctx, email, HashToken(code), s.now())
}

// GenerateOTP returns a uniformly random six digit code in 100000-999999.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpMax-otpMin+1))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+otpMin), nil
}

func isOTPFormat(code string) bool {
	if len(code) != otpLength {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func validateName(raw string) (string, error) {
	name := SanitizeName(raw)
	if name == "" {
		return "", domain.NewFieldError("name", nil, "name is required")
	}
	if err := ValidateStringLength("name", name, 1, maxNameLength); err != nil {
		return "", domain.NewFieldError("name", nil, "%s", err.Error())
	}
	return name, nil
}

func verificationMessage(appName, name, code string, ttl time.Duration) (subject, body string) {
	subject = fmt.Sprintf("Your %s verification code", appName)
	body = fmt.Sprintf(`<html><body>
		<h2>Verify Your Email Address</h2>
		<p>Hi %s,</p>
		<p>Use this code to finish creating your %s account:</p>
		<p style="font-size:24px;letter-spacing:4px"><strong>%s</strong></p>
		<p>This code will expire in %d minutes.</p>
		<p>If you did not sign up, please ignore this email.</p>
	</body></html>`, html.EscapeString(name), html.EscapeString(appName), code, int(ttl.Minutes()))
	return subject, body
}
