package auth

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/tendant/recipebox-idm/pkg/domain"
)

// PasswordStatus describes the credentials of an account.
type PasswordStatus struct {
	PasswordSet  bool
	AuthProvider domain.AuthProvider
	HasGoogle    bool
}

// PasswordService handles password login and the set/change lifecycle.
// An account moves from no password to password set exactly once.
type PasswordService struct {
	users  UserStore
	hasher *Hasher
	policy *PasswordPolicy

	dummyOnce sync.Once
	dummyHash string
}

// NewPasswordService creates a new password service.
func NewPasswordService(users UserStore, hasher *Hasher, policy *PasswordPolicy) *PasswordService {
	if policy == nil {
		policy = DefaultPasswordPolicy()
	}
	return &PasswordService{
		users:  users,
		hasher: hasher,
		policy: policy,
	}
}

// Login authenticates email and password. Unknown accounts, accounts
// without a password and wrong passwords all fail with
// domain.ErrInvalidCredentials.
func (s *PasswordService) Login(ctx context.Context, email, password string) (*domain.User, error) {
	email = NormalizeEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}
	if user == nil || !user.PasswordSet || !user.HasPassword() {
		// Spend the same hashing cost as a real check.
		if _, err := s.hasher.Verify(ctx, password, s.dummy()); err != nil {
			return nil, err
		}
		return nil, domain.ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(ctx, password, *user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrInvalidCredentials
	}

	if user.IsLocal() && !user.IsVerified {
		return nil, domain.ErrEmailNotVerified
	}

	return user, nil
}

// SetPassword sets the first password of an account that has none.
func (s *PasswordService) SetPassword(ctx context.Context, userID uuid.UUID, newPassword string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.PasswordSet {
		return nil, domain.ErrPasswordAlreadySet
	}

	if err := s.policy.ValidatePassword(newPassword); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return nil, err
	}

	if err := s.users.SetPasswordHash(ctx, userID, hash); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, userID)
}

// ChangePassword replaces the password of an account after checking the current one.
func (s *PasswordService) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.PasswordSet || !user.HasPassword() {
		return domain.ErrNoPasswordSet
	}
	if newPassword == currentPassword {
		return domain.ErrSamePassword
	}

	oldHash := *user.PasswordHash
	ok, err := s.hasher.Verify(ctx, currentPassword, oldHash)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrInvalidCredentials
	}

	if err := s.policy.ValidateField("newPassword", newPassword); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return err
	}

	return s.users.ReplacePasswordHash(ctx, userID, oldHash, hash)
}

// Status reports whether the account has a password and how it signed up.
func (s *PasswordService) Status(ctx context.Context, userID uuid.UUID) (*PasswordStatus, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	provider := user.AuthProvider
	if provider == "" {
		provider = domain.ProviderLocal
	}
	return &PasswordStatus{
		PasswordSet:  user.PasswordSet,
		AuthProvider: provider,
		HasGoogle:    user.GoogleID != nil,
	}, nil
}

func (s *PasswordService) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := hashPassword("recipebox-dummy-password", s.hasher.params)
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}
