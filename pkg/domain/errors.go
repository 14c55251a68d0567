package domain

import (
	"errors"
	"fmt"
)

// Not found errors
var (
	ErrUserNotFound   = errors.New("user not found")
	ErrRecipeNotFound = errors.New("recipe not found")
)

// Conflict errors
var (
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrPasswordAlreadySet = errors.New("password is already set, use change password instead")
	ErrIdentityConflict   = errors.New("email is already linked to a different google account")
)

// Validation errors
var (
	ErrValidation           = errors.New("validation failed")
	ErrInvalidEmail         = errors.New("invalid email address")
	ErrWeakPassword         = errors.New("password does not meet requirements")
	ErrInvalidOrExpiredCode = errors.New("invalid or expired verification code")
	ErrNoPasswordSet        = errors.New("no password set, use set password instead")
	ErrSamePassword         = errors.New("new password must be different from current password")
)

// Authentication errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrInvalidToken       = errors.New("invalid token")
)

// Upstream and internal errors
var (
	ErrNotificationFailed = errors.New("failed to send notification")
	ErrIdentityProvider   = errors.New("identity provider error")
	ErrIdentityLinkFailed = errors.New("failed to link identity")
)

// Kind classifies an error for the transport layer.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindConflict
	KindNotFound
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindUpstream:
		return "upstream"
	default:
		return "internal"
	}
}

var kinds = []struct {
	err  error
	kind Kind
}{
	// Link failures wrap the underlying cause, which may itself be a
	// domain error, so they are checked first.
	{ErrIdentityLinkFailed, KindInternal},
	{ErrUserNotFound, KindNotFound},
	{ErrRecipeNotFound, KindNotFound},
	{ErrUserAlreadyExists, KindConflict},
	{ErrPasswordAlreadySet, KindConflict},
	{ErrIdentityConflict, KindConflict},
	{ErrValidation, KindValidation},
	{ErrInvalidEmail, KindValidation},
	{ErrWeakPassword, KindValidation},
	{ErrInvalidOrExpiredCode, KindValidation},
	{ErrNoPasswordSet, KindValidation},
	{ErrSamePassword, KindValidation},
	{ErrInvalidCredentials, KindAuthentication},
	{ErrEmailNotVerified, KindAuthentication},
	{ErrInvalidToken, KindAuthentication},
	{ErrNotificationFailed, KindUpstream},
	{ErrIdentityProvider, KindUpstream},
}

// KindOf returns the Kind of err. Unknown errors are KindInternal.
func KindOf(err error) Kind {
	_, kind := classify(err)
	return kind
}

// Sentinel returns the domain error err was classified by, or nil.
func Sentinel(err error) error {
	sentinel, _ := classify(err)
	return sentinel
}

func classify(err error) (error, Kind) {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.err, k.kind
		}
	}
	return nil, KindInternal
}

// FieldError reports an invalid input field.
type FieldError struct {
	Field   string
	Message string
	Err     error
}

// NewFieldError creates a FieldError. A nil sentinel defaults to ErrValidation.
func NewFieldError(field string, sentinel error, format string, args ...any) *FieldError {
	if sentinel == nil {
		sentinel = ErrValidation
	}
	return &FieldError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Err:     sentinel,
	}
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
