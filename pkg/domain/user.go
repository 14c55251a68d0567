package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuthProvider records the signup path of an account.
type AuthProvider string

const (
	ProviderLocal  AuthProvider = "local"
	ProviderGoogle AuthProvider = "google"
)

// PhotoSource records where the stored photo came from.
type PhotoSource string

const (
	PhotoSourceProvider PhotoSource = "provider"
	PhotoSourceUpload   PhotoSource = "upload"
)

// User represents the account.
type User struct {
	ID           uuid.UUID
	Name         string
	Email        string
	PasswordHash *string
	PasswordSet  bool
	AuthProvider AuthProvider
	GoogleID     *string
	IsVerified   bool
	OTPCodeHash  *string
	OTPExpiresAt *time.Time
	Photo        *string
	PhotoSource  PhotoSource
	BannerImage  *string
	Favorites    []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasPassword reports whether a password hash is stored.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// IsLocal reports whether the account signed up with email and password.
// Rows without a recorded provider are treated as local.
func (u *User) IsLocal() bool {
	return u.AuthProvider == ProviderLocal || u.AuthProvider == ""
}

// ProviderPhotoReplaceable reports whether a provider photo may replace the stored one.
// A photo with no recorded source is treated as a user upload.
func (u *User) ProviderPhotoReplaceable() bool {
	return u.Photo == nil || u.PhotoSource == PhotoSourceProvider
}

// ClearOTP removes any pending verification code.
func (u *User) ClearOTP() {
	u.OTPCodeHash = nil
	u.OTPExpiresAt = nil
}

// LinkFunc decides the linked state of an account. existing is nil when no
// account matched, in which case the returned user is created.
type LinkFunc func(existing *User) (*User, error)

// PendingSignup is an unverified local signup awaiting its code.
type PendingSignup struct {
	Name         string
	Email        string
	PasswordHash string
	OTPCodeHash  string
	OTPExpiresAt time.Time
}

// ProfileUpdate holds the optional fields of a profile edit.
type ProfileUpdate struct {
	Name        *string
	Photo       *string
	BannerImage *string
}

// IsEmpty reports whether the update changes nothing.
func (p ProfileUpdate) IsEmpty() bool {
	return p.Name == nil && p.Photo == nil && p.BannerImage == nil
}
