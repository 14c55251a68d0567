package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/recipebox-idm/pkg/domain"
)

const userColumns = `id, name, email, password_hash, password_set, auth_provider, google_id,
		       is_verified, otp_code_hash, otp_expires_at, photo, photo_source, banner_image,
		       created_at, updated_at`

// UsersRepository handles user persistence.
type UsersRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewUsersRepository creates a new users repository.
func NewUsersRepository(db *sql.DB) *UsersRepository {
	return &UsersRepository{db: db, now: time.Now}
}

func scanUser(row rowScanner) (*domain.User, error) {
	user := &domain.User{}
	var provider, photoSource sql.NullString
	err := row.Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.PasswordSet,
		&provider, &user.GoogleID, &user.IsVerified, &user.OTPCodeHash, &user.OTPExpiresAt,
		&user.Photo, &photoSource, &user.BannerImage, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.AuthProvider = domain.AuthProvider(provider.String)
	user.PhotoSource = domain.PhotoSource(photoSource.String)
	return user, nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func getUser(ctx context.Context, q DBTX, where string, arg any) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where
	user, err := scanUser(q.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// GetByID retrieves a user by ID.
func (r *UsersRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return getUser(ctx, r.db, `id = $1`, id)
}

// GetByEmail retrieves a user by normalized email.
func (r *UsersRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return getUser(ctx, r.db, `email = $1`, email)
}

// UpsertPending creates an unverified local account or refreshes the name,
// password and code of an existing unverified one, in a single statement.
func (r *UsersRepository) UpsertPending(ctx context.Context, p domain.PendingSignup) (*domain.User, error) {
	query := `
		INSERT INTO users (id, name, email, password_hash, password_set, auth_provider,
		                   is_verified, otp_code_hash, otp_expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, 'local', FALSE, $5, $6, $7, $7)
		ON CONFLICT (email) DO UPDATE
		SET name = EXCLUDED.name,
		    password_hash = EXCLUDED.password_hash,
		    password_set = TRUE,
		    otp_code_hash = EXCLUDED.otp_code_hash,
		    otp_expires_at = EXCLUDED.otp_expires_at,
		    updated_at = EXCLUDED.updated_at
		WHERE users.is_verified = FALSE
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRowContext(ctx, query,
		uuid.New(), p.Name, p.Email, p.PasswordHash, p.OTPCodeHash, p.OTPExpiresAt, r.now(),
	))
	if errors.Is(err, sql.ErrNoRows) {
		// The conflicting row is verified.
		return nil, domain.ErrUserAlreadyExists
	}
	if err != nil {
		return nil, fmt.Errorf("upsert pending user: %w", err)
	}
	return user, nil
}

// ConsumeOTP verifies the account whose current code matches and has not expired.
func (r *UsersRepository) ConsumeOTP(ctx context.Context, email, codeHash string, now time.Time) (*domain.User, error) {
	query := `
		UPDATE users
		SET is_verified = TRUE, otp_code_hash = NULL, otp_expires_at = NULL, updated_at = $4
		WHERE email = $1 AND otp_code_hash = $2 AND otp_expires_at > $3
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRowContext(ctx, query, email, codeHash, now, r.now()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrInvalidOrExpiredCode
	}
	if err != nil {
		return nil, fmt.Errorf("consume otp: %w", err)
	}
	return user, nil
}

// ClearOTP removes the pending code if it is still codeHash.
func (r *UsersRepository) ClearOTP(ctx context.Context, userID uuid.UUID, codeHash string) error {
	query := `
		UPDATE users
		SET otp_code_hash = NULL, otp_expires_at = NULL, updated_at = $3
		WHERE id = $1 AND otp_code_hash = $2
	`
	if _, err := r.db.ExecContext(ctx, query, userID, codeHash, r.now()); err != nil {
		return fmt.Errorf("clear otp: %w", err)
	}
	return nil
}

// LinkIdentity locks the account matching googleID, or else email, and
// stores the result of merge in the same transaction. A concurrent insert
// of the same identity is retried once.
func (r *UsersRepository) LinkIdentity(ctx context.Context, googleID, email string, merge domain.LinkFunc) (*domain.User, error) {
	var user *domain.User
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		user, err = r.linkOnce(ctx, googleID, email, merge)
		if err == nil || !isUniqueViolation(err) {
			break
		}
	}
	return user, err
}

func (r *UsersRepository) linkOnce(ctx context.Context, googleID, email string, merge domain.LinkFunc) (*domain.User, error) {
	var linked *domain.User
	err := Tx(ctx, r.db, func(tx *sql.Tx) error {
		existing, err := getUser(ctx, tx, `google_id = $1 FOR UPDATE`, googleID)
		if errors.Is(err, domain.ErrUserNotFound) {
			existing, err = getUser(ctx, tx, `email = $1 FOR UPDATE`, email)
		}
		if errors.Is(err, domain.ErrUserNotFound) {
			existing, err = nil, nil
		}
		if err != nil {
			return err
		}

		merged, err := merge(existing)
		if err != nil {
			return err
		}

		if existing == nil {
			linked, err = insertUser(ctx, tx, merged)
		} else {
			linked, err = updateLink(ctx, tx, merged)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return linked, nil
}

func insertUser(ctx context.Context, q DBTX, u *domain.User) (*domain.User, error) {
	query := `
		INSERT INTO users (id, name, email, password_hash, password_set, auth_provider, google_id,
		                   is_verified, photo, photo_source, banner_image, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING ` + userColumns

	user, err := scanUser(q.QueryRowContext(ctx, query,
		u.ID, u.Name, u.Email, u.PasswordHash, u.PasswordSet, nullIfEmpty(string(u.AuthProvider)), u.GoogleID,
		u.IsVerified, u.Photo, nullIfEmpty(string(u.PhotoSource)), u.BannerImage, u.CreatedAt, u.UpdatedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

// updateLink writes only the columns the link rules may change.
func updateLink(ctx context.Context, q DBTX, u *domain.User) (*domain.User, error) {
	query := `
		UPDATE users
		SET google_id = $2, photo = $3, photo_source = $4, password_set = $5, auth_provider = $6,
		    is_verified = $7, otp_code_hash = $8, otp_expires_at = $9, updated_at = $10,
		    name = $11, password_hash = $12
		WHERE id = $1
		RETURNING ` + userColumns

	user, err := scanUser(q.QueryRowContext(ctx, query,
		u.ID, u.GoogleID, u.Photo, nullIfEmpty(string(u.PhotoSource)), u.PasswordSet,
		nullIfEmpty(string(u.AuthProvider)), u.IsVerified, u.OTPCodeHash, u.OTPExpiresAt, u.UpdatedAt,
		u.Name, u.PasswordHash,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update user link: %w", err)
	}
	return user, nil
}

// SetPasswordHash stores the first password of an account.
func (r *UsersRepository) SetPasswordHash(ctx context.Context, userID uuid.UUID, hash string) error {
	query := `
		UPDATE users
		SET password_hash = $2, password_set = TRUE, updated_at = $3
		WHERE id = $1 AND password_set = FALSE
	`
	result, err := r.db.ExecContext(ctx, query, userID, hash, r.now())
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 1 {
		return nil
	}

	if _, err := r.GetByID(ctx, userID); err != nil {
		return err
	}
	return domain.ErrPasswordAlreadySet
}

// ReplacePasswordHash swaps the password hash if it is still oldHash.
func (r *UsersRepository) ReplacePasswordHash(ctx context.Context, userID uuid.UUID, oldHash, newHash string) error {
	query := `
		UPDATE users
		SET password_hash = $3, updated_at = $4
		WHERE id = $1 AND password_set = TRUE AND password_hash = $2
	`
	result, err := r.db.ExecContext(ctx, query, userID, oldHash, newHash, r.now())
	if err != nil {
		return fmt.Errorf("replace password: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrInvalidCredentials
	}
	return nil
}

// UpdateProfile applies the non-nil fields of upd. A new photo is recorded as an upload.
func (r *UsersRepository) UpdateProfile(ctx context.Context, userID uuid.UUID, upd domain.ProfileUpdate) (*domain.User, error) {
	query := `
		UPDATE users
		SET name = COALESCE($2, name),
		    photo = COALESCE($3, photo),
		    photo_source = CASE WHEN $3::TEXT IS NULL THEN photo_source ELSE 'upload' END,
		    banner_image = COALESCE($4, banner_image),
		    updated_at = $5
		WHERE id = $1
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRowContext(ctx, query, userID, upd.Name, upd.Photo, upd.BannerImage, r.now()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return user, nil
}
