package domain

import (
	"time"

	"github.com/google/uuid"
)

// Session is an issued bearer token.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// Identity is the authenticated caller carried by a session token.
type Identity struct {
	UserID uuid.UUID
	Email  string
}
