package auth

import (
	"net/mail"
	"regexp"
	"strings"

	"github.com/tendant/recipebox-idm/pkg/domain"
)

// Common disposable email domains to block (can be extended)
var disposableDomains = map[string]bool{
	"tempmail.com":      true,
	"10minutemail.com":  true,
	"guerrillamail.com": true,
	"mailinator.com":    true,
	"throwaway.email":   true,
}

// Domains whose mailboxes ignore dots in the local part.
var dotInsensitiveDomains = map[string]bool{
	"gmail.com":      true,
	"googlemail.com": true,
}

// Email validation regex (stricter than RFC 5322 for practical use)
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)+$`)

const maxEmailLength = 254 // RFC 5321

// ValidateEmail validates an email address for format and length.
// Failures are *domain.FieldError wrapping domain.ErrInvalidEmail.
func ValidateEmail(email string, strict bool, blockDisposable bool) error {
	if strings.TrimSpace(email) == "" {
		return domain.NewFieldError("email", domain.ErrInvalidEmail, "email address is required")
	}

	if len(email) > maxEmailLength {
		return domain.NewFieldError("email", domain.ErrInvalidEmail, "email address is too long (max %d characters)", maxEmailLength)
	}

	normalized := NormalizeEmail(email)

	// Use mail.ParseAddress for basic RFC 5322 compliance
	addr, err := mail.ParseAddress(normalized)
	if err != nil || addr.Address != normalized {
		return domain.NewFieldError("email", domain.ErrInvalidEmail, "invalid email address format")
	}
	if !strings.Contains(getDomain(addr.Address), ".") {
		return domain.NewFieldError("email", domain.ErrInvalidEmail, "invalid email address format")
	}

	if strict && !emailRegex.MatchString(addr.Address) {
		return domain.NewFieldError("email", domain.ErrInvalidEmail, "invalid email address format")
	}

	if blockDisposable && disposableDomains[getDomain(addr.Address)] {
		return domain.NewFieldError("email", domain.ErrInvalidEmail, "disposable email addresses are not allowed")
	}

	return nil
}

// NormalizeEmail returns the canonical form of an email address: trimmed,
// lowercased, and for gmail.com and googlemail.com with the dots removed
// from the local part. NormalizeEmail(NormalizeEmail(e)) == NormalizeEmail(e).
func NormalizeEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))

	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return email
	}
	local, host := email[:at], email[at+1:]
	if dotInsensitiveDomains[host] {
		local = strings.ReplaceAll(local, ".", "")
	}
	return local + "@" + host
}

// getDomain extracts the domain from an email address.
func getDomain(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return ""
	}
	return parts[1]
}
