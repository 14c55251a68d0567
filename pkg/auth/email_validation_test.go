package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tendant/recipebox-idm/pkg/domain"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name            string
		email           string
		strict          bool
		blockDisposable bool
		wantErr         bool
	}{
		{
			name:    "valid email",
			email:   "test@example.com",
			wantErr: false,
		},
		{
			name:    "valid email with subdomain",
			email:   "test@mail.example.com",
			wantErr: false,
		},
		{
			name:    "valid email with plus",
			email:   "test+tag@example.com",
			wantErr: false,
		},
		{
			name:    "valid gmail with dots",
			email:   "A.B@GMAIL.com",
			wantErr: false,
		},
		{
			name:    "empty email",
			email:   "",
			wantErr: true,
		},
		{
			name:    "whitespace only",
			email:   "   ",
			wantErr: true,
		},
		{
			name:    "invalid - no @",
			email:   "invalid.com",
			wantErr: true,
		},
		{
			name:    "invalid - no domain",
			email:   "test@",
			wantErr: true,
		},
		{
			name:    "invalid - no local part",
			email:   "@example.com",
			wantErr: true,
		},
		{
			name:    "invalid - domain without dot",
			email:   "test@localhost",
			wantErr: true,
		},
		{
			name:    "invalid - display name form",
			email:   "Ann <ann@example.com>",
			wantErr: true,
		},
		{
			name:    "too long",
			email:   strings.Repeat("a", 300) + "@example.com",
			wantErr: true,
		},
		{
			name:            "disposable email - blocked",
			email:           "test@tempmail.com",
			blockDisposable: true,
			wantErr:         true,
		},
		{
			name:            "disposable email - allowed",
			email:           "test@tempmail.com",
			blockDisposable: false,
			wantErr:         false,
		},
		{
			name:    "strict mode - valid",
			email:   "test@example.com",
			strict:  true,
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email, tt.strict, tt.blockDisposable)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidEmail)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  string
	}{
		{
			name:  "lowercase",
			email: "Test@Example.COM",
			want:  "test@example.com",
		},
		{
			name:  "trim spaces",
			email: "  test@example.com  ",
			want:  "test@example.com",
		},
		{
			name:  "both",
			email: "  Test@Example.COM  ",
			want:  "test@example.com",
		},
		{
			name:  "gmail dots removed",
			email: "a.b.c@gmail.com",
			want:  "abc@gmail.com",
		},
		{
			name:  "googlemail dots removed",
			email: "First.Last@GoogleMail.com",
			want:  "firstlast@googlemail.com",
		},
		{
			name:  "gmail mixed case",
			email: "A.B@GMAIL.com",
			want:  "ab@gmail.com",
		},
		{
			name:  "dots kept for other domains",
			email: "first.last@example.com",
			want:  "first.last@example.com",
		},
		{
			name:  "dots kept in gmail subdomain lookalike",
			email: "a.b@mail.gmail.com",
			want:  "a.b@mail.gmail.com",
		},
		{
			name:  "no at sign",
			email: "Not.An.Email",
			want:  "not.an.email",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeEmail(tt.email))
		})
	}
}

func TestNormalizeEmail_Idempotent(t *testing.T) {
	inputs := []string{
		"A.B@GMAIL.com",
		"  x.y@googlemail.com ",
		"Mixed.Case@Example.org",
		"plain",
		"@gmail.com",
		"a..b@gmail.com",
	}

	for _, in := range inputs {
		once := NormalizeEmail(in)
		twice := NormalizeEmail(once)
		assert.Equal(t, once, twice, "NormalizeEmail(%q) not idempotent", in)
	}
}

func TestNormalizeEmail_SameAccount(t *testing.T) {
	assert.Equal(t, NormalizeEmail("ab@gmail.com"), NormalizeEmail("A.B@GMAIL.com"))
}
