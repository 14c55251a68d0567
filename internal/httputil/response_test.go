package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tendant/recipebox-idm/pkg/domain"
)

type signupBody struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestWriteError_StatusMap(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
	}{
		{"not found", domain.ErrUserNotFound, http.StatusNotFound, "user not found"},
		{"conflict", fmt.Errorf("signup: %w", domain.ErrUserAlreadyExists), http.StatusConflict, "user already exists"},
		{"identity conflict", domain.ErrIdentityConflict, http.StatusConflict, domain.ErrIdentityConflict.Error()},
		{"validation", domain.ErrInvalidOrExpiredCode, http.StatusBadRequest, "invalid or expired verification code"},
		{"authentication", domain.ErrInvalidCredentials, http.StatusUnauthorized, "invalid credentials"},
		{"upstream", fmt.Errorf("%w: smtp down", domain.ErrNotificationFailed), http.StatusInternalServerError, "internal server error"},
		{"internal", errors.New("db exploded"), http.StatusInternalServerError, "internal server error"},
		{"body too large", errBodyTooLarge, http.StatusRequestEntityTooLarge, "request body too large"},
		{"bad body", errInvalidBody, http.StatusBadRequest, "invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, logger, tt.err)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			resp := decodeError(t, w)
			if resp.Message != tt.wantMessage {
				t.Errorf("message = %q, want %q", resp.Message, tt.wantMessage)
			}
			if resp.FieldErrors != nil {
				t.Errorf("fieldErrors = %v, want none", resp.FieldErrors)
			}
		})
	}
}

func TestWriteError_FieldError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, nil, domain.NewFieldError("password", domain.ErrWeakPassword, "password must contain at least one number"))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	resp := decodeError(t, w)
	if got := resp.FieldErrors["password"]; got != "password must contain at least one number" {
		t.Errorf("fieldErrors[password] = %q", got)
	}
}

func TestWriteError_DoesNotLeakInternalDetail(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	w := httptest.NewRecorder()
	WriteError(w, logger, errors.New("pq: password authentication failed"), "user_id", "u-1")

	if strings.Contains(w.Body.String(), "pq:") {
		t.Errorf("response leaks cause: %s", w.Body.String())
	}
	if !strings.Contains(buf.String(), "pq: password authentication failed") || !strings.Contains(buf.String(), "u-1") {
		t.Errorf("log missing cause or attrs: %s", buf.String())
	}
}

func TestDecodeJSON(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Ada","email":"ada@example.com"}`))
		var body signupBody
		if err := DecodeJSON(r, &body); err != nil {
			t.Fatalf("DecodeJSON() error = %v", err)
		}
		if body.Name != "Ada" {
			t.Errorf("Name = %q", body.Name)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`))
		var body signupBody
		err := DecodeJSON(r, &body)

		w := httptest.NewRecorder()
		WriteError(w, nil, err)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("missing fields use json names", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":""}`))
		var body signupBody
		err := DecodeJSON(r, &body)

		w := httptest.NewRecorder()
		WriteError(w, nil, err)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
		resp := decodeError(t, w)
		if _, ok := resp.FieldErrors["email"]; !ok {
			t.Errorf("fieldErrors missing email: %v", resp.FieldErrors)
		}
		if _, ok := resp.FieldErrors["name"]; !ok {
			t.Errorf("fieldErrors missing name: %v", resp.FieldErrors)
		}
	})

	t.Run("too large", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"`+strings.Repeat("a", 200)+`"}`))
		r.Body = http.MaxBytesReader(w, r.Body, 50)

		var body signupBody
		err := DecodeJSON(r, &body)
		WriteError(w, nil, err)
		if w.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("status = %d, want 413", w.Code)
		}
	})
}
