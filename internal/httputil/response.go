package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/tendant/recipebox-idm/pkg/domain"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Message     string            `json:"message"`
	FieldErrors map[string]string `json:"fieldErrors,omitempty"`
}

var (
	errInvalidBody  = errors.New("invalid request body")
	errBodyTooLarge = errors.New("request body too large")
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error writes an error response with a message.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Message: message})
}

// ValidationError writes a 400 response with per-field messages.
func ValidationError(w http.ResponseWriter, message string, fieldErrors map[string]string) {
	JSON(w, http.StatusBadRequest, ErrorResponse{Message: message, FieldErrors: fieldErrors})
}

// DecodeJSON decodes the request body into dst and validates its
// `validate` struct tags. Errors are meant for WriteError.
func DecodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errBodyTooLarge
		}
		return errInvalidBody
	}
	return validate.Struct(dst)
}

// WriteError maps err to a status code and writes it. Internal and upstream
// failures are logged and answered with a generic message.
func WriteError(w http.ResponseWriter, logger *slog.Logger, err error, attrs ...any) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		Error(w, http.StatusRequestEntityTooLarge, errBodyTooLarge.Error())
		return
	case errors.Is(err, errInvalidBody):
		Error(w, http.StatusBadRequest, errInvalidBody.Error())
		return
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fieldMessage(fe)
		}
		ValidationError(w, domain.ErrValidation.Error(), fields)
		return
	}

	var fieldErr *domain.FieldError
	if errors.As(err, &fieldErr) {
		ValidationError(w, fieldErr.Message, map[string]string{fieldErr.Field: fieldErr.Message})
		return
	}

	switch domain.KindOf(err) {
	case domain.KindValidation:
		Error(w, http.StatusBadRequest, domain.Sentinel(err).Error())
	case domain.KindAuthentication:
		Error(w, http.StatusUnauthorized, domain.Sentinel(err).Error())
	case domain.KindNotFound:
		Error(w, http.StatusNotFound, domain.Sentinel(err).Error())
	case domain.KindConflict:
		Error(w, http.StatusConflict, domain.Sentinel(err).Error())
	default:
		if logger != nil {
			logger.Error("request failed", append([]any{"error", err, "kind", domain.KindOf(err).String()}, attrs...)...)
		}
		Error(w, http.StatusInternalServerError, "internal server error")
	}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return "invalid email address"
	case "min":
		return fe.Field() + " must be at least " + fe.Param() + " characters"
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	case "len":
		return fe.Field() + " must be " + fe.Param() + " characters"
	case "numeric":
		return fe.Field() + " must contain only digits"
	default:
		return fe.Field() + " is invalid"
	}
}
