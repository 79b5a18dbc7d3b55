package apperr

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

var (
	// ErrValidation is returned when the input shape is wrong and the caller can fix it.
	ErrValidation = errors.New("validation error")
	// ErrInvalidCredentials is the single login failure signal.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrConflict is returned when a username or email is already taken.
	ErrConflict = errors.New("username or email already exists")
	// ErrNotFound is returned when an account is absent or inactive.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is returned when a bearer token is missing, invalid or expired.
	ErrUnauthorized = errors.New("unauthorized access")
	// ErrForbidden is returned when an origin or role check fails.
	ErrForbidden = errors.New("forbidden")
	// ErrRateLimited is returned when a client exceeds its request budget.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrInternal covers hashing, signing and directory faults.
	ErrInternal = errors.New("internal server error")
)

// ErrorResponse is the JSON body written for every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type kind struct {
	sentinel error
	status   int
	code     string
}

var kinds = []kind{
	{ErrValidation, http.StatusBadRequest, "VALIDATION_ERROR"},
	{ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
	{ErrConflict, http.StatusConflict, "CONFLICT"},
	{ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
	{ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
	{ErrRateLimited, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED"},
	{ErrInternal, http.StatusInternalServerError, "INTERNAL_ERROR"},
}

// validationError pairs a caller-facing detail with a cause that is only
// logged.
type validationError struct {
	detail string
	cause  error
}

// Validation returns an ErrValidation whose response message is detail alone.
// cause, if any, stays reachable through errors.Is/As and Error for logs.
func Validation(detail string, cause error) error {
	return &validationError{detail: detail, cause: cause}
}

func (e *validationError) public() string {
	return ErrValidation.Error() + ": " + e.detail
}

func (e *validationError) Error() string {
	if e.cause == nil {
		return e.public()
	}
	return e.public() + ": " + e.cause.Error()
}

func (e *validationError) Unwrap() []error {
	if e.cause == nil {
		return []error{ErrValidation}
	}
	return []error{ErrValidation, e.cause}
}

// ToHTTP maps an error from the taxonomy onto an echo HTTP error. Only the
// sentinel's message leaves the process, plus the detail of a Validation
// error. Anything outside the taxonomy becomes 500.
func ToHTTP(err error) *echo.HTTPError {
	for _, k := range kinds {
		if !errors.Is(err, k.sentinel) {
			continue
		}
		msg := k.sentinel.Error()
		var ve *validationError
		if k.sentinel == ErrValidation && errors.As(err, &ve) {
			msg = ve.public()
		}
		he := echo.NewHTTPError(k.status, ErrorResponse{Error: msg, Code: k.code})
		he.Internal = err
		return he
	}
	he := echo.NewHTTPError(http.StatusInternalServerError, ErrorResponse{
		Error: ErrInternal.Error(),
		Code:  "INTERNAL_ERROR",
	})
	he.Internal = err
	return he
}

// Known reports whether err wraps one of the taxonomy sentinels.
func Known(err error) bool {
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) {
			return true
		}
	}
	return false
}
