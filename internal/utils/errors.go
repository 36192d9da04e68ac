package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"runtime"
	"strings"

	"github.com/go-playground/validator/v10"

	"natours/internal/auth"
	"natours/internal/repo"
)

const (
	CodeValidation            = "VALIDATION_ERROR"
	CodeUnauthenticated       = "UNAUTHENTICATED"
	CodeInvalidToken          = "INVALID_TOKEN"
	CodeTokenExpired          = "TOKEN_EXPIRED"
	CodeUserNoLongerExists    = "USER_NO_LONGER_EXISTS"
	CodePasswordChangedSince  = "PASSWORD_CHANGED_SINCE"
	CodeTokenInvalidOrExpired = "TOKEN_INVALID_OR_EXPIRED"
	CodeForbidden             = "FORBIDDEN"
	CodeNotFound              = "NOT_FOUND"
	CodeConflict              = "CONFLICT"
	CodeTooLarge              = "PAYLOAD_TOO_LARGE"
	CodeRateLimit             = "RATE_LIMIT"
	CodeUpstream              = "UPSTREAM_FAILURE"
	CodeInternal              = "INTERNAL_ERROR"
)

// AppError is a failure with a client-facing message. Operational errors are
// expected ones whose message is safe to show in production.
type AppError struct {
	Status      int
	Code        string
	Message     string
	Details     interface{}
	Operational bool
	Err         error
	stack       []uintptr
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusText is "fail" for client errors and "error" for everything else.
func (e *AppError) StatusText() string {
	if e.Status >= 400 && e.Status < 500 {
		return "fail"
	}
	return "error"
}

// Stack renders the call stack captured when the error was created.
func (e *AppError) Stack() string {
	if len(e.stack) == 0 {
		return ""
	}
	frames := runtime.CallersFrames(e.stack)
	var b strings.Builder
	for {
		frame, more := frames.Next()
		fmt.Fprintf(&b, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
		if !more {
			break
		}
	}
	return b.String()
}

func NewAppError(status int, code, message string, details interface{}) *AppError {
	return &AppError{Status: status, Code: code, Message: message, Details: details, Operational: true, stack: callers()}
}

// WrapAppError is NewAppError keeping the underlying cause for logs.
func WrapAppError(status int, code, message string, err error) *AppError {
	appErr := NewAppError(status, code, message, nil)
	appErr.Err = err
	return appErr
}

func BadRequest(message string) *AppError {
	return NewAppError(http.StatusBadRequest, CodeValidation, message, nil)
}

func Unauthenticated(code, message string) *AppError {
	return NewAppError(http.StatusUnauthorized, code, message, nil)
}

func Forbidden() *AppError {
	return NewAppError(http.StatusForbidden, CodeForbidden, "You do not have permission to perform this action", nil)
}

func NotFound(message string) *AppError {
	return NewAppError(http.StatusNotFound, CodeNotFound, message, nil)
}

func Upstream(status int, message string, err error) *AppError {
	return WrapAppError(status, CodeUpstream, message, err)
}

// Internal wraps an unanticipated failure. Its cause is logged, never shown in
// production.
func Internal(err error) *AppError {
	return &AppError{
		Status:  http.StatusInternalServerError,
		Code:    CodeInternal,
		Message: "Something went wrong!",
		Err:     err,
		stack:   callers(),
	}
}

// Normalize maps any error into an AppError.
func Normalize(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, auth.ErrInvalidToken):
		return Unauthenticated(CodeInvalidToken, "Invalid token. Please log in again!")
	case errors.Is(err, auth.ErrTokenExpired):
		return Unauthenticated(CodeTokenExpired, "Your token has expired! Please log in again.")
	case errors.Is(err, repo.ErrNotFound):
		return NotFound("No document found with that ID")
	}

	var dupErr *repo.DuplicateError
	if errors.As(err, &dupErr) {
		return NewAppError(http.StatusConflict, CodeConflict,
			fmt.Sprintf("Duplicate field value: %s. Please use another value.", dupErr.Value), nil)
	}

	var idErr *repo.InvalidIDError
	if errors.As(err, &idErr) {
		return BadRequest(fmt.Sprintf("Invalid %s: %s.", idErr.Field, idErr.Value))
	}

	var constraintErr *repo.ConstraintError
	if errors.As(err, &constraintErr) {
		return BadRequest(fmt.Sprintf("Invalid input data. Constraint %s failed.", constraintErr.Constraint))
	}

	var queryErr *repo.InvalidQueryError
	if errors.As(err, &queryErr) {
		return BadRequest(fmt.Sprintf("Invalid query parameter %s: %s.", queryErr.Param, queryErr.Value))
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		messages := make([]string, 0, len(validationErrs))
		for _, fe := range validationErrs {
			messages = append(messages, fieldMessage(fe))
		}
		return NewAppError(http.StatusBadRequest, CodeValidation,
			"Invalid input data. "+strings.Join(messages, ". "), messages)
	}

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return NewAppError(http.StatusRequestEntityTooLarge, CodeTooLarge,
			fmt.Sprintf("Request body exceeds %d bytes", maxBytesErr.Limit), nil)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return BadRequest("Invalid input data. " + err.Error())
	}

	return Internal(err)
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("Please provide %s", field)
	case "email":
		return "Please provide a valid email"
	case "eqfield":
		if field == "passwordConfirm" {
			return "Passwords are not the same"
		}
		return fmt.Sprintf("%s must match %s", field, fe.Param())
	case "ltfield":
		return fmt.Sprintf("%s (%v) should be below %s", field, fe.Value(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s is either: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min", "gte":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must have at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must have at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "role":
		return fmt.Sprintf("%s is not a valid role", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func callers() []uintptr {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(3, pcs)
	return pcs[:n]
}
