package utils

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Failure codes returned to callers in the "error" field of ErrorResponse.
const (
	CodeNotFound          = "notFound"
	CodeValidation        = "validation"
	CodeAlreadyAdmin      = "alreadyAdmin"
	CodeSelfRemoval       = "selfRemoval"
	CodeUserNotFound      = "userNotFound"
	CodeAlreadyEnrolled   = "alreadyEnrolled"
	CodeOrderNotMutable   = "orderNotMutable"
	CodeOrderNotPending   = "orderNotPending"
	CodeEnrollmentFailed  = "enrollmentFailed"
	CodePaymentIncomplete = "paymentIncomplete"
	CodeUnavailable       = "unavailable"
	CodeUnauthorized      = "unauthorized"
	CodeForbidden         = "forbidden"
	CodeConflict          = "conflict"
	CodeInternal          = "internal"
)

// AppError is the failure result of a service operation.
type AppError struct {
	Status int
	Code   string
	Err    error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	return fmt.Sprintf("app error (%d)", e.Status)
}

func (e *AppError) Unwrap() error { return e.Err }

func NewAppError(status int, code string, err error) *AppError {
	return &AppError{Status: status, Code: code, Err: err}
}

func NotFoundError(format string, args ...interface{}) *AppError {
	return NewAppError(fiber.StatusNotFound, CodeNotFound, fmt.Errorf(format, args...))
}

func ValidationErr(format string, args ...interface{}) *AppError {
	return NewAppError(fiber.StatusBadRequest, CodeValidation, fmt.Errorf(format, args...))
}

func CodedError(status int, code string, format string, args ...interface{}) *AppError {
	return NewAppError(status, code, fmt.Errorf(format, args...))
}

// InternalError wraps an infrastructure failure with a human-readable operation name.
func InternalError(op string, err error) *AppError {
	return NewAppError(fiber.StatusInternalServerError, CodeInternal, fmt.Errorf("%s: %w", op, err))
}

// AsAppError converts any error into an *AppError. Unknown errors become internal failures.
func AsAppError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return NewAppError(fiberErr.Code, codeForStatus(fiberErr.Code), err)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NewAppError(fiber.StatusNotFound, CodeNotFound, err)
	}
	return NewAppError(fiber.StatusInternalServerError, CodeInternal, err)
}

// HasCode reports whether err carries the given failure code.
func HasCode(err error, code string) bool {
	appErr := AsAppError(err)
	return appErr != nil && appErr.Code == code
}

func codeForStatus(status int) string {
	switch status {
	case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity:
		return CodeValidation
	case fiber.StatusUnauthorized:
		return CodeUnauthorized
	case fiber.StatusForbidden:
		return CodeForbidden
	case fiber.StatusNotFound:
		return CodeNotFound
	case fiber.StatusConflict:
		return CodeConflict
	case fiber.StatusServiceUnavailable:
		return CodeUnavailable
	}
	return CodeInternal
}
