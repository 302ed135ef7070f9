package handler

import (
	"net/http"

	"github.com/josh-kwaku/banking-core/internal/domain"
)

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken     = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken     = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrInvalidRequest   = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrInternalError    = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}
)

var kindStatus = map[domain.ErrorKind]int{
	domain.KindNotFound:           http.StatusNotFound,
	domain.KindConflict:           http.StatusConflict,
	domain.KindPreconditionFailed: http.StatusUnprocessableEntity,
	domain.KindUnavailable:        http.StatusServiceUnavailable,
	domain.KindInvalid:            http.StatusBadRequest,
}

func fromDomain(de *domain.Error) *AppError {
	status, ok := kindStatus[de.Kind]
	if !ok {
		return ErrInternalError
	}
	return &AppError{Status: status, Code: de.Code, Message: de.Message}
}
