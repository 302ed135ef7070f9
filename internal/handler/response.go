package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/josh-kwaku/banking-core/internal/domain"
	"github.com/josh-kwaku/banking-core/internal/dto"
	"github.com/josh-kwaku/banking-core/internal/logging"
)

func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func RespondSuccess(w http.ResponseWriter, status int, data any) {
	RespondJSON(w, status, dto.APIResponse{
		Success: true,
		Data:    data,
		Error:   nil,
	})
}

func RespondAppError(w http.ResponseWriter, appErr *AppError, details any) {
	RespondJSON(w, appErr.Status, dto.APIResponse{
		Success: false,
		Data:    nil,
		Error: &dto.APIError{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: details,
		},
	})
}

func RespondValidationError(w http.ResponseWriter, fields []dto.FieldError) {
	RespondAppError(w, ErrValidationFailed, fields)
}

// RespondDomainError writes err using the status of its kind and its stable
// code. Unclassified errors are logged and reported as internal.
func RespondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		logging.FromContext(r.Context()).Error("unhandled error", "error", err)
		RespondAppError(w, ErrInternalError, nil)
		return
	}

	var details any
	var tf *domain.TransferFailure
	if errors.As(err, &tf) {
		d := dto.TransferFailureDetails{
			Reference:   tf.Reference,
			Step:        string(tf.Step),
			Compensated: tf.Compensated,
		}
		var cause *domain.Error
		if errors.As(tf.Err, &cause) {
			d.Cause = cause.Code
		}
		details = d
	}

	if de.Kind == domain.KindUnavailable {
		logging.FromContext(r.Context()).Warn("request failed on unavailable dependency", "error", err)
	}

	RespondAppError(w, fromDomain(de), details)
}
