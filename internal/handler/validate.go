package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/banking-core/internal/domain"
	"github.com/josh-kwaku/banking-core/internal/dto"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})

		// Registration only fails on an empty tag or nil func.
		_ = v.RegisterValidation("money", func(fl validator.FieldLevel) bool {
			d, err := decimal.NewFromString(fl.Field().String())
			return err == nil && domain.ValidateAmount(d) == nil
		})
		_ = v.RegisterValidation("decimal", func(fl validator.FieldLevel) bool {
			d, err := decimal.NewFromString(fl.Field().String())
			return err == nil && domain.InScale(d)
		})
		_ = v.RegisterValidation("account_type", func(fl validator.FieldLevel) bool {
			return domain.AccountType(fl.Field().String()).IsValid()
		})
		_ = v.RegisterValidation("account_status", func(fl validator.FieldLevel) bool {
			return domain.AccountStatus(fl.Field().String()).IsValid()
		})
		_ = v.RegisterValidation("mutation_kind", func(fl validator.FieldLevel) bool {
			return domain.MutationKind(fl.Field().String()).IsValid()
		})
		_ = v.RegisterValidation("transaction_type", func(fl validator.FieldLevel) bool {
			return domain.TransactionType(fl.Field().String()).IsValid()
		})
		validate = v
	})
	return validate
}

var fieldMessages = map[string]string{
	"required":         "required",
	"max":              "too long",
	"min":              "too short",
	"uuid":             "must be a valid UUID",
	"money":            "must be a positive amount with at most two decimal places",
	"decimal":          "must be a number with at most two decimal places",
	"account_type":     "must be SAVINGS, CURRENT, or FIXED_DEPOSIT",
	"account_status":   "must be PENDING, ACTIVE, or CLOSED",
	"mutation_kind":    "must be DEBIT, CREDIT, or REVERSAL",
	"transaction_type": "must be DEPOSIT, WITHDRAWAL, or INTERNAL_TRANSFER",
}

func validateStruct(req any) []dto.FieldError {
	err := getValidator().Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []dto.FieldError{{Field: "body", Message: err.Error()}}
	}

	fields := make([]dto.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		msg, ok := fieldMessages[fe.Tag()]
		if !ok {
			msg = "invalid value"
		}
		fields = append(fields, dto.FieldError{Field: fieldPath(fe), Message: msg})
	}
	return fields
}

// fieldPath drops the root struct name from the namespace, so nested entries
// come out as "entries[1].amount".
func fieldPath(fe validator.FieldError) string {
	_, path, found := strings.Cut(fe.Namespace(), ".")
	if !found {
		return fe.Field()
	}
	return path
}

// decodeAndValidate reads a JSON body into req and runs its validation tags.
// It writes the error response itself and reports whether the handler should
// continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return false
	}
	if fields := validateStruct(req); len(fields) > 0 {
		RespondValidationError(w, fields)
		return false
	}
	return true
}
