package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/vanshika/finbridge/internal/domain"
)

// Validator performs structural and business rule checking of inbound
// transaction requests. Violations accumulate rather than failing fast.
type Validator struct {
	validate *validator.Validate
}

// NewValidator constructs a Validator with json-tag field naming.
func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v}
}

// Validate returns every violation found in the request; an empty slice
// means the request is valid.
func (v *Validator) Validate(req domain.TransactionRequest) []ValidationError {
	var errs []ValidationError

	if err := v.validate.Struct(req); err != nil {
		var fieldErrors validator.ValidationErrors
		if errors.As(err, &fieldErrors) {
			for _, fe := range fieldErrors {
				errs = append(errs, translateFieldError(fe))
			}
		}
	}

	if req.TransactionType != "" && !domain.IsValidTransactionType(req.TransactionType) {
		errs = append(errs, ValidationError{
			Field: "transaction_type",
			Message: fmt.Sprintf("Invalid transaction type %q, must be one of: %s",
				req.TransactionType, strings.Join(domain.ValidTransactionTypes, ", ")),
		})
	}

	errs = append(errs, businessRuleErrors(req)...)
	return errs
}

func businessRuleErrors(req domain.TransactionRequest) []ValidationError {
	var errs []ValidationError

	if domain.IsMonetary(req.TransactionType) {
		amount := decimal.NewFromFloat(req.Amount)
		if amount.LessThanOrEqual(decimal.Zero) {
			errs = append(errs, ValidationError{
				Field:   "amount",
				Message: fmt.Sprintf("Amount must be greater than zero for %s transactions", req.TransactionType),
			})
		}
		if req.Currency == "" {
			errs = append(errs, ValidationError{
				Field:   "currency",
				Message: fmt.Sprintf("Currency is required for %s transactions", req.TransactionType),
			})
		}
	}

	switch req.TransactionType {
	case "transfer":
		if !payloadHas(req.Payload, "source_account") {
			errs = append(errs, ValidationError{
				Field:   "payload.source_account",
				Message: "Source account is required for transfer transactions",
			})
		}
		if !payloadHas(req.Payload, "destination_account") {
			errs = append(errs, ValidationError{
				Field:   "payload.destination_account",
				Message: "Destination account is required for transfer transactions",
			})
		}
	case "payment":
		if !payloadHas(req.Payload, "beneficiary") {
			errs = append(errs, ValidationError{
				Field:   "payload.beneficiary",
				Message: "Beneficiary information is required for payment transactions",
			})
		}
	}

	return errs
}

func payloadHas(payload map[string]any, key string) bool {
	if payload == nil {
		return false
	}
	value, ok := payload[key]
	if !ok || value == nil {
		return false
	}
	if s, isString := value.(string); isString {
		return strings.TrimSpace(s) != ""
	}
	return true
}

func translateFieldError(fe validator.FieldError) ValidationError {
	field := fe.Field()
	var message string
	switch fe.Tag() {
	case "required":
		message = fmt.Sprintf("The %s field is required", field)
	case "oneof":
		message = fmt.Sprintf("The %s field must be one of: %s", field, fe.Param())
	case "len":
		message = fmt.Sprintf("The %s field must be exactly %s characters", field, fe.Param())
	default:
		message = fmt.Sprintf("The %s field is invalid", field)
	}
	return ValidationError{Field: field, Message: message}
}
