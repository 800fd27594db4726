package validate

import (
	"github.com/go-playground/validator/v10"
)

// validate is the shared validator instance; validator.Validate caches
// struct metadata and is safe for concurrent use.
var validate = validator.New(validator.WithRequiredStructEnabled())

// LoginInput carries the login form fields. Limits match the backend's.
type LoginInput struct {
	Email    string `validate:"required,email,max=255"`
	Password string `validate:"required,min=8,max=128"`
}

// RefundInput carries the refund request form fields.
type RefundInput struct {
	PaymentID string  `validate:"required"`
	Amount    float64 `validate:"required,gt=0"`
	Reason    string  `validate:"required,min=3"`
}

// Struct validates any tagged struct and returns the validator error
// unchanged so callers can inspect field errors.
func Struct(v interface{}) error {
	return validate.Struct(v)
}

// FieldMessage maps a validation error to a short user-facing message for
// the first failing field. Validation failures block submission locally
// and are never logged as system errors.
func FieldMessage(err error) string {
	errs, ok := err.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		return "Invalid input"
	}

	fe := errs[0]
	switch fe.Field() {
	case "Email":
		return "Please enter a valid email address (max 255 characters)"
	case "Password":
		return "Password must be between 8 and 128 characters"
	case "Amount":
		return "Amount must be greater than 0"
	case "Reason":
		return "Please enter a reason for the refund"
	case "PaymentID":
		return "No payment selected to refund"
	default:
		return "Invalid " + fe.Field()
	}
}
