package validate

import "github.com/go-playground/validator/v10"

var validate = validator.New(validator.WithRequiredStructEnabled())

// Struct validates the `validate` tags on v. Used at the transport
// boundary so malformed payloads never reach core state.
func Struct(v any) error {
	return validate.Struct(v)
}
