package accountdelivery

import (
	"github.com/go-playground/validator/v10"

	"github.com/mockbank/ledgersvc/internal/domain"
)

// ValidStatus validates whether the account status is a known value.
var ValidStatus validator.Func = func(fl validator.FieldLevel) bool {
	if s, ok := fl.Field().Interface().(string); ok {
		return domain.ValidAccountStatus(s)
	}

	return false
}
