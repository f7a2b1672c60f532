package identity

import (
	"unicode"

	"github.com/go-playground/validator/v10"

	"campuschat/errors"
)

var validate = validator.New()

// SignupRequest is validated before any cryptographic work happens.
type SignupRequest struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=10,max=72"`
}

func ValidateSignup(req SignupRequest) error {
	if err := validate.Struct(req); err != nil {
		return err
	}
	if !complexEnough(req.Password) {
		return errors.ErrInvalidPassword
	}
	return nil
}

// complexEnough requires at least one upper, lower, digit and symbol rune.
func complexEnough(s string) bool {
	var upper, lower, digit, special bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsNumber(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	return upper && lower && digit && special
}
