package authflow

import (
	"errors"
	"strings"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// MinPasswordLength is the shortest password accepted on sign up
const MinPasswordLength = 8

var errPasswordComposition = errors.New("must include an uppercase letter, a lowercase letter, and a number")

// NormalizeEmail trims whitespace and lower cases the address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks the (already normalized) email format
func ValidateEmail(email string) error {
	err := validation.Validate(email,
		validation.Required,
		validation.Length(3, 254),
		is.Email,
	)
	if err != nil {
		return newAuthError(KindInvalidEmailFormat, err)
	}
	return nil
}

// ValidatePassword enforces the sign up strength policy
func ValidatePassword(password string) error {
	err := validation.Validate(password,
		validation.Required,
		validation.Length(MinPasswordLength, 0),
		validation.By(passwordComposition),
	)
	if err != nil {
		return newAuthError(KindWeakPassword, err)
	}
	return nil
}

// ValidateSignUp validates sign up input before it reaches the backend
func ValidateSignUp(email, password string) error {
	if err := ValidateEmail(email); err != nil {
		return err
	}
	return ValidatePassword(password)
}

// ValidateSignIn validates sign in input. Password strength is not checked
// so accounts created under an older policy can still sign in.
func ValidateSignIn(email, password string) error {
	if err := ValidateEmail(email); err != nil {
		return err
	}
	if strings.TrimSpace(password) == "" {
		return newAuthError(KindInvalidCredentials, errors.New("password is required"))
	}
	return nil
}

func passwordComposition(value any) error {
	s, _ := value.(string)
	var upper, lower, digit bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if upper && lower && digit {
		return nil
	}
	return errPasswordComposition
}
