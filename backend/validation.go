package backend

import (
	"fmt"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

func validateEmail(email string) error {
	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		return fmt.Errorf("%s", msgInvalidEmail)
	}
	return nil
}

func validatePassword(password string, minLength int) error {
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}

	if len(password) < minLength || !upper || !lower || !digit {
		return fmt.Errorf(msgWeakPassword, minLength)
	}
	return nil
}

func newHashID(email string) (uuid.UUID, error) {
	return hashid.NewUUID(email)
}
