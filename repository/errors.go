package repository

import (
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

// IsRecordNotFound reports whether err means no row matched
func IsRecordNotFound(err error) bool {
	if err == nil {
		return false
	}
	return repository.IsRecordNotFound(err) || goerrors.IsNotFound(err)
}
