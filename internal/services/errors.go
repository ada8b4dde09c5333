// Package services provides business logic and orchestration services.
package services

import (
	"errors"
	"fmt"
)

// ErrValidation marks errors caused by bad caller input. The HTTP layer maps
// it to 400.
var ErrValidation = errors.New("validation failed")

func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrValidation, err)
}
