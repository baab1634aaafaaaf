package repository

import (
	"errors"
	"fmt"

	"github.com/example/dinein/pkg/apperr"
)

// Describe turns store sentinels into service errors. what names the entity
// for the user-facing message, e.g. "table 65f...".
func Describe(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return apperr.NotFoundf("%s not found", what)
	case errors.Is(err, ErrStale):
		return apperr.Wrap(apperr.Conflict, err, fmt.Sprintf("%s was changed concurrently, try again", what))
	default:
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return err
		}
		return fmt.Errorf("failed to load %s: %w", what, err)
	}
}
