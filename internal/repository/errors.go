package repository

import (
	"errors"

	apperrors "github.com/jwalitptl/hms-api/pkg/errors"
)

// AppError converts a storage error into the application error callers
// expect. Errors that are already AppErrors pass through unchanged.
func AppError(resource string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, ErrNotFound):
		return apperrors.NotFound(resource, err)
	case errors.Is(err, ErrStaleWrite):
		return apperrors.Conflict(resource+" was modified by another request", err)
	case errors.Is(err, ErrDuplicate):
		return apperrors.Conflict(resource+" already exists", err)
	default:
		return apperrors.Internal(err)
	}
}
