package errors

import (
	"errors"
	"fmt"
)

// Common low-level errors shared by the storage backends and the fake backend
var (
	ErrNotFound    = errors.New("not found")
	ErrEmptyKey    = errors.New("key is required")
	ErrUnsupported = errors.New("unsupported operation")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Join joins the non-nil errors, returning nil when all are nil
func Join(errs ...error) error {
	return errors.Join(errs...)
}
