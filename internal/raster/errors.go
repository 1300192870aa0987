package raster

import (
	"errors"
	"fmt"
)

// InvalidInputError reports a malformed, empty, or non-finite grid.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return "invalid input: " + e.Reason
}

// InvalidConfigError reports a malformed threshold, band, sector, or
// baseline configuration.
type InvalidConfigError struct {
	Reason string
}

func (e *InvalidConfigError) Error() string {
	return "invalid config: " + e.Reason
}

// EmptyGridError reports a well-formed grid with no occupied cells reaching
// an operation that needs at least one.
type EmptyGridError struct {
	Op string
}

func (e *EmptyGridError) Error() string {
	return fmt.Sprintf("empty grid: %s requires at least one occupied cell", e.Op)
}

// InvalidInput returns an *InvalidInputError with a formatted reason.
func InvalidInput(format string, args ...any) error {
	return &InvalidInputError{Reason: fmt.Sprintf(format, args...)}
}

// InvalidConfig returns an *InvalidConfigError with a formatted reason.
func InvalidConfig(format string, args ...any) error {
	return &InvalidConfigError{Reason: fmt.Sprintf(format, args...)}
}

// EmptyGrid returns an *EmptyGridError for the named operation.
func EmptyGrid(op string) error {
	return &EmptyGridError{Op: op}
}

// IsInvalidInput returns true if err (or any error in its chain) is an InvalidInputError.
func IsInvalidInput(err error) bool {
	var e *InvalidInputError
	return errors.As(err, &e)
}

// IsInvalidConfig returns true if err (or any error in its chain) is an InvalidConfigError.
func IsInvalidConfig(err error) bool {
	var e *InvalidConfigError
	return errors.As(err, &e)
}

// IsEmptyGrid returns true if err (or any error in its chain) is an EmptyGridError.
func IsEmptyGrid(err error) bool {
	var e *EmptyGridError
	return errors.As(err, &e)
}
