package reservations

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("reservations: validation failed")

	// ErrConflict is returned when another reservation already holds the date and slot.
	ErrConflict = errors.New("reservations: slot already booked")

	// ErrNotFound is returned when no reservation matches.
	ErrNotFound = errors.New("reservations: not found")

	// ErrAmbiguousMatch is returned when a cancellation matches more than one reservation.
	ErrAmbiguousMatch = errors.New("reservations: multiple reservations match")

	// ErrDateBlocked is returned when booking on a blocked date.
	ErrDateBlocked = errors.New("reservations: date is blocked")

	// ErrAlreadyBlocked is returned when blocking a date twice.
	ErrAlreadyBlocked = errors.New("reservations: date already blocked")
)

// ValidationError describes a missing or malformed field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

const reasonShortPhone = "must contain at least 10 digits"

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
