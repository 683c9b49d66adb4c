package booking

import "errors"

var (
	// ErrMissingName is returned when first or last name is absent.
	ErrMissingName = errors.New("first and last name are required")

	// ErrMissingEmail is returned when the customer email is absent.
	ErrMissingEmail = errors.New("email is required")

	// ErrMissingService is returned when no service id was supplied.
	ErrMissingService = errors.New("service id is required")

	// ErrMissingStart is returned when no start time was supplied.
	ErrMissingStart = errors.New("start time is required")

	// ErrInvalidWindow is returned when the supplied end precedes the start.
	ErrInvalidWindow = errors.New("end time must be after start time")

	// ErrSlotTaken is returned when the requested window collides with a
	// confirmed appointment.
	ErrSlotTaken = errors.New("slot no longer available")
)

// IsValidation reports whether err is a user-correctable input error.
func IsValidation(err error) bool {
	switch {
	case errors.Is(err, ErrMissingName),
		errors.Is(err, ErrMissingEmail),
		errors.Is(err, ErrMissingService),
		errors.Is(err, ErrMissingStart),
		errors.Is(err, ErrInvalidWindow):
		return true
	}
	return false
}
