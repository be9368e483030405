package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConflict is returned when a (date, time) pair is already reserved.
var ErrConflict = errors.New("time slot already booked")

// ValidationError rejects a request before any state is touched.
type ValidationError struct {
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) > 0 {
		return "Missing required fields: " + strings.Join(e.Fields, ", ")
	}
	return e.Reason
}

// InviteEncodingError means the slot was reserved but no invite could be produced.
type InviteEncodingError struct {
	Err error
}

func (e *InviteEncodingError) Error() string {
	return fmt.Sprintf("encode calendar invite: %v", e.Err)
}

func (e *InviteEncodingError) Unwrap() error { return e.Err }

// DeliveryError means the slot was reserved but a notification was not delivered.
type DeliveryError struct {
	Recipient string
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver mail to %s: %v", e.Recipient, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
