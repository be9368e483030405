package models

import "time"

// Outcome names the stage a booking reached.
type Outcome string

const (
	OutcomeRejected       Outcome = "rejected"
	OutcomeConflict       Outcome = "conflict"
	OutcomeReserved       Outcome = "reserved"
	OutcomeInviteFailed   Outcome = "reserved_invite_failed"
	OutcomeDeliveryFailed Outcome = "reserved_delivery_failed"
	OutcomeConfirmed      Outcome = "confirmed"
)

const (
	// DateLayout is the wire format of booking dates.
	DateLayout = "2006-01-02"

	// ClockLayout is the wire format of slot values.
	ClockLayout = "15:04"

	// AppointmentDuration is the length of every appointment.
	AppointmentDuration = time.Hour

	// DefaultInviteTimeout bounds calendar invite encoding.
	DefaultInviteTimeout = 5 * time.Second

	// DefaultDeliveryTimeout bounds mail delivery for one booking.
	DefaultDeliveryTimeout = 20 * time.Second

	// DefaultHTTPPort is used when neither config nor PORT set one.
	DefaultHTTPPort = 3000

	// DefaultWriteTimeout bounds writing one HTTP response, /book included.
	DefaultWriteTimeout = 60 * time.Second

	// InviteFilename is the attachment name of the calendar invite.
	InviteFilename = "invite.ics"
)
