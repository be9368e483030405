package models

import "time"

// Attendee is a participant of an appointment invite.
type Attendee struct {
	Name  string
	Email string
	RSVP  bool
}

// Invite describes a confirmed appointment before calendar encoding.
type Invite struct {
	UID            string
	Title          string
	Description    string
	Location       string
	Start          time.Time
	Duration       time.Duration
	OrganizerName  string
	OrganizerEmail string
	Attendees      []Attendee
}

// End returns the end of the appointment.
func (i *Invite) End() time.Time {
	return i.Start.Add(i.Duration)
}
