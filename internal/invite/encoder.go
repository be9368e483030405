package invite

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"hvacbook/internal/models"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"
)

const productID = "-//hvacbook//Appointment Booking//EN"

// ICSEncoder renders appointments as iCalendar REQUEST objects.
type ICSEncoder struct {
	now func() time.Time
}

func NewICSEncoder() *ICSEncoder {
	return &ICSEncoder{now: time.Now}
}

// Encode returns the serialized VCALENDAR for inv. An empty UID is replaced
// with a random one so every invite stays unique for calendar clients.
func (e *ICSEncoder) Encode(ctx context.Context, inv *models.Invite) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := check(inv); err != nil {
		return nil, err
	}

	uid := inv.UID
	if uid == "" {
		uid = uuid.NewString()
	}

	cal := ics.NewCalendar()
	cal.SetProductId(productID)
	cal.SetMethod(ics.MethodRequest)

	event := cal.AddEvent(uid)
	event.SetDtStampTime(e.now().UTC())
	event.SetStartAt(inv.Start.UTC())
	event.SetEndAt(inv.End().UTC())
	event.SetSummary(inv.Title)
	if inv.Description != "" {
		event.SetDescription(inv.Description)
	}
	if inv.Location != "" {
		event.SetLocation(inv.Location)
	}
	event.SetStatus(ics.ObjectStatusConfirmed)
	if inv.OrganizerEmail != "" {
		event.SetOrganizer("mailto:"+inv.OrganizerEmail, ics.WithCN(inv.OrganizerName))
	}

	for _, a := range inv.Attendees {
		event.AddAttendee(a.Email,
			ics.WithCN(a.Name),
			rsvp(a.RSVP),
			ics.ParticipationStatusNeedsAction,
			ics.ParticipationRoleReqParticipant,
		)
	}

	out := cal.Serialize()

	// serialization is synchronous; a deadline that passed meanwhile still wins
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []byte(out), nil
}

// rsvp writes the RFC 5545 boolean form (TRUE/FALSE); ics.WithRSVP emits lower case.
func rsvp(v bool) ics.PropertyParameter {
	return &ics.KeyValues{Key: string(ics.ParameterRsvp), Value: []string{strings.ToUpper(strconv.FormatBool(v))}}
}

func check(inv *models.Invite) error {
	if inv == nil {
		return errors.New("invite is nil")
	}
	if inv.Start.IsZero() {
		return errors.New("invite start is not set")
	}
	if inv.Duration <= 0 {
		return fmt.Errorf("invalid invite duration %s", inv.Duration)
	}
	if strings.TrimSpace(inv.Title) == "" {
		return errors.New("invite title is empty")
	}
	for _, a := range inv.Attendees {
		if a.Email == "" {
			return fmt.Errorf("attendee %q has no email", a.Name)
		}
	}
	return nil
}
