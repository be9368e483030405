package domain

import (
	"context"
	"time"

	"hvacbook/internal/models"
)

// ReservationStore records which (date, time) pairs are taken.
// TryReserve must be an atomic check-and-insert: it returns ErrConflict and
// leaves the store untouched when the pair already exists.
type ReservationStore interface {
	Reserved(ctx context.Context, date string) ([]string, error)
	TryReserve(ctx context.Context, date, clock string) error
}

// Catalog maps a calendar date to its ordered bookable slots.
type Catalog interface {
	SlotsFor(date time.Time) []models.Slot
}

type InviteEncoder interface {
	Encode(ctx context.Context, invite *models.Invite) ([]byte, error)
}

type Mailer interface {
	Send(ctx context.Context, msg *models.Message) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type BookingService interface {
	Availability(ctx context.Context, date string) ([]models.Slot, error)
	Book(ctx context.Context, req *models.BookingRequest) (*models.BookingResult, error)
}
