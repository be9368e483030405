package models

import (
	"strings"
	"time"
)

// BookingRequest is the body of POST /book.
type BookingRequest struct {
	Date    string `json:"date" validate:"required"`
	Time    string `json:"time" validate:"required"`
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"required"`
	Address string `json:"address" validate:"required"`
	Details string `json:"details" validate:"required"`
}

// Normalize trims surrounding whitespace from every field.
func (r *BookingRequest) Normalize() {
	r.Date = strings.TrimSpace(r.Date)
	r.Time = strings.TrimSpace(r.Time)
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Address = strings.TrimSpace(r.Address)
	r.Details = strings.TrimSpace(r.Details)
}

// BookingResult reports how far a booking got through the workflow.
type BookingResult struct {
	Date       string    `json:"date"`
	Time       string    `json:"time"`
	Outcome    Outcome   `json:"outcome"`
	Invite     []byte    `json:"-"`
	ReservedAt time.Time `json:"reserved_at"`
}

// Reserved reports whether the slot was committed, regardless of what happened downstream.
func (r *BookingResult) Reserved() bool {
	if r == nil {
		return false
	}
	switch r.Outcome {
	case OutcomeReserved, OutcomeConfirmed, OutcomeInviteFailed, OutcomeDeliveryFailed:
		return true
	default:
		return false
	}
}
