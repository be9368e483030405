package events

import (
	"encoding/json"
	"sync"
	"time"

	"hvacbook/internal/models"
)

const (
	EventBookingReserved       = "booking_reserved"
	EventBookingConfirmed      = "booking_confirmed"
	EventBookingInviteFailed   = "booking_invite_failed"
	EventBookingDeliveryFailed = "booking_delivery_failed"
	EventBookingConflict       = "booking_conflict"
)

// BookingEventPayload describes the minimal booking snapshot for event consumers.
type BookingEventPayload struct {
	Date            string         `json:"date"`
	Time            string         `json:"time"`
	Name            string         `json:"name,omitempty"`
	Email           string         `json:"email,omitempty"`
	Outcome         models.Outcome `json:"outcome"`
	Error           string         `json:"error,omitempty"`
	DeliverySeconds float64        `json:"delivery_seconds,omitempty"`
}

// TypeForOutcome maps a terminal workflow outcome to its event type.
// Rejected requests never reach the bus.
func TypeForOutcome(outcome models.Outcome) (string, bool) {
	switch outcome {
	case models.OutcomeReserved:
		return EventBookingReserved, true
	case models.OutcomeConfirmed:
		return EventBookingConfirmed, true
	case models.OutcomeInviteFailed:
		return EventBookingInviteFailed, true
	case models.OutcomeDeliveryFailed:
		return EventBookingDeliveryFailed, true
	case models.OutcomeConflict:
		return EventBookingConflict, true
	default:
		return "", false
	}
}

// DecodeBooking unmarshals the payload of a booking event.
func DecodeBooking(event *Event) (BookingEventPayload, error) {
	var payload BookingEventPayload
	err := json.Unmarshal(event.Payload, &payload)
	return payload, err
}

// Event represents a lightweight domain event.
type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
	Processed bool
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	event, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}

	b.Publish(&event)
	return nil
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}
