package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hvacbook/internal/domain"
	"hvacbook/internal/events"
	"hvacbook/internal/models"
	"hvacbook/internal/schedule"

	"github.com/go-playground/validator"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BusinessInfo is what the workflow says about the business in invites and mail.
type BusinessInfo struct {
	Name     string
	Sender   string
	Inbox    string
	Location *time.Location
}

type Timeouts struct {
	Invite   time.Duration
	Delivery time.Duration
}

type BookingService struct {
	store    domain.ReservationStore
	catalog  domain.Catalog
	encoder  domain.InviteEncoder
	mailer   domain.Mailer
	eventBus domain.EventPublisher
	business BusinessInfo
	timeouts Timeouts
	validate *validator.Validate
	now      func() time.Time
	logger   *zerolog.Logger
}

func NewBookingService(
	store domain.ReservationStore,
	catalog domain.Catalog,
	encoder domain.InviteEncoder,
	mailer domain.Mailer,
	eventBus domain.EventPublisher,
	business BusinessInfo,
	timeouts Timeouts,
	logger *zerolog.Logger,
) *BookingService {
	if business.Location == nil {
		business.Location = time.Local
	}
	if timeouts.Invite <= 0 {
		timeouts.Invite = models.DefaultInviteTimeout
	}
	if timeouts.Delivery <= 0 {
		timeouts.Delivery = models.DefaultDeliveryTimeout
	}
	return &BookingService{
		store:    store,
		catalog:  catalog,
		encoder:  encoder,
		mailer:   mailer,
		eventBus: eventBus,
		business: business,
		timeouts: timeouts,
		validate: newValidator(),
		now:      time.Now,
		logger:   logger,
	}
}

// Availability returns the catalog slots of date that are still free, in catalog order.
func (s *BookingService) Availability(ctx context.Context, date string) ([]models.Slot, error) {
	day, err := schedule.ParseDate(date)
	if err != nil {
		return nil, &domain.ValidationError{Reason: "Invalid or missing date, expected YYYY-MM-DD"}
	}

	slots := s.catalog.SlotsFor(day)
	if len(slots) == 0 {
		return []models.Slot{}, nil
	}

	reserved, err := s.store.Reserved(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("load reservations for %s: %w", date, err)
	}
	return schedule.Available(slots, reserved), nil
}

// Book runs validate, reserve, encode invite, deliver. Once the slot is
// reserved it stays reserved whatever happens downstream; the returned
// result names the stage the booking reached.
func (s *BookingService) Book(ctx context.Context, req *models.BookingRequest) (*models.BookingResult, error) {
	if err := s.validateRequest(req); err != nil {
		result := &models.BookingResult{Outcome: models.OutcomeRejected}
		if req != nil {
			result.Date, result.Time = req.Date, req.Time
		}
		return result, err
	}

	result := &models.BookingResult{Date: req.Date, Time: req.Time}
	log := s.logger.With().Str("date", req.Date).Str("time", req.Time).Str("email", req.Email).Logger()

	if err := s.store.TryReserve(ctx, req.Date, req.Time); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			result.Outcome = models.OutcomeConflict
			log.Info().Msg("slot already booked")
			s.publish(req, result, err, 0)
			return result, err
		}
		log.Error().Err(err).Msg("reserve slot failed")
		return nil, fmt.Errorf("reserve %s %s: %w", req.Date, req.Time, err)
	}

	result.Outcome = models.OutcomeReserved
	result.ReservedAt = s.now()
	log.Info().Msg("slot reserved")
	s.publish(req, result, nil, 0)

	// the reservation is committed; a client disconnect must not cut the notifications short
	base := context.WithoutCancel(ctx)

	inv, err := s.buildInvite(req)
	if err == nil {
		result.Invite, err = s.encode(base, inv)
	}
	if err != nil {
		result.Outcome = models.OutcomeInviteFailed
		log.Error().Err(err).Msg("calendar invite failed")
		encErr := &domain.InviteEncodingError{Err: err}
		s.publish(req, result, encErr, 0)
		return result, encErr
	}

	started := time.Now()
	err = s.deliver(base, req, result.Invite)
	elapsed := time.Since(started)
	if err != nil {
		result.Outcome = models.OutcomeDeliveryFailed
		log.Error().Err(err).Dur("elapsed", elapsed).Msg("mail delivery failed")
		s.publish(req, result, err, elapsed)
		return result, err
	}

	result.Outcome = models.OutcomeConfirmed
	log.Info().Dur("elapsed", elapsed).Msg("booking confirmed")
	s.publish(req, result, nil, elapsed)
	return result, nil
}

func (s *BookingService) encode(ctx context.Context, inv *models.Invite) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeouts.Invite)
	defer cancel()
	return s.encoder.Encode(ctx, inv)
}

func (s *BookingService) buildInvite(req *models.BookingRequest) (*models.Invite, error) {
	start, err := schedule.StartTime(req.Date, req.Time, s.business.Location)
	if err != nil {
		return nil, err
	}

	attendees := []models.Attendee{{Name: req.Name, Email: req.Email, RSVP: true}}
	if s.business.Inbox != "" {
		attendees = append(attendees, models.Attendee{Name: s.business.Name, Email: s.business.Inbox})
	}

	return &models.Invite{
		UID:         s.inviteUID(req),
		Title:       fmt.Sprintf("%s Appointment - %s", s.business.Name, req.Name),
		Description: fmt.Sprintf("Appointment for %s, Phone: %s, Address: %s, Details: %s", req.Name, req.Phone, req.Address, req.Details),
		Location:    req.Address,
		Start:       start,
		Duration:    models.AppointmentDuration,

		OrganizerName:  s.business.Name,
		OrganizerEmail: s.business.Sender,
		Attendees:      attendees,
	}, nil
}

// inviteUID is stable per slot; a slot is reserved at most once.
func (s *BookingService) inviteUID(req *models.BookingRequest) string {
	name := fmt.Sprintf("%s|%s|%s", s.business.Name, req.Date, req.Time)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

// deliver sends the customer invite and the business notification under one
// deadline. Both are attempted; the customer failure is reported first.
func (s *BookingService) deliver(ctx context.Context, req *models.BookingRequest, invite []byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeouts.Delivery)
	defer cancel()

	var firstErr error
	if err := s.mailer.Send(ctx, s.customerMessage(req, invite)); err != nil {
		firstErr = &domain.DeliveryError{Recipient: req.Email, Err: err}
	}

	if s.business.Inbox == "" {
		s.logger.Warn().Str("date", req.Date).Str("time", req.Time).Msg("business inbox not configured, notification skipped")
		return firstErr
	}
	if err := s.mailer.Send(ctx, s.businessMessage(req, invite)); err != nil && firstErr == nil {
		firstErr = &domain.DeliveryError{Recipient: s.business.Inbox, Err: err}
	}
	return firstErr
}

func (s *BookingService) customerMessage(req *models.BookingRequest, invite []byte) *models.Message {
	return &models.Message{
		To:      req.Email,
		ToName:  req.Name,
		Subject: "Your Appointment is Confirmed",
		Text: fmt.Sprintf(
			"Hi %s,\n\nYour appointment with %s is confirmed:\n\nDate: %s\nTime: %s\nPhone: %s\nAddress: %s\nDetails: %s\n\nThank you!",
			req.Name, s.business.Name, req.Date, schedule.Label(req.Time), req.Phone, req.Address, req.Details,
		),
		Invite: invite,
	}
}

func (s *BookingService) businessMessage(req *models.BookingRequest, invite []byte) *models.Message {
	return &models.Message{
		To:      s.business.Inbox,
		ToName:  s.business.Name,
		Subject: fmt.Sprintf("New appointment: %s on %s at %s", req.Name, req.Date, req.Time),
		Text: fmt.Sprintf(
			"New booking received.\n\nName: %s\nEmail: %s\nPhone: %s\nAddress: %s\nDate: %s\nTime: %s\nDetails: %s\n",
			req.Name, req.Email, req.Phone, req.Address, req.Date, req.Time, req.Details,
		),
		Invite: invite,
	}
}

func (s *BookingService) publish(req *models.BookingRequest, result *models.BookingResult, cause error, elapsed time.Duration) {
	if s.eventBus == nil {
		return
	}
	eventType, ok := events.TypeForOutcome(result.Outcome)
	if !ok {
		return
	}

	payload := events.BookingEventPayload{
		Date:            result.Date,
		Time:            result.Time,
		Name:            req.Name,
		Email:           req.Email,
		Outcome:         result.Outcome,
		DeliverySeconds: elapsed.Seconds(),
	}
	if cause != nil {
		payload.Error = cause.Error()
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("publish event error")
	}
}
