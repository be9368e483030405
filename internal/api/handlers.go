package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"hvacbook/internal/domain"
	"hvacbook/internal/models"
)

const maxBodyBytes = 1 << 20

const (
	msgBooked          = "Booked & invite emailed"
	msgConflict        = "This time slot is already booked"
	msgInviteFailed    = "Booking created but failed to create calendar invite"
	msgDeliveryFailed  = "Booking created but failed to send email"
	msgServerError     = "Server error"
	msgInvalidJSONBody = "Invalid JSON body"
)

type bookResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type availabilityResponse struct {
	Success   bool          `json:"success"`
	Date      string        `json:"date"`
	Available []models.Slot `json:"available"`
}

func (s *HTTPServer) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("HVAC backend is running"))
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	date := strings.TrimSpace(r.URL.Query().Get("date"))

	slots, err := s.svc.Availability(r.Context(), date)
	if err != nil {
		status, message := s.classify(err)
		if !domain.IsValidation(err) {
			s.logger.Error().Err(err).Str("date", date).Msg("availability failed")
		}
		writeFailure(w, status, message)
		return
	}

	writeJSON(w, http.StatusOK, availabilityResponse{Success: true, Date: date, Available: slots})
}

func (s *HTTPServer) handleBook(w http.ResponseWriter, r *http.Request) {
	var req models.BookingRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, msgInvalidJSONBody)
		return
	}

	result, err := s.svc.Book(r.Context(), &req)
	if err != nil {
		status, message := s.classify(err)
		if result.Reserved() {
			s.logger.Warn().Err(err).
				Str("date", result.Date).
				Str("time", result.Time).
				Str("outcome", string(result.Outcome)).
				Msg("slot stays reserved after failed booking")
		}
		writeFailure(w, status, message)
		return
	}

	writeJSON(w, http.StatusOK, bookResponse{Success: true, Message: msgBooked})
}

// classify maps workflow errors to a status code and a client-facing message.
func (s *HTTPServer) classify(err error) (int, string) {
	var (
		validationErr *domain.ValidationError
		inviteErr     *domain.InviteEncodingError
		deliveryErr   *domain.DeliveryError
	)

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, validationErr.Error()
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, msgConflict
	case errors.As(err, &inviteErr):
		return http.StatusInternalServerError, msgInviteFailed
	case errors.As(err, &deliveryErr):
		return http.StatusInternalServerError, msgDeliveryFailed
	default:
		return http.StatusInternalServerError, msgServerError
	}
}
