package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"hvacbook/internal/domain"
	"hvacbook/internal/models"
	"hvacbook/internal/schedule"

	"github.com/go-playground/validator"
)

func newValidator() *validator.Validate {
	v := validator.New()
	// report json names so messages match what the client sent
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateRequest trims req in place and checks presence, then formats,
// then that the slot is offered on that date.
func (s *BookingService) validateRequest(req *models.BookingRequest) error {
	if req == nil {
		return &domain.ValidationError{Reason: "Invalid request body"}
	}
	req.Normalize()

	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validate booking request: %w", err)
		}

		var missing []string
		var invalid []string
		for _, fe := range verrs {
			if fe.Tag() == "required" {
				missing = append(missing, fe.Field())
			} else {
				invalid = append(invalid, fe.Field())
			}
		}
		if len(missing) > 0 {
			return &domain.ValidationError{Fields: missing}
		}
		return &domain.ValidationError{Reason: "Invalid " + strings.Join(invalid, ", ")}
	}

	date, err := schedule.ParseDate(req.Date)
	if err != nil {
		return &domain.ValidationError{Reason: "Invalid date, expected YYYY-MM-DD"}
	}
	if _, _, err := schedule.ParseClock(req.Time); err != nil {
		return &domain.ValidationError{Reason: "Invalid time, expected HH:MM"}
	}
	if !schedule.Offers(s.catalog, date, req.Time) {
		return &domain.ValidationError{
			Reason: fmt.Sprintf("Time %s is not offered on %s", req.Time, req.Date),
		}
	}
	return nil
}
