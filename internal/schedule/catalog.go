package schedule

import (
	"fmt"
	"sort"
	"time"

	"hvacbook/internal/config"
	"hvacbook/internal/domain"
	"hvacbook/internal/models"
)

// FixedCatalog offers the same slots every day.
type FixedCatalog struct {
	slots []models.Slot
}

func NewFixedCatalog(slots []models.Slot) (*FixedCatalog, error) {
	prepared, err := prepare(slots)
	if err != nil {
		return nil, err
	}
	return &FixedCatalog{slots: prepared}, nil
}

func (c *FixedCatalog) SlotsFor(time.Time) []models.Slot {
	return clone(c.slots)
}

// WeeklyCatalog offers a list per weekday.
type WeeklyCatalog struct {
	days [7][]models.Slot
}

func NewWeeklyCatalog(week config.WeeklyConfig) (*WeeklyCatalog, error) {
	var c WeeklyCatalog
	for day, slots := range week.Days() {
		prepared, err := prepare(slots)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", time.Weekday(day), err)
		}
		c.days[day] = prepared
	}
	return &c, nil
}

func (c *WeeklyCatalog) SlotsFor(date time.Time) []models.Slot {
	return clone(c.days[date.Weekday()])
}

// New builds the catalog selected by the schedule policy.
func New(cfg config.ScheduleConfig) (domain.Catalog, error) {
	switch cfg.Policy {
	case config.PolicyFixed:
		return NewFixedCatalog(cfg.Fixed)
	case config.PolicyWeekly, "":
		return NewWeeklyCatalog(cfg.Weekly)
	default:
		return nil, fmt.Errorf("unknown schedule policy %q", cfg.Policy)
	}
}

// Available returns the slots whose value is not reserved, keeping catalog order.
func Available(slots []models.Slot, reserved []string) []models.Slot {
	taken := make(map[string]struct{}, len(reserved))
	for _, r := range reserved {
		taken[r] = struct{}{}
	}

	out := make([]models.Slot, 0, len(slots))
	for _, slot := range slots {
		if _, ok := taken[slot.Value]; ok {
			continue
		}
		out = append(out, slot)
	}
	return out
}

// Offers reports whether the catalog has a slot with the value on date.
func Offers(c domain.Catalog, date time.Time, value string) bool {
	for _, slot := range c.SlotsFor(date) {
		if slot.Value == value {
			return true
		}
	}
	return false
}

func prepare(slots []models.Slot) ([]models.Slot, error) {
	if err := config.ValidateSlots(slots); err != nil {
		return nil, err
	}

	out := clone(slots)
	for i := range out {
		if out[i].Label == "" {
			out[i].Label = Label(out[i].Value)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out, nil
}

func clone(slots []models.Slot) []models.Slot {
	return append([]models.Slot{}, slots...)
}
