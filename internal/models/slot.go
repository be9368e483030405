package models

// Slot is a bookable time of day.
type Slot struct {
	Label string `json:"label" yaml:"label"`
	Value string `json:"value" yaml:"value"`
}
