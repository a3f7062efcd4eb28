package itinerary

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDayOutOfRange is returned when a day index does not address an existing day.
	ErrDayOutOfRange = errors.New("day index out of range")
	// ErrCardOutOfRange is returned when a card index does not address an existing card.
	ErrCardOutOfRange = errors.New("card index out of range")
	// ErrUnknownPeriod is returned for a time period outside morning, afternoon, evening and night.
	ErrUnknownPeriod = errors.New("unknown time period")
)

// PeriodID identifies one of the four time buckets of a day.
type PeriodID string

const (
	Morning   PeriodID = "morning"
	Afternoon PeriodID = "afternoon"
	Evening   PeriodID = "evening"
	Night     PeriodID = "night"
)

// PeriodOrder is the display and flatten order of the time buckets.
var PeriodOrder = []PeriodID{Morning, Afternoon, Evening, Night}

// Label returns the capitalised period name used in messages.
func (p PeriodID) Label() string {
	switch p {
	case Morning:
		return "Morning"
	case Afternoon:
		return "Afternoon"
	case Evening:
		return "Evening"
	case Night:
		return "Night"
	default:
		return string(p)
	}
}

// Valid reports whether p is one of the four known periods.
func (p PeriodID) Valid() bool {
	switch p {
	case Morning, Afternoon, Evening, Night:
		return true
	default:
		return false
	}
}

// ParsePeriod converts a raw value into a PeriodID.
func ParsePeriod(raw string) (PeriodID, error) {
	period := PeriodID(strings.ToLower(strings.TrimSpace(raw)))
	if !period.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPeriod, raw)
	}
	return period, nil
}

// MediaType classifies an uploaded media item.
type MediaType string

const (
	MediaPhoto MediaType = "photo"
	MediaVideo MediaType = "video"
)

// Media is a stored file referenced by a card or a trip.
type Media struct {
	URL  string    `json:"url"`
	Type MediaType `json:"type"`
	Name string    `json:"name"`
	Size int64     `json:"size"`
	Path string    `json:"path"`
}

// Location is the canonical place attached to a card.
type Location struct {
	Lat              float64 `json:"lat"`
	Lng              float64 `json:"lng"`
	Name             string  `json:"name"`
	FormattedAddress string  `json:"formatted_address"`
	PlaceID          string  `json:"place_id,omitempty"`
}

// LocationInput is whatever subset of place fields a caller supplies.
type LocationInput struct {
	Lat              float64 `json:"lat"`
	Lng              float64 `json:"lng"`
	Name             string  `json:"name"`
	FormattedAddress string  `json:"formatted_address"`
	Description      string  `json:"description"`
	PlaceID          string  `json:"place_id"`
}

// Card is a single place or activity inside a time period.
type Card struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        string    `json:"date"`
	Location    *Location `json:"location"`
	Media       []Media   `json:"media"`
	Notes       string    `json:"notes"`
	Tags        []string  `json:"tags"`
}

// IsDraft reports whether the card has neither a title nor a description.
func (c Card) IsDraft() bool {
	return strings.TrimSpace(c.Title) == "" && strings.TrimSpace(c.Description) == ""
}

// TimePeriod holds the cards of one bucket and its expand state.
type TimePeriod struct {
	Cards    []Card `json:"cards"`
	Expanded bool   `json:"expanded"`
}

// Periods is the fixed set of time buckets of a day.
type Periods struct {
	Morning   TimePeriod `json:"morning"`
	Afternoon TimePeriod `json:"afternoon"`
	Evening   TimePeriod `json:"evening"`
	Night     TimePeriod `json:"night"`
}

// Get returns a pointer to the addressed bucket.
func (p *Periods) Get(id PeriodID) (*TimePeriod, error) {
	switch id {
	case Morning:
		return &p.Morning, nil
	case Afternoon:
		return &p.Afternoon, nil
	case Evening:
		return &p.Evening, nil
	case Night:
		return &p.Night, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPeriod, id)
	}
}

// Day is one itinerary day. DayNumber is 1-based and contiguous.
type Day struct {
	DayNumber   int     `json:"day_number"`
	Date        string  `json:"date"`
	TimePeriods Periods `json:"time_periods"`
}

// CardCount returns the number of cards across every period of the day.
func (d Day) CardCount() int {
	return len(d.TimePeriods.Morning.Cards) +
		len(d.TimePeriods.Afternoon.Cards) +
		len(d.TimePeriods.Evening.Cards) +
		len(d.TimePeriods.Night.Cards)
}

// Quest is the itinerary tree under edit.
type Quest struct {
	ID          string   `json:"id,omitempty"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	IsPrivate   bool     `json:"is_private"`
	Tags        []string `json:"tags"`
	Days        []Day    `json:"days"`
}

// FlatCard is a card stamped with the slot it was flattened from.
type FlatCard struct {
	Card
	DayNumber  int      `json:"day_number"`
	TimePeriod PeriodID `json:"time_period"`
}

// CardPatch carries the fields to merge into a card. Nil fields are left untouched.
type CardPatch struct {
	Title         *string        `json:"title,omitempty"`
	Description   *string        `json:"description,omitempty"`
	Date          *string        `json:"date,omitempty"`
	Location      *LocationInput `json:"location,omitempty"`
	ClearLocation bool           `json:"clear_location,omitempty"`
	Media         []Media        `json:"media,omitempty"`
	Notes         *string        `json:"notes,omitempty"`
	Tags          []string       `json:"tags,omitempty"`
}

// Direction is the move direction of a card within its period.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// LatLng is a map coordinate.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DefaultCenter is the map centre used before any location is chosen.
var DefaultCenter = LatLng{Lat: 40.7128, Lng: -74.0060}

// Marker is a located card rendered on the map.
type Marker struct {
	Lat              float64  `json:"lat"`
	Lng              float64  `json:"lng"`
	Title            string   `json:"title"`
	DayIndex         int      `json:"day_index"`
	PeriodID         PeriodID `json:"period_id"`
	CardIndex        int      `json:"card_index"`
	PlaceID          string   `json:"place_id,omitempty"`
	FormattedAddress string   `json:"formatted_address"`
}

// ValidationResult lists every violated save rule.
type ValidationResult struct {
	IsValid bool     `json:"is_valid"`
	Errors  []string `json:"errors"`
}
