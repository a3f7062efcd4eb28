package itinerary

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"
)

const minTitleLength = 5

// Editor owns an itinerary tree for the duration of a creation session.
// The zero value is not usable; start from NewEditor.
type Editor struct {
	Quest  Quest  `json:"quest"`
	Center LatLng `json:"center"`
}

// NewEditor returns an editor holding a private quest with one empty day.
func NewEditor() *Editor {
	return &Editor{
		Quest: Quest{
			IsPrivate: true,
			Tags:      []string{},
			Days:      []Day{newDay(1)},
		},
		Center: DefaultCenter,
	}
}

func newDay(number int) Day {
	return Day{
		DayNumber: number,
		TimePeriods: Periods{
			Morning:   TimePeriod{Cards: []Card{}},
			Afternoon: TimePeriod{Cards: []Card{}},
			Evening:   TimePeriod{Cards: []Card{}},
			Night:     TimePeriod{Cards: []Card{}},
		},
	}
}

func newCard() Card {
	return Card{Media: []Media{}, Tags: []string{}}
}

// AddDay appends a day numbered after the current last day.
func (e *Editor) AddDay() Day {
	day := newDay(len(e.Quest.Days) + 1)
	e.Quest.Days = append(e.Quest.Days, day)
	return day
}

// SetDayDate sets the calendar date of a day.
func (e *Editor) SetDayDate(dayIndex int, date string) error {
	day, err := e.day(dayIndex)
	if err != nil {
		return err
	}
	day.Date = strings.TrimSpace(date)
	return nil
}

// AddCard appends an empty draft card and expands the period so it is visible.
// It returns the index of the new card.
func (e *Editor) AddCard(dayIndex int, periodID PeriodID) (int, error) {
	period, err := e.period(dayIndex, periodID)
	if err != nil {
		return 0, err
	}
	period.Cards = append(period.Cards, newCard())
	period.Expanded = true
	return len(period.Cards) - 1, nil
}

// UpdateCard merges patch into the addressed card. A location in the patch is
// normalised and becomes the new map centre.
func (e *Editor) UpdateCard(dayIndex int, periodID PeriodID, cardIndex int, patch CardPatch) (Card, error) {
	card, err := e.card(dayIndex, periodID, cardIndex)
	if err != nil {
		return Card{}, err
	}

	if patch.Title != nil {
		card.Title = *patch.Title
	}
	if patch.Description != nil {
		card.Description = *patch.Description
	}
	if patch.Date != nil {
		card.Date = *patch.Date
	}
	if patch.Notes != nil {
		card.Notes = *patch.Notes
	}
	if patch.Media != nil {
		card.Media = append([]Media(nil), patch.Media...)
	}
	if patch.Tags != nil {
		card.Tags = append([]string(nil), patch.Tags...)
	}

	switch {
	case patch.Location != nil:
		location := NormalizeLocation(*patch.Location, cardIndex)
		card.Location = &location
		e.Center = LatLng{Lat: location.Lat, Lng: location.Lng}
	case patch.ClearLocation:
		card.Location = nil
	}

	return *card, nil
}

// NormalizeLocation fills the name and address from whatever the caller supplied.
func NormalizeLocation(input LocationInput, cardIndex int) Location {
	name := firstNonEmpty(input.Name, input.FormattedAddress, input.Description)
	if name == "" {
		name = fmt.Sprintf("Location %d", cardIndex+1)
	}
	address := firstNonEmpty(input.FormattedAddress, input.Name)
	if address == "" {
		address = fmt.Sprintf("Custom location (%.4f, %.4f)", input.Lat, input.Lng)
	}
	return Location{
		Lat:              input.Lat,
		Lng:              input.Lng,
		Name:             name,
		FormattedAddress: address,
		PlaceID:          strings.TrimSpace(input.PlaceID),
	}
}

// DeleteCard removes the addressed card.
func (e *Editor) DeleteCard(dayIndex int, periodID PeriodID, cardIndex int) error {
	period, err := e.period(dayIndex, periodID)
	if err != nil {
		return err
	}
	if cardIndex < 0 || cardIndex >= len(period.Cards) {
		return fmt.Errorf("%w: %d", ErrCardOutOfRange, cardIndex)
	}
	period.Cards = append(period.Cards[:cardIndex], period.Cards[cardIndex+1:]...)
	return nil
}

// MoveCard swaps the card with its neighbour in the given direction. Moving
// past either end of the period is a no-op and reports false.
func (e *Editor) MoveCard(dayIndex int, periodID PeriodID, cardIndex int, direction Direction) (bool, error) {
	period, err := e.period(dayIndex, periodID)
	if err != nil {
		return false, err
	}
	if cardIndex < 0 || cardIndex >= len(period.Cards) {
		return false, fmt.Errorf("%w: %d", ErrCardOutOfRange, cardIndex)
	}

	target := cardIndex + 1
	if direction == Up {
		target = cardIndex - 1
	}
	if target < 0 || target >= len(period.Cards) {
		return false, nil
	}

	period.Cards[cardIndex], period.Cards[target] = period.Cards[target], period.Cards[cardIndex]
	return true, nil
}

// ToggleTimePeriod flips the expand state. Empty periods stay as they are.
func (e *Editor) ToggleTimePeriod(dayIndex int, periodID PeriodID) (bool, error) {
	period, err := e.period(dayIndex, periodID)
	if err != nil {
		return false, err
	}
	if len(period.Cards) == 0 {
		return period.Expanded, nil
	}
	period.Expanded = !period.Expanded
	return period.Expanded, nil
}

// Validate collects every rule the quest violates before it can be saved.
func (e *Editor) Validate() ValidationResult {
	violations := make([]string, 0)

	title := strings.TrimSpace(e.Quest.Title)
	switch {
	case title == "":
		violations = append(violations, "Quest title is required")
	case utf8.RuneCountInString(title) < minTitleLength:
		violations = append(violations, fmt.Sprintf("Title must be at least %d characters", minTitleLength))
	}

	total := 0
	for _, day := range e.Quest.Days {
		total += day.CardCount()
	}

	if total == 0 {
		violations = append(violations, "At least one flow card is required")
	} else {
		for i := range e.Quest.Days {
			day := &e.Quest.Days[i]
			for _, id := range PeriodOrder {
				period, _ := day.TimePeriods.Get(id)
				for cardIndex, card := range period.Cards {
					if strings.TrimSpace(card.Title) == "" {
						violations = append(violations, fmt.Sprintf("Day %d %s Card %d must have a title", day.DayNumber, id.Label(), cardIndex+1))
					}
				}
			}
		}
	}

	return ValidationResult{IsValid: len(violations) == 0, Errors: violations}
}

// MapMarkers lists every located card with a default title for untitled ones.
func (e *Editor) MapMarkers() []Marker {
	markers := make([]Marker, 0)
	for dayIndex := range e.Quest.Days {
		day := &e.Quest.Days[dayIndex]
		for _, id := range PeriodOrder {
			period, _ := day.TimePeriods.Get(id)
			located := 0
			for _, card := range period.Cards {
				if card.Location == nil || card.Location.Lat == 0 || card.Location.Lng == 0 {
					continue
				}
				title := card.Title
				if title == "" {
					title = fmt.Sprintf("Day %d %s - Location %d", day.DayNumber, id.Label(), located+1)
				}
				markers = append(markers, Marker{
					Lat:              card.Location.Lat,
					Lng:              card.Location.Lng,
					Title:            title,
					DayIndex:         dayIndex,
					PeriodID:         id,
					CardIndex:        located,
					PlaceID:          card.Location.PlaceID,
					FormattedAddress: card.Location.FormattedAddress,
				})
				located++
			}
		}
	}
	return markers
}

// Card returns a copy of the addressed card.
func (e *Editor) Card(dayIndex int, periodID PeriodID, cardIndex int) (Card, error) {
	card, err := e.card(dayIndex, periodID, cardIndex)
	if err != nil {
		return Card{}, err
	}
	return *card, nil
}

// IndexOf locates want in the period, ignoring media. The card at hint is
// preferred so that identical cards keep their position. It returns -1 when no
// card matches.
func (e *Editor) IndexOf(dayIndex int, periodID PeriodID, want Card, hint int) int {
	period, err := e.period(dayIndex, periodID)
	if err != nil {
		return -1
	}
	if hint >= 0 && hint < len(period.Cards) && sameCard(period.Cards[hint], want) {
		return hint
	}
	for i, card := range period.Cards {
		if sameCard(card, want) {
			return i
		}
	}
	return -1
}

// SetCardMedia replaces the media list of the addressed card.
func (e *Editor) SetCardMedia(dayIndex int, periodID PeriodID, cardIndex int, media []Media) error {
	card, err := e.card(dayIndex, periodID, cardIndex)
	if err != nil {
		return err
	}
	card.Media = append([]Media{}, media...)
	return nil
}

func (e *Editor) day(dayIndex int) (*Day, error) {
	if dayIndex < 0 || dayIndex >= len(e.Quest.Days) {
		return nil, fmt.Errorf("%w: %d", ErrDayOutOfRange, dayIndex)
	}
	return &e.Quest.Days[dayIndex], nil
}

func (e *Editor) period(dayIndex int, periodID PeriodID) (*TimePeriod, error) {
	day, err := e.day(dayIndex)
	if err != nil {
		return nil, err
	}
	return day.TimePeriods.Get(periodID)
}

func (e *Editor) card(dayIndex int, periodID PeriodID, cardIndex int) (*Card, error) {
	period, err := e.period(dayIndex, periodID)
	if err != nil {
		return nil, err
	}
	if cardIndex < 0 || cardIndex >= len(period.Cards) {
		return nil, fmt.Errorf("%w: %d", ErrCardOutOfRange, cardIndex)
	}
	return &period.Cards[cardIndex], nil
}

func sameCard(a, b Card) bool {
	if a.Title != b.Title || a.Description != b.Description || a.Date != b.Date || a.Notes != b.Notes {
		return false
	}
	if (a.Location == nil) != (b.Location == nil) || (a.Location != nil && *a.Location != *b.Location) {
		return false
	}
	return slices.Equal(a.Tags, b.Tags)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
