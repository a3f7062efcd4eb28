package itinerary

import (
	"fmt"
	"strings"
)

// Flatten turns the day tree into the persisted card list. Each card is
// stamped with its slot, inherits the day date when it has none, and has its
// text fields trimmed.
func Flatten(days []Day) []FlatCard {
	cards := make([]FlatCard, 0)
	for i := range days {
		day := &days[i]
		for _, id := range PeriodOrder {
			period, _ := day.TimePeriods.Get(id)
			for _, card := range period.Cards {
				cards = append(cards, FlatCard{
					Card:       cleanCard(card, day.Date),
					DayNumber:  day.DayNumber,
					TimePeriod: id,
				})
			}
		}
	}
	return cards
}

func cleanCard(card Card, dayDate string) Card {
	clean := Card{
		Title:       strings.TrimSpace(card.Title),
		Description: strings.TrimSpace(card.Description),
		Date:        firstNonEmpty(card.Date, dayDate),
		Notes:       strings.TrimSpace(card.Notes),
		Media:       make([]Media, 0, len(card.Media)),
		Tags:        make([]string, 0, len(card.Tags)),
	}
	clean.Media = append(clean.Media, card.Media...)
	for _, tag := range card.Tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			clean.Tags = append(clean.Tags, tag)
		}
	}
	if card.Location != nil {
		location := *card.Location
		location.Name = firstNonEmpty(location.Name, location.FormattedAddress)
		if location.Name == "" {
			location.Name = "Unnamed location"
		}
		location.FormattedAddress = strings.TrimSpace(location.FormattedAddress)
		location.PlaceID = strings.TrimSpace(location.PlaceID)
		clean.Location = &location
	}
	return clean
}

// Rebuild is the inverse of Flatten. Days are numbered contiguously from 1 up
// to the highest day number present; days without cards come back empty.
func Rebuild(cards []FlatCard) ([]Day, error) {
	maxDay := 1
	for _, card := range cards {
		if card.DayNumber < 1 {
			return nil, fmt.Errorf("%w: day %d", ErrDayOutOfRange, card.DayNumber)
		}
		if !card.TimePeriod.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPeriod, card.TimePeriod)
		}
		if card.DayNumber > maxDay {
			maxDay = card.DayNumber
		}
	}

	days := make([]Day, maxDay)
	for i := range days {
		days[i] = newDay(i + 1)
	}

	for _, card := range cards {
		period, _ := days[card.DayNumber-1].TimePeriods.Get(card.TimePeriod)
		period.Cards = append(period.Cards, card.Card)
		period.Expanded = true
	}

	return days, nil
}
