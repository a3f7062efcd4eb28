package itinerary

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFlattenStampsSlotAndInheritsDate(t *testing.T) {
	editor := NewEditor()
	editor.AddDay()
	require.NoError(t, editor.SetDayDate(1, "2025-06-02"))

	idx, err := editor.AddCard(1, Evening)
	require.NoError(t, err)
	_, err = editor.UpdateCard(1, Evening, idx, CardPatch{
		Title:    strPtr("  Dinner  "),
		Notes:    strPtr(" book ahead "),
		Location: &LocationInput{Lat: 1, Lng: 2, FormattedAddress: "1 Main St"},
	})
	require.NoError(t, err)

	cards := Flatten(editor.Quest.Days)
	require.Len(t, cards, 1)
	require.Equal(t, 2, cards[0].DayNumber)
	require.Equal(t, Evening, cards[0].TimePeriod)
	require.Equal(t, "Dinner", cards[0].Title)
	require.Equal(t, "book ahead", cards[0].Notes)
	require.Equal(t, "2025-06-02", cards[0].Date)
	require.Equal(t, "1 Main St", cards[0].Location.Name)
	require.NotNil(t, cards[0].Media)
	require.NotNil(t, cards[0].Tags)
}

func TestFlattenKeepsCardDate(t *testing.T) {
	days := []Day{newDay(1)}
	days[0].Date = "2025-01-01"
	days[0].TimePeriods.Night.Cards = []Card{{Title: "Show", Date: "2025-01-02"}}

	cards := Flatten(days)
	require.Equal(t, "2025-01-02", cards[0].Date)
}

func TestFlattenRebuildRoundTrip(t *testing.T) {
	editor := NewEditor()
	editor.AddDay()
	editor.AddDay()

	slots := []struct {
		day    int
		period PeriodID
		title  string
	}{
		{0, Morning, "Coffee"},
		{0, Morning, "Market"},
		{0, Night, "Bar"},
		{2, Afternoon, "Hike"},
		{2, Evening, "Camp"},
	}
	for _, slot := range slots {
		idx, err := editor.AddCard(slot.day, slot.period)
		require.NoError(t, err)
		_, err = editor.UpdateCard(slot.day, slot.period, idx, CardPatch{Title: strPtr(slot.title)})
		require.NoError(t, err)
	}

	flat := Flatten(editor.Quest.Days)
	rebuilt, err := Rebuild(flat)
	require.NoError(t, err)
	require.Len(t, rebuilt, 3)

	require.Equal(t, slotKeys(flat), slotKeys(Flatten(rebuilt)))
	require.Equal(t, []string{"Coffee", "Market"}, titles(rebuilt[0].TimePeriods.Morning.Cards))
	require.Equal(t, 0, rebuilt[1].CardCount())
}

func TestRebuildRejectsBadSlots(t *testing.T) {
	_, err := Rebuild([]FlatCard{{DayNumber: 0, TimePeriod: Morning}})
	require.ErrorIs(t, err, ErrDayOutOfRange)

	_, err = Rebuild([]FlatCard{{DayNumber: 1, TimePeriod: "noon"}})
	require.ErrorIs(t, err, ErrUnknownPeriod)
}

func TestRebuildEmpty(t *testing.T) {
	days, err := Rebuild(nil)
	require.NoError(t, err)
	require.Len(t, days, 1)
	require.Equal(t, 1, days[0].DayNumber)
}

func slotKeys(cards []FlatCard) []string {
	keys := make([]string, 0, len(cards))
	for _, card := range cards {
		keys = append(keys, string(rune('0'+card.DayNumber))+"/"+string(card.TimePeriod)+"/"+card.Title)
	}
	sort.Strings(keys)
	return keys
}
