package dto

import (
	"strings"
	"time"

	"github.com/noah-isme/onquest-api/internal/itinerary"
	"github.com/noah-isme/onquest-api/internal/models"
)

// QuestDetailsRequest updates the quest-level fields of a draft.
type QuestDetailsRequest struct {
	Title       *string  `json:"title" validate:"omitempty,max=200"`
	Description *string  `json:"description" validate:"omitempty,max=5000"`
	IsPrivate   *bool    `json:"is_private"`
	Tags        []string `json:"tags" validate:"omitempty,max=20,dive,min=1,max=40"`
}

// DayDateRequest sets the calendar date of a day.
type DayDateRequest struct {
	Date string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// LocationRequest is a place picked from the map or the places autocomplete.
type LocationRequest struct {
	Lat              float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng              float64 `json:"lng" validate:"gte=-180,lte=180"`
	Name             string  `json:"name" validate:"omitempty,max=255"`
	FormattedAddress string  `json:"formatted_address" validate:"omitempty,max=512"`
	Description      string  `json:"description" validate:"omitempty,max=512"`
	PlaceID          string  `json:"place_id" validate:"omitempty,max=255"`
}

// CardUpdateRequest is a partial update of a flow card.
type CardUpdateRequest struct {
	Title         *string          `json:"title" validate:"omitempty,max=200"`
	Description   *string          `json:"description" validate:"omitempty,max=5000"`
	Date          *string          `json:"date" validate:"omitempty,max=32"`
	Notes         *string          `json:"notes" validate:"omitempty,max=5000"`
	Tags          []string         `json:"tags" validate:"omitempty,max=20,dive,min=1,max=40"`
	Location      *LocationRequest `json:"location" validate:"omitempty"`
	ClearLocation bool             `json:"clear_location"`
}

// Patch converts the request into an editor patch.
func (r CardUpdateRequest) Patch() itinerary.CardPatch {
	patch := itinerary.CardPatch{
		Title:         r.Title,
		Description:   r.Description,
		Date:          r.Date,
		Notes:         r.Notes,
		Tags:          r.Tags,
		ClearLocation: r.ClearLocation,
	}
	if r.Location != nil {
		patch.Location = &itinerary.LocationInput{
			Lat:              r.Location.Lat,
			Lng:              r.Location.Lng,
			Name:             r.Location.Name,
			FormattedAddress: r.Location.FormattedAddress,
			Description:      r.Location.Description,
			PlaceID:          r.Location.PlaceID,
		}
	}
	return patch
}

// MoveCardRequest moves a card one step within its period.
type MoveCardRequest struct {
	Direction string `json:"direction" validate:"required,oneof=up down"`
}

// RemoveMediaRequest detaches a media item and optionally deletes the stored object.
type RemoveMediaRequest struct {
	Path         string `json:"path" validate:"required,max=1024"`
	DeleteObject bool   `json:"delete_object"`
}

// TitleRequest renames a saved quest.
type TitleRequest struct {
	Title string `json:"title" validate:"required,min=5,max=200"`
}

// DescriptionRequest replaces the description of a saved quest.
type DescriptionRequest struct {
	Description string `json:"description" validate:"max=5000"`
}

// QuestDraftResponse is the editor state returned after every draft mutation.
type QuestDraftResponse struct {
	ID         string                     `json:"id"`
	TripID     string                     `json:"trip_id,omitempty"`
	Quest      itinerary.Quest            `json:"quest"`
	Center     itinerary.LatLng           `json:"center"`
	Markers    []itinerary.Marker         `json:"markers"`
	Validation itinerary.ValidationResult `json:"validation"`
	UpdatedAt  time.Time                  `json:"updated_at"`
}

// NewQuestDraftResponse renders an editor session.
func NewQuestDraftResponse(id string, editor *itinerary.Editor, updatedAt time.Time) QuestDraftResponse {
	return QuestDraftResponse{
		ID:         id,
		TripID:     editor.Quest.ID,
		Quest:      editor.Quest,
		Center:     editor.Center,
		Markers:    editor.MapMarkers(),
		Validation: editor.Validate(),
		UpdatedAt:  updatedAt,
	}
}

// TripResponse is the public representation of a saved quest.
type TripResponse struct {
	ID                string               `json:"id"`
	Title             string               `json:"title"`
	Description       string               `json:"description"`
	IsPrivate         bool                 `json:"is_private"`
	IsDraft           bool                 `json:"is_draft"`
	CreatedBy         string               `json:"created_by"`
	Tags              []string             `json:"tags"`
	FlowCards         []itinerary.FlatCard `json:"flow_cards"`
	Days              []itinerary.Day      `json:"days"`
	Media             []itinerary.Media    `json:"media"`
	LikesCount        int                  `json:"likes_count"`
	SavesCount        int                  `json:"saves_count"`
	FollowersCount    int                  `json:"followers_count"`
	DuplicationsCount int                  `json:"duplications_count"`
	ViewsCount        int                  `json:"views_count"`
	OriginalTripID    *string              `json:"original_trip_id,omitempty"`
	IsLiked           bool                 `json:"is_liked"`
	CanEdit           bool                 `json:"can_edit"`
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`
}

// NewTripResponse renders a trip as seen by viewer.
func NewTripResponse(trip models.Trip, viewer string) TripResponse {
	return TripResponse{
		ID:                trip.ID,
		Title:             trip.Title,
		Description:       trip.Description,
		IsPrivate:         trip.IsPrivate,
		IsDraft:           trip.IsDraft,
		CreatedBy:         trip.CreatedBy,
		Tags:              nonNilStrings(trip.Tags),
		FlowCards:         append([]itinerary.FlatCard{}, trip.FlowCards...),
		Days:              append([]itinerary.Day{}, trip.Days...),
		Media:             append([]itinerary.Media{}, trip.Media...),
		LikesCount:        trip.LikesCount,
		SavesCount:        trip.SavesCount,
		FollowersCount:    trip.FollowersCount,
		DuplicationsCount: trip.DuplicationsCount,
		ViewsCount:        trip.ViewsCount,
		OriginalTripID:    trip.OriginalTripID,
		IsLiked:           trip.IsLikedBy(viewer),
		CanEdit:           trip.CanEdit(viewer),
		CreatedAt:         trip.CreatedAt,
		UpdatedAt:         trip.UpdatedAt,
	}
}

// EngagementResponse reports the caller's state after a like, save or follow toggle.
type EngagementResponse struct {
	TripID string `json:"trip_id"`
	Active bool   `json:"active"`
	Count  int    `json:"count"`
}

// MediaResponse lists media items.
type MediaResponse struct {
	Media []itinerary.Media `json:"media"`
}

func nonNilStrings(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
