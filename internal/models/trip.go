package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/noah-isme/onquest-api/internal/itinerary"
)

// Trip is a persisted quest.
type Trip struct {
	ID                string                                  `gorm:"primaryKey;size:36" json:"id"`
	Title             string                                  `gorm:"size:255;not null" json:"title"`
	Description       string                                  `gorm:"type:text" json:"description"`
	IsPrivate         bool                                    `gorm:"not null" json:"is_private"`
	IsDraft           bool                                    `gorm:"not null" json:"is_draft"`
	CreatedBy         string                                  `gorm:"size:128;index;not null" json:"created_by"`
	Tags              datatypes.JSONSlice[string]             `gorm:"type:json" json:"tags"`
	FlowCards         datatypes.JSONSlice[itinerary.FlatCard] `gorm:"type:json" json:"flow_cards"`
	Days              datatypes.JSONSlice[itinerary.Day]      `gorm:"type:json" json:"days"`
	Media             datatypes.JSONSlice[itinerary.Media]    `gorm:"type:json" json:"media"`
	Likes             datatypes.JSONSlice[string]             `gorm:"type:json" json:"likes"`
	CoOwners          datatypes.JSONSlice[string]             `gorm:"type:json" json:"co_owners"`
	LikesCount        int                                     `gorm:"not null;default:0" json:"likes_count"`
	SavesCount        int                                     `gorm:"not null;default:0" json:"saves_count"`
	FollowersCount    int                                     `gorm:"not null;default:0" json:"followers_count"`
	DuplicationsCount int                                     `gorm:"not null;default:0" json:"duplications_count"`
	ViewsCount        int                                     `gorm:"not null;default:0" json:"views_count"`
	OriginalTripID    *string                                 `gorm:"size:36;index" json:"original_trip_id,omitempty"`
	CreatedAt         time.Time                               `json:"created_at"`
	UpdatedAt         time.Time                               `json:"updated_at"`
}

// IsLikedBy reports whether uid liked the trip.
func (t Trip) IsLikedBy(uid string) bool {
	return containsString(t.Likes, uid)
}

// CanEdit reports whether uid owns or co-owns the trip.
func (t Trip) CanEdit(uid string) bool {
	return t.CreatedBy == uid || containsString(t.CoOwners, uid)
}
