package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Identity is the signed-in user as asserted by the identity service.
type Identity struct {
	UID         string
	DisplayName string
	Email       string
	PhotoURL    string
}

// Authenticated reports whether the identity carries a user id.
func (i Identity) Authenticated() bool {
	return strings.TrimSpace(i.UID) != ""
}

// Name returns the display name, falling back to a generic label.
func (i Identity) Name() string {
	if name := strings.TrimSpace(i.DisplayName); name != "" {
		return name
	}
	return "User"
}

// Avatar returns the photo URL, falling back to an emoji avatar.
func (i Identity) Avatar() string {
	if photo := strings.TrimSpace(i.PhotoURL); photo != "" {
		return photo
	}
	return "👤"
}

// UserProfile is the persisted user document.
type UserProfile struct {
	UID           string                      `gorm:"primaryKey;size:128" json:"uid"`
	DisplayName   string                      `gorm:"size:255" json:"display_name"`
	Email         string                      `gorm:"size:255;index" json:"email"`
	PhotoURL      string                      `gorm:"size:1024" json:"photo_url"`
	IsOnline      bool                        `gorm:"not null;default:false" json:"is_online"`
	LastSeen      *time.Time                  `json:"last_seen"`
	SavedTrips    datatypes.JSONSlice[string] `gorm:"type:json" json:"saved_trips"`
	FollowedTrips datatypes.JSONSlice[string] `gorm:"type:json" json:"followed_trips"`
	CreatedAt     time.Time                   `json:"created_at"`
	UpdatedAt     time.Time                   `json:"updated_at"`
}

// TableName keeps the collection name used by the document store.
func (UserProfile) TableName() string {
	return "users"
}
