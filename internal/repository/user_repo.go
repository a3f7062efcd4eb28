package repository

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/onquest-api/internal/models"
)

// UserRepository persists user profiles.
type UserRepository interface {
	Get(ctx context.Context, uid string) (models.UserProfile, error)
	Upsert(ctx context.Context, profile *models.UserProfile) error
	SetPresence(ctx context.Context, uid string, online bool, at time.Time) error
	ToggleSavedTrip(ctx context.Context, uid, tripID string) (bool, error)
	ToggleFollowedTrip(ctx context.Context, uid, tripID string) (bool, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs a user repository backed by GORM.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Get(ctx context.Context, uid string) (models.UserProfile, error) {
	var profile models.UserProfile
	if err := r.db.WithContext(ctx).First(&profile, "uid = ?", uid).Error; err != nil {
		return models.UserProfile{}, translateError(err)
	}
	return profile, nil
}

// Upsert creates the profile or refreshes the identity fields of an existing one.
func (r *userRepository) Upsert(ctx context.Context, profile *models.UserProfile) error {
	if profile.SavedTrips == nil {
		profile.SavedTrips = datatypes.JSONSlice[string]{}
	}
	if profile.FollowedTrips == nil {
		profile.FollowedTrips = datatypes.JSONSlice[string]{}
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "uid"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "email", "photo_url", "updated_at"}),
	}).Create(profile).Error
}

func (r *userRepository) SetPresence(ctx context.Context, uid string, online bool, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.UserProfile{}).
		Where("uid = ?", uid).
		Updates(map[string]interface{}{"is_online": online, "last_seen": at}).Error
}

func (r *userRepository) ToggleSavedTrip(ctx context.Context, uid, tripID string) (bool, error) {
	return r.toggle(ctx, uid, tripID, "saved_trips", func(p *models.UserProfile) *datatypes.JSONSlice[string] {
		return &p.SavedTrips
	})
}

func (r *userRepository) ToggleFollowedTrip(ctx context.Context, uid, tripID string) (bool, error) {
	return r.toggle(ctx, uid, tripID, "followed_trips", func(p *models.UserProfile) *datatypes.JSONSlice[string] {
		return &p.FollowedTrips
	})
}

// toggle adds tripID to the list selected by field, or removes it when present.
// It reports whether the trip is in the list afterwards.
func (r *userRepository) toggle(ctx context.Context, uid, tripID, column string, field func(*models.UserProfile) *datatypes.JSONSlice[string]) (bool, error) {
	added := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var profile models.UserProfile
		if err := forUpdate(tx).First(&profile, "uid = ?", uid).Error; err != nil {
			return translateError(err)
		}

		list := field(&profile)
		next := datatypes.JSONSlice[string]{}
		for _, id := range *list {
			if id != tripID {
				next = append(next, id)
			}
		}
		if len(next) == len(*list) {
			next = append(next, tripID)
			added = true
		}

		return tx.Model(&models.UserProfile{}).Where("uid = ?", uid).Update(column, next).Error
	})
	if err != nil {
		return false, err
	}
	return added, nil
}
