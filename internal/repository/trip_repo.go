package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/onquest-api/internal/itinerary"
	"github.com/noah-isme/onquest-api/internal/models"
)

// TripCounter names a numeric engagement column on trips.
type TripCounter string

const (
	TripCounterLikes        TripCounter = "likes_count"
	TripCounterSaves        TripCounter = "saves_count"
	TripCounterFollowers    TripCounter = "followers_count"
	TripCounterDuplications TripCounter = "duplications_count"
	TripCounterViews        TripCounter = "views_count"
)

// TripRepository persists quests saved from the itinerary editor.
type TripRepository interface {
	Create(ctx context.Context, trip *models.Trip) error
	Get(ctx context.Context, id string) (models.Trip, error)
	Update(ctx context.Context, trip *models.Trip) error
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error
	AddMedia(ctx context.Context, id string, media []itinerary.Media) (models.Trip, error)
	RemoveMedia(ctx context.Context, id, path string) (models.Trip, error)
	ToggleLike(ctx context.Context, id, uid string) (models.Trip, bool, error)
	IncrementCounter(ctx context.Context, id string, counter TripCounter, delta int) error
	Duplicate(ctx context.Context, id, uid string) (models.Trip, error)
}

type tripRepository struct {
	db *gorm.DB
}

// NewTripRepository constructs a trip repository backed by GORM.
func NewTripRepository(db *gorm.DB) TripRepository {
	return &tripRepository{db: db}
}

func (r *tripRepository) Create(ctx context.Context, trip *models.Trip) error {
	if trip.ID == "" {
		trip.ID = NewID()
	}
	normalizeTrip(trip)
	return r.db.WithContext(ctx).Create(trip).Error
}

func (r *tripRepository) Get(ctx context.Context, id string) (models.Trip, error) {
	var trip models.Trip
	if err := r.db.WithContext(ctx).First(&trip, "id = ?", id).Error; err != nil {
		return models.Trip{}, translateError(err)
	}
	return trip, nil
}

func (r *tripRepository) Update(ctx context.Context, trip *models.Trip) error {
	normalizeTrip(trip)
	result := r.db.WithContext(ctx).Model(&models.Trip{}).Where("id = ?", trip.ID).Updates(map[string]interface{}{
		"title":       trip.Title,
		"description": trip.Description,
		"is_private":  trip.IsPrivate,
		"is_draft":    trip.IsDraft,
		"tags":        trip.Tags,
		"flow_cards":  trip.FlowCards,
		"days":        trip.Days,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *tripRepository) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now().UTC()
	result := r.db.WithContext(ctx).Model(&models.Trip{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}

// AddMedia unions media into the trip's list. Items whose path is already
// present are skipped.
func (r *tripRepository) AddMedia(ctx context.Context, id string, media []itinerary.Media) (models.Trip, error) {
	return r.mutate(ctx, id, func(trip *models.Trip) (map[string]interface{}, error) {
		seen := make(map[string]struct{}, len(trip.Media))
		for _, item := range trip.Media {
			seen[item.Path] = struct{}{}
		}
		for _, item := range media {
			if _, ok := seen[item.Path]; ok {
				continue
			}
			seen[item.Path] = struct{}{}
			trip.Media = append(trip.Media, item)
		}
		return map[string]interface{}{"media": trip.Media}, nil
	})
}

func (r *tripRepository) RemoveMedia(ctx context.Context, id, path string) (models.Trip, error) {
	return r.mutate(ctx, id, func(trip *models.Trip) (map[string]interface{}, error) {
		kept := datatypes.JSONSlice[itinerary.Media]{}
		for _, item := range trip.Media {
			if item.Path != path {
				kept = append(kept, item)
			}
		}
		trip.Media = kept
		return map[string]interface{}{"media": kept}, nil
	})
}

// ToggleLike adds or removes uid from the likers and keeps the count in step.
func (r *tripRepository) ToggleLike(ctx context.Context, id, uid string) (models.Trip, bool, error) {
	liked := false
	trip, err := r.mutate(ctx, id, func(trip *models.Trip) (map[string]interface{}, error) {
		likes := datatypes.JSONSlice[string]{}
		for _, liker := range trip.Likes {
			if liker != uid {
				likes = append(likes, liker)
			}
		}
		if len(likes) == len(trip.Likes) {
			likes = append(likes, uid)
			liked = true
		}
		trip.Likes = likes
		trip.LikesCount = len(likes)
		return map[string]interface{}{"likes": likes, "likes_count": trip.LikesCount}, nil
	})
	if err != nil {
		return models.Trip{}, false, err
	}
	return trip, liked, nil
}

func (r *tripRepository) IncrementCounter(ctx context.Context, id string, counter TripCounter, delta int) error {
	switch counter {
	case TripCounterLikes, TripCounterSaves, TripCounterFollowers, TripCounterDuplications, TripCounterViews:
	default:
		return fmt.Errorf("unknown trip counter %q", counter)
	}
	column := string(counter)
	result := r.db.WithContext(ctx).Model(&models.Trip{}).
		Where("id = ?", id).
		UpdateColumn(column, gorm.Expr(column+" + ?", delta))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Duplicate copies the trip into a private draft owned by uid and bumps the
// source's duplication count.
func (r *tripRepository) Duplicate(ctx context.Context, id, uid string) (models.Trip, error) {
	var copied models.Trip
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var source models.Trip
		if err := tx.First(&source, "id = ?", id).Error; err != nil {
			return translateError(err)
		}

		originalID := source.ID
		copied = models.Trip{
			ID:             NewID(),
			Title:          "Copy of " + source.Title,
			Description:    source.Description,
			IsPrivate:      true,
			IsDraft:        true,
			CreatedBy:      uid,
			Tags:           append(datatypes.JSONSlice[string]{}, source.Tags...),
			FlowCards:      append(datatypes.JSONSlice[itinerary.FlatCard]{}, source.FlowCards...),
			Days:           append(datatypes.JSONSlice[itinerary.Day]{}, source.Days...),
			Media:          append(datatypes.JSONSlice[itinerary.Media]{}, source.Media...),
			OriginalTripID: &originalID,
		}
		normalizeTrip(&copied)
		if err := tx.Create(&copied).Error; err != nil {
			return err
		}

		return tx.Model(&models.Trip{}).
			Where("id = ?", source.ID).
			UpdateColumn("duplications_count", gorm.Expr("duplications_count + ?", 1)).Error
	})
	if err != nil {
		return models.Trip{}, err
	}
	return copied, nil
}

func (r *tripRepository) mutate(ctx context.Context, id string, apply func(trip *models.Trip) (map[string]interface{}, error)) (models.Trip, error) {
	var trip models.Trip
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&trip, "id = ?", id).Error; err != nil {
			return translateError(err)
		}
		fields, err := apply(&trip)
		if err != nil {
			return err
		}
		return tx.Model(&models.Trip{}).Where("id = ?", id).Updates(fields).Error
	})
	if err != nil {
		return models.Trip{}, err
	}
	return trip, nil
}

func normalizeTrip(trip *models.Trip) {
	if trip.Tags == nil {
		trip.Tags = datatypes.JSONSlice[string]{}
	}
	if trip.FlowCards == nil {
		trip.FlowCards = datatypes.JSONSlice[itinerary.FlatCard]{}
	}
	if trip.Days == nil {
		trip.Days = datatypes.JSONSlice[itinerary.Day]{}
	}
	if trip.Media == nil {
		trip.Media = datatypes.JSONSlice[itinerary.Media]{}
	}
	if trip.Likes == nil {
		trip.Likes = datatypes.JSONSlice[string]{}
	}
	if trip.CoOwners == nil {
		trip.CoOwners = datatypes.JSONSlice[string]{}
	}
}
