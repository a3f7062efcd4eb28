package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/onquest-api/internal/itinerary"
	"github.com/noah-isme/onquest-api/internal/models"
)

// QuestDraft is an itinerary editor session owned by one user.
type QuestDraft struct {
	ID        string           `json:"id"`
	OwnerID   string           `json:"owner_id"`
	Editor    itinerary.Editor `json:"editor"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// DraftRepository keeps editor sessions between requests.
type DraftRepository interface {
	Load(ctx context.Context, ownerID, draftID string) (QuestDraft, error)
	Save(ctx context.Context, draft *QuestDraft) error
	Delete(ctx context.Context, ownerID, draftID string) error
}

type draftRepository struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewDraftRepository stores drafts in Redis under prefix with a sliding TTL.
func NewDraftRepository(client *redis.Client, prefix string, ttl time.Duration) DraftRepository {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &draftRepository{client: client, prefix: prefix, ttl: ttl}
}

func (r *draftRepository) key(ownerID, draftID string) string {
	if r.prefix == "" {
		return fmt.Sprintf("quest:draft:%s:%s", ownerID, draftID)
	}
	return fmt.Sprintf("%s:quest:draft:%s:%s", r.prefix, ownerID, draftID)
}

func (r *draftRepository) Load(ctx context.Context, ownerID, draftID string) (QuestDraft, error) {
	payload, err := r.client.Get(ctx, r.key(ownerID, draftID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return QuestDraft{}, models.ErrNotFound
		}
		return QuestDraft{}, err
	}

	var draft QuestDraft
	if err := json.Unmarshal(payload, &draft); err != nil {
		return QuestDraft{}, fmt.Errorf("decode quest draft: %w", err)
	}
	return draft, nil
}

func (r *draftRepository) Save(ctx context.Context, draft *QuestDraft) error {
	draft.UpdatedAt = time.Now().UTC()
	payload, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("encode quest draft: %w", err)
	}
	return r.client.Set(ctx, r.key(draft.OwnerID, draft.ID), payload, r.ttl).Err()
}

func (r *draftRepository) Delete(ctx context.Context, ownerID, draftID string) error {
	return r.client.Del(ctx, r.key(ownerID, draftID)).Err()
}
