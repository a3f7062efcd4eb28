package repository

import (
	"context"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/onquest-api/internal/models"
)

// MessageRepository persists chat messages. Messages are never removed.
type MessageRepository interface {
	Get(ctx context.Context, id string) (models.Message, error)
	ListByChat(ctx context.Context, chatID string, limit int) ([]models.Message, error)
	Mutate(ctx context.Context, id string, mutate func(message *models.Message) error) (models.Message, error)
	MarkRead(ctx context.Context, chatID, uid string) (int, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository constructs a message repository backed by GORM.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Get(ctx context.Context, id string) (models.Message, error) {
	var message models.Message
	if err := r.db.WithContext(ctx).First(&message, "id = ?", id).Error; err != nil {
		return models.Message{}, translateError(err)
	}
	return message, nil
}

// ListByChat returns the most recent messages of a chat in ascending creation
// order. A non-positive limit returns the whole history.
func (r *messageRepository) ListByChat(ctx context.Context, chatID string, limit int) ([]models.Message, error) {
	query := r.db.WithContext(ctx).Where("chat_id = ?", chatID)

	var messages []models.Message
	if limit <= 0 {
		if err := query.Order("created_at ASC").Order("id ASC").Find(&messages).Error; err != nil {
			return nil, err
		}
		return messages, nil
	}

	if err := query.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&messages).Error; err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// Mutate loads the message, applies mutate and writes it back in one transaction.
func (r *messageRepository) Mutate(ctx context.Context, id string, mutate func(message *models.Message) error) (models.Message, error) {
	var message models.Message
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&message, "id = ?", id).Error; err != nil {
			return translateError(err)
		}
		if err := mutate(&message); err != nil {
			return err
		}
		return tx.Save(&message).Error
	})
	if err != nil {
		return models.Message{}, err
	}
	return message, nil
}

// MarkRead adds uid to the readers of every message in the chat it did not author.
func (r *messageRepository) MarkRead(ctx context.Context, chatID, uid string) (int, error) {
	marked := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var messages []models.Message
		if err := tx.Where("chat_id = ? AND sender_id <> ?", chatID, uid).Find(&messages).Error; err != nil {
			return err
		}
		for i := range messages {
			message := &messages[i]
			if message.IsReadBy(uid) {
				continue
			}
			readBy := append(datatypes.JSONSlice[string]{}, message.ReadBy...)
			readBy = append(readBy, uid)
			if err := tx.Model(&models.Message{}).Where("id = ?", message.ID).Update("read_by", readBy).Error; err != nil {
				return err
			}
			marked++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return marked, nil
}
