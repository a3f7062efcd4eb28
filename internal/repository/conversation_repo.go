package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/onquest-api/internal/models"
)

// LeaveResult describes the outcome of removing a member from a conversation.
type LeaveResult struct {
	Conversation models.Conversation
	Deleted      bool
	// Members lists the ids that belonged to the conversation before removal.
	Members []string
}

// ConversationRepository persists conversations, their member mirror, unread
// counters and the per-user conversation index.
type ConversationRepository interface {
	Get(ctx context.Context, id string) (models.Conversation, error)
	FindByInviteCode(ctx context.Context, code string) (models.Conversation, error)
	CreateGroup(ctx context.Context, conversation *models.Conversation, owner models.ConversationMember, system *models.Message) error
	AddMember(ctx context.Context, conversationID string, member models.ConversationMember, system *models.Message) (models.Conversation, error)
	RemoveMember(ctx context.Context, conversationID, uid string, system *models.Message) (LeaveResult, error)
	FindDirect(ctx context.Context, a, b string) (models.Conversation, error)
	CreateDirect(ctx context.Context, conversation *models.Conversation, members []models.ConversationMember) (models.Conversation, error)
	RecordMessage(ctx context.Context, message *models.Message, preview string) error
	ResetUnread(ctx context.Context, conversationID, uid string) error
	ListForUser(ctx context.Context, uid string) ([]models.Conversation, error)
	UnreadCounts(ctx context.Context, uid string) (map[string]int, error)
	Members(ctx context.Context, conversationID string) ([]models.ConversationMember, error)
	IsMember(ctx context.Context, conversationID, uid string) (bool, error)
	SetPresence(ctx context.Context, uid string, online bool, at time.Time) ([]string, error)
}

type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository constructs a conversation repository backed by GORM.
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) Get(ctx context.Context, id string) (models.Conversation, error) {
	var conversation models.Conversation
	if err := r.db.WithContext(ctx).First(&conversation, "id = ?", id).Error; err != nil {
		return models.Conversation{}, translateError(err)
	}
	return conversation, nil
}

func (r *conversationRepository) FindByInviteCode(ctx context.Context, code string) (models.Conversation, error) {
	var conversation models.Conversation
	err := r.db.WithContext(ctx).
		Where("invite_code = ? AND type = ?", code, models.ConversationTypeGroup).
		First(&conversation).Error
	if err != nil {
		return models.Conversation{}, translateError(err)
	}
	return conversation, nil
}

func (r *conversationRepository) CreateGroup(ctx context.Context, conversation *models.Conversation, owner models.ConversationMember, system *models.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(conversation).Error; err != nil {
			return err
		}
		if err := attachMember(tx, conversation.ID, owner); err != nil {
			return err
		}
		if system != nil {
			if err := tx.Create(system).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *conversationRepository) AddMember(ctx context.Context, conversationID string, member models.ConversationMember, system *models.Message) (models.Conversation, error) {
	var conversation models.Conversation
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&conversation, "id = ?", conversationID).Error; err != nil {
			return translateError(err)
		}
		if conversation.HasMember(member.UserID) {
			return models.ErrAlreadyMember
		}

		now := time.Now().UTC()
		conversation.Members = append(conversation.Members, models.MemberRef{UID: member.UserID, Role: member.Role})
		conversation.MemberCount = len(conversation.Members)
		conversation.LastActivityAt = now
		if err := tx.Model(&models.Conversation{}).Where("id = ?", conversationID).Updates(map[string]interface{}{
			"members":          conversation.Members,
			"member_count":     conversation.MemberCount,
			"last_activity_at": now,
		}).Error; err != nil {
			return err
		}

		if err := attachMember(tx, conversationID, member); err != nil {
			return err
		}
		if system != nil {
			return tx.Create(system).Error
		}
		return nil
	})
	if err != nil {
		return models.Conversation{}, err
	}
	return conversation, nil
}

func (r *conversationRepository) RemoveMember(ctx context.Context, conversationID, uid string, system *models.Message) (LeaveResult, error) {
	var result LeaveResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conversation models.Conversation
		if err := forUpdate(tx).First(&conversation, "id = ?", conversationID).Error; err != nil {
			return translateError(err)
		}
		if !conversation.HasMember(uid) {
			return models.ErrNotMember
		}
		result.Members = conversation.MemberIDs()

		remaining := make([]models.MemberRef, 0, len(conversation.Members))
		for _, member := range conversation.Members {
			if member.UID != uid {
				remaining = append(remaining, member)
			}
		}

		if len(remaining) == 0 {
			if err := detachAll(tx, conversationID); err != nil {
				return err
			}
			if err := tx.Delete(&models.Conversation{}, "id = ?", conversationID).Error; err != nil {
				return err
			}
			result.Deleted = true
			result.Conversation = conversation
			return nil
		}

		if conversation.CreatedBy == uid {
			remaining[0].Role = models.MemberRoleAdmin
			conversation.CreatedBy = remaining[0].UID
			if err := tx.Model(&models.ConversationMember{}).
				Where("conversation_id = ? AND user_id = ?", conversationID, remaining[0].UID).
				Update("role", models.MemberRoleAdmin).Error; err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		conversation.Members = remaining
		conversation.MemberCount = len(remaining)
		conversation.LastActivityAt = now
		if err := tx.Model(&models.Conversation{}).Where("id = ?", conversationID).Updates(map[string]interface{}{
			"members":          conversation.Members,
			"member_count":     conversation.MemberCount,
			"created_by":       conversation.CreatedBy,
			"last_activity_at": now,
		}).Error; err != nil {
			return err
		}

		if err := detachMember(tx, conversationID, uid); err != nil {
			return err
		}
		if system != nil {
			if err := tx.Create(system).Error; err != nil {
				return err
			}
		}
		result.Conversation = conversation
		return nil
	})
	if err != nil {
		return LeaveResult{}, err
	}
	return result, nil
}

func (r *conversationRepository) FindDirect(ctx context.Context, a, b string) (models.Conversation, error) {
	var conversation models.Conversation
	err := r.db.WithContext(ctx).
		Joins("JOIN conversation_members AS first_member ON first_member.conversation_id = conversations.id AND first_member.user_id = ?", a).
		Joins("JOIN conversation_members AS second_member ON second_member.conversation_id = conversations.id AND second_member.user_id = ?", b).
		Where("conversations.type = ? AND conversations.member_count = 2", models.ConversationTypeDM).
		Order("conversations.created_at ASC").
		First(&conversation).Error
	if err != nil {
		return models.Conversation{}, translateError(err)
	}
	return conversation, nil
}

func (r *conversationRepository) CreateDirect(ctx context.Context, conversation *models.Conversation, members []models.ConversationMember) (models.Conversation, error) {
	var created models.Conversation
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(conversation)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// A concurrent request created the pair first.
			return tx.First(&created, "id = ?", conversation.ID).Error
		}
		for _, member := range members {
			if err := attachMember(tx, conversation.ID, member); err != nil {
				return err
			}
		}
		created = *conversation
		return nil
	})
	if err != nil {
		return models.Conversation{}, translateError(err)
	}
	return created, nil
}

func (r *conversationRepository) RecordMessage(ctx context.Context, message *models.Message, preview string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}

		updated := tx.Model(&models.Conversation{}).Where("id = ?", message.ChatID).Updates(map[string]interface{}{
			"last_message":      preview,
			"last_message_at":   message.CreatedAt,
			"last_message_by":   message.SenderID,
			"last_message_type": message.Type,
			"last_activity_at":  message.CreatedAt,
		})
		if updated.Error != nil {
			return updated.Error
		}
		if updated.RowsAffected == 0 {
			return models.ErrNotFound
		}

		if err := tx.Model(&models.UnreadCounter{}).
			Where("conversation_id = ? AND user_id <> ?", message.ChatID, message.SenderID).
			Update("count", gorm.Expr("count + ?", 1)).Error; err != nil {
			return err
		}

		return tx.Model(&models.UserChat{}).
			Where("conversation_id = ?", message.ChatID).
			Update("updated_at", message.CreatedAt).Error
	})
}

func (r *conversationRepository) ResetUnread(ctx context.Context, conversationID, uid string) error {
	return r.db.WithContext(ctx).Model(&models.UnreadCounter{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, uid).
		Update("count", 0).Error
}

func (r *conversationRepository) ListForUser(ctx context.Context, uid string) ([]models.Conversation, error) {
	var conversations []models.Conversation
	err := r.db.WithContext(ctx).
		Joins("JOIN user_chats ON user_chats.conversation_id = conversations.id AND user_chats.user_id = ?", uid).
		Order("conversations.last_activity_at DESC").
		Order("conversations.updated_at DESC").
		Find(&conversations).Error
	if err != nil {
		return nil, err
	}
	return conversations, nil
}

func (r *conversationRepository) UnreadCounts(ctx context.Context, uid string) (map[string]int, error) {
	var counters []models.UnreadCounter
	if err := r.db.WithContext(ctx).Where("user_id = ?", uid).Find(&counters).Error; err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(counters))
	for _, counter := range counters {
		counts[counter.ConversationID] = counter.Count
	}
	return counts, nil
}

func (r *conversationRepository) Members(ctx context.Context, conversationID string) ([]models.ConversationMember, error) {
	var members []models.ConversationMember
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("joined_at ASC").
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (r *conversationRepository) IsMember(ctx context.Context, conversationID, uid string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ConversationMember{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, uid).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *conversationRepository) SetPresence(ctx context.Context, uid string, online bool, at time.Time) ([]string, error) {
	var chatIDs []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.ConversationMember{}).
			Where("user_id = ?", uid).
			Updates(map[string]interface{}{"is_online": online, "last_seen": at}).Error; err != nil {
			return err
		}
		return tx.Model(&models.ConversationMember{}).
			Where("user_id = ?", uid).
			Pluck("conversation_id", &chatIDs).Error
	})
	if err != nil {
		return nil, err
	}
	return chatIDs, nil
}

func attachMember(tx *gorm.DB, conversationID string, member models.ConversationMember) error {
	member.ConversationID = conversationID
	if member.JoinedAt.IsZero() {
		member.JoinedAt = time.Now().UTC()
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&member).Error; err != nil {
		return err
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.UnreadCounter{
		ConversationID: conversationID,
		UserID:         member.UserID,
	}).Error; err != nil {
		return err
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.UserChat{
		UserID:         member.UserID,
		ConversationID: conversationID,
		JoinedAt:       member.JoinedAt,
	}).Error
}

func detachMember(tx *gorm.DB, conversationID, uid string) error {
	if err := tx.Delete(&models.ConversationMember{}, "conversation_id = ? AND user_id = ?", conversationID, uid).Error; err != nil {
		return err
	}
	if err := tx.Delete(&models.UnreadCounter{}, "conversation_id = ? AND user_id = ?", conversationID, uid).Error; err != nil {
		return err
	}
	return tx.Delete(&models.UserChat{}, "conversation_id = ? AND user_id = ?", conversationID, uid).Error
}

func detachAll(tx *gorm.DB, conversationID string) error {
	if err := tx.Delete(&models.ConversationMember{}, "conversation_id = ?", conversationID).Error; err != nil {
		return err
	}
	if err := tx.Delete(&models.UnreadCounter{}, "conversation_id = ?", conversationID).Error; err != nil {
		return err
	}
	return tx.Delete(&models.UserChat{}, "conversation_id = ?", conversationID).Error
}
