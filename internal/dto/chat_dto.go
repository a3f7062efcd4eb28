package dto

import (
	"time"

	"github.com/noah-isme/onquest-api/internal/models"
)

// CreateGroupRequest describes a new group conversation.
type CreateGroupRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=120"`
	Description string `json:"description" validate:"omitempty,max=1000"`
	Destination string `json:"destination" validate:"omitempty,max=255"`
	Avatar      string `json:"avatar" validate:"omitempty,max=1024"`
	IsPrivate   bool   `json:"is_private"`
}

// JoinGroupRequest joins a group by invite code.
type JoinGroupRequest struct {
	InviteCode string `json:"invite_code" validate:"required,len=8,alphanum"`
}

// DirectMessageRequest opens a direct conversation with another user.
type DirectMessageRequest struct {
	UserID string `json:"user_id" validate:"required,max=128"`
}

// SendMessageRequest posts a text message.
type SendMessageRequest struct {
	Content string  `json:"content" validate:"required,min=1,max=4000"`
	ReplyTo *string `json:"reply_to" validate:"omitempty,max=36"`
}

// SendLocationRequest shares a place in a conversation.
type SendLocationRequest struct {
	Name        string   `json:"name" validate:"required,max=255"`
	Address     string   `json:"address" validate:"omitempty,max=512"`
	Lat         float64  `json:"lat" validate:"gte=-90,lte=90"`
	Lng         float64  `json:"lng" validate:"gte=-180,lte=180"`
	Rating      *float64 `json:"rating" validate:"omitempty,gte=0,lte=5"`
	PriceRange  string   `json:"price_range" validate:"omitempty,max=16"`
	Category    string   `json:"category" validate:"omitempty,max=64"`
	Description string   `json:"description" validate:"omitempty,max=1000"`
}

// SendPollRequest creates a poll message.
type SendPollRequest struct {
	Question      string     `json:"question" validate:"required,min=1,max=300"`
	Options       []string   `json:"options" validate:"required,min=2,max=10,dive,required,max=120"`
	AllowMultiple bool       `json:"allow_multiple"`
	ExpiresAt     *time.Time `json:"expires_at"`
}

// SendAIMessageRequest asks the assistant to post into the conversation. When
// Content is provided it is posted verbatim.
type SendAIMessageRequest struct {
	Prompt  string   `json:"prompt" validate:"omitempty,max=2000"`
	Content string   `json:"content" validate:"omitempty,max=4000"`
	Actions []string `json:"actions" validate:"omitempty,max=5,dive,max=80"`
}

// VoteRequest casts a vote for a poll option.
type VoteRequest struct {
	OptionIndex int `json:"option_index" validate:"gte=0"`
}

// ReactionRequest toggles an emoji reaction.
type ReactionRequest struct {
	Emoji string `json:"emoji" validate:"required,max=16"`
}

// EditMessageRequest replaces the text of a message.
type EditMessageRequest struct {
	Content string `json:"content" validate:"required,min=1,max=4000"`
}

// PresenceRequest updates the caller's online flag.
type PresenceRequest struct {
	Online bool `json:"online"`
}

// MessageListQuery bounds message history.
type MessageListQuery struct {
	Limit int `query:"limit" validate:"omitempty,min=1,max=500"`
}

// ConversationResponse is a conversation as seen by one member.
type ConversationResponse struct {
	ID              string                  `json:"id"`
	Type            models.ConversationType `json:"type"`
	Name            string                  `json:"name"`
	Description     string                  `json:"description"`
	Destination     string                  `json:"destination"`
	Avatar          string                  `json:"avatar"`
	Members         []models.MemberRef      `json:"members"`
	MemberCount     int                     `json:"member_count"`
	InviteCode      string                  `json:"invite_code,omitempty"`
	LastMessage     string                  `json:"last_message"`
	LastMessageAt   *time.Time              `json:"last_message_at"`
	LastMessageBy   string                  `json:"last_message_by"`
	LastMessageType models.MessageType      `json:"last_message_type"`
	UnreadCount     int                     `json:"unread_count"`
	CreatedBy       string                  `json:"created_by"`
	IsPrivate       bool                    `json:"is_private"`
	IsPinned        bool                    `json:"is_pinned"`
	IsArchived      bool                    `json:"is_archived"`
	LastActivityAt  time.Time               `json:"last_activity_at"`
	CreatedAt       time.Time               `json:"created_at"`
}

// NewConversationResponse converts a conversation and the viewer's unread count.
func NewConversationResponse(conversation models.Conversation, unread int) ConversationResponse {
	resp := ConversationResponse{
		ID:              conversation.ID,
		Type:            conversation.Type,
		Name:            conversation.Name,
		Description:     conversation.Description,
		Destination:     conversation.Destination,
		Avatar:          conversation.Avatar,
		Members:         append([]models.MemberRef{}, conversation.Members...),
		MemberCount:     conversation.MemberCount,
		LastMessage:     conversation.LastMessage,
		LastMessageAt:   conversation.LastMessageAt,
		LastMessageBy:   conversation.LastMessageBy,
		LastMessageType: conversation.LastMessageType,
		UnreadCount:     unread,
		CreatedBy:       conversation.CreatedBy,
		IsPrivate:       conversation.IsPrivate,
		IsPinned:        conversation.IsPinned,
		IsArchived:      conversation.IsArchived,
		LastActivityAt:  conversation.LastActivityAt,
		CreatedAt:       conversation.CreatedAt,
	}
	if conversation.InviteCode != nil {
		resp.InviteCode = *conversation.InviteCode
	}
	return resp
}

// MessageResponse is the serialized representation of a chat message.
type MessageResponse struct {
	ID           string                 `json:"id"`
	ChatID       string                 `json:"chat_id"`
	SenderID     string                 `json:"sender_id"`
	SenderName   string                 `json:"sender_name"`
	SenderAvatar string                 `json:"sender_avatar"`
	Content      string                 `json:"content"`
	Type         models.MessageType     `json:"type"`
	ReadBy       []string               `json:"read_by"`
	Reactions    []models.Reaction      `json:"reactions"`
	Poll         *models.Poll           `json:"poll,omitempty"`
	Location     *models.SharedLocation `json:"location,omitempty"`
	Attachments  []models.Attachment    `json:"attachments"`
	AIActions    []string               `json:"ai_actions,omitempty"`
	ReplyTo      *string                `json:"reply_to,omitempty"`
	Edited       bool                   `json:"edited"`
	Deleted      bool                   `json:"deleted"`
	Pending      bool                   `json:"pending,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

// NewMessageResponse converts a model into a DTO.
func NewMessageResponse(message models.Message) MessageResponse {
	return MessageResponse{
		ID:           message.ID,
		ChatID:       message.ChatID,
		SenderID:     message.SenderID,
		SenderName:   message.SenderName,
		SenderAvatar: message.SenderAvatar,
		Content:      message.Content,
		Type:         message.Type,
		ReadBy:       append([]string{}, message.ReadBy...),
		Reactions:    append([]models.Reaction{}, message.Reactions...),
		Poll:         message.Poll.Data(),
		Location:     message.Location.Data(),
		Attachments:  append([]models.Attachment{}, message.Attachments...),
		AIActions:    message.AIActions,
		ReplyTo:      message.ReplyTo,
		Edited:       message.Edited,
		Deleted:      message.Deleted,
		CreatedAt:    message.CreatedAt,
	}
}

// NewMessageResponseSlice converts a slice of models into DTOs.
func NewMessageResponseSlice(messages []models.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(messages))
	for _, message := range messages {
		out = append(out, NewMessageResponse(message))
	}
	return out
}

// MemberResponse is one entry of a conversation's member mirror.
type MemberResponse struct {
	UserID      string            `json:"user_id"`
	Role        models.MemberRole `json:"role"`
	DisplayName string            `json:"display_name"`
	Email       string            `json:"email"`
	PhotoURL    string            `json:"photo_url"`
	JoinedAt    time.Time         `json:"joined_at"`
	IsOnline    bool              `json:"is_online"`
	LastSeen    *time.Time        `json:"last_seen"`
}

// NewMemberResponse converts a member mirror row.
func NewMemberResponse(member models.ConversationMember) MemberResponse {
	return MemberResponse{
		UserID:      member.UserID,
		Role:        member.Role,
		DisplayName: member.DisplayName,
		Email:       member.Email,
		PhotoURL:    member.PhotoURL,
		JoinedAt:    member.JoinedAt,
		IsOnline:    member.IsOnline,
		LastSeen:    member.LastSeen,
	}
}

// ReadReceiptResponse reports how many messages were marked as read.
type ReadReceiptResponse struct {
	ChatID string `json:"chat_id"`
	Marked int    `json:"marked"`
}

// SessionEvent is pushed to websocket clients whenever the session view changes.
type SessionEvent struct {
	Type          string                 `json:"type"`
	Conversations []ConversationResponse `json:"conversations,omitempty"`
	ActiveChatID  string                 `json:"active_chat_id,omitempty"`
	Messages      []MessageResponse      `json:"messages,omitempty"`
	Members       []MemberResponse       `json:"members,omitempty"`
	Error         string                 `json:"error,omitempty"`
}

// SessionCommand is sent by websocket clients to drive their session.
type SessionCommand struct {
	Type    string `json:"type" validate:"required,oneof=open close visibility send read"`
	ChatID  string `json:"chat_id" validate:"omitempty,max=36"`
	Visible *bool  `json:"visible"`
	Content string `json:"content" validate:"omitempty,max=4000"`
}
