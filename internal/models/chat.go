package models

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// ConversationType distinguishes direct messages from group chats.
type ConversationType string

const (
	ConversationTypeDM    ConversationType = "dm"
	ConversationTypeGroup ConversationType = "group"
)

// MemberRole is the role a user holds inside a conversation.
type MemberRole string

const (
	MemberRoleAdmin  MemberRole = "admin"
	MemberRoleMember MemberRole = "member"
)

// MemberRef is the compact membership entry stored on the conversation itself.
type MemberRef struct {
	UID  string     `json:"uid"`
	Role MemberRole `json:"role"`
}

// Conversation is a direct-message or group chat thread.
type Conversation struct {
	ID              string                         `gorm:"primaryKey;size:36" json:"id"`
	Type            ConversationType               `gorm:"size:16;index;not null" json:"type"`
	Name            string                         `gorm:"size:255" json:"name"`
	Description     string                         `gorm:"type:text" json:"description"`
	Destination     string                         `gorm:"size:255" json:"destination"`
	Avatar          string                         `gorm:"size:1024" json:"avatar"`
	Members         datatypes.JSONSlice[MemberRef] `gorm:"type:json" json:"members"`
	MemberCount     int                            `gorm:"not null;default:0" json:"member_count"`
	InviteCode      *string                        `gorm:"size:16;uniqueIndex" json:"invite_code,omitempty"`
	LastMessage     string                         `gorm:"type:text" json:"last_message"`
	LastMessageAt   *time.Time                     `json:"last_message_at"`
	LastMessageBy   string                         `gorm:"size:128" json:"last_message_by"`
	LastMessageType MessageType                    `gorm:"size:16" json:"last_message_type"`
	LastActivityAt  time.Time                      `gorm:"index" json:"last_activity_at"`
	CreatedBy       string                         `gorm:"size:128;index" json:"created_by"`
	IsPrivate       bool                           `gorm:"not null;default:false" json:"is_private"`
	IsPinned        bool                           `gorm:"not null;default:false" json:"is_pinned"`
	IsArchived      bool                           `gorm:"not null;default:false" json:"is_archived"`
	CreatedAt       time.Time                      `json:"created_at"`
	UpdatedAt       time.Time                      `json:"updated_at"`
}

// HasMember reports whether uid appears in the membership list.
func (c Conversation) HasMember(uid string) bool {
	for _, member := range c.Members {
		if member.UID == uid {
			return true
		}
	}
	return false
}

// MemberIDs returns the ids of every member in membership order.
func (c Conversation) MemberIDs() []string {
	ids := make([]string, 0, len(c.Members))
	for _, member := range c.Members {
		ids = append(ids, member.UID)
	}
	return ids
}

// ConversationMember mirrors a membership entry with richer profile fields.
type ConversationMember struct {
	ConversationID string     `gorm:"primaryKey;size:36" json:"conversation_id"`
	UserID         string     `gorm:"primaryKey;size:128;index" json:"user_id"`
	Role           MemberRole `gorm:"size:16;not null" json:"role"`
	DisplayName    string     `gorm:"size:255" json:"display_name"`
	Email          string     `gorm:"size:255" json:"email"`
	PhotoURL       string     `gorm:"size:1024" json:"photo_url"`
	JoinedAt       time.Time  `json:"joined_at"`
	IsOnline       bool       `gorm:"not null;default:false" json:"is_online"`
	LastSeen       *time.Time `json:"last_seen"`
}

// UnreadCounter holds one member's unread message count for a conversation.
type UnreadCounter struct {
	ConversationID string `gorm:"primaryKey;size:36"`
	UserID         string `gorm:"primaryKey;size:128"`
	Count          int    `gorm:"not null;default:0"`
}

// UserChat is the personal conversation index entry of a user.
type UserChat struct {
	UserID         string    `gorm:"primaryKey;size:128"`
	ConversationID string    `gorm:"primaryKey;size:36;index"`
	JoinedAt       time.Time `json:"joined_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// MessageType enumerates the supported message payloads.
type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeImage    MessageType = "image"
	MessageTypeFile     MessageType = "file"
	MessageTypeLocation MessageType = "location"
	MessageTypePoll     MessageType = "poll"
	MessageTypeAI       MessageType = "ai"
	MessageTypeSystem   MessageType = "system"
)

// Valid reports whether the message type is one of the known values.
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeFile, MessageTypeLocation, MessageTypePoll, MessageTypeAI, MessageTypeSystem:
		return true
	default:
		return false
	}
}

// Reaction is an emoji bucket with the users who reacted.
type Reaction struct {
	Emoji string   `json:"emoji"`
	Users []string `json:"users"`
	Count int      `json:"count"`
}

// PollOption is one selectable answer of a poll.
type PollOption struct {
	Text  string   `json:"text"`
	Votes []string `json:"votes"`
	Count int      `json:"count"`
}

// Poll is attached to messages of type poll.
type Poll struct {
	Question      string       `json:"question"`
	Options       []PollOption `json:"options"`
	AllowMultiple bool         `json:"allow_multiple"`
	IsActive      bool         `json:"is_active"`
	CreatedBy     string       `json:"created_by"`
	ExpiresAt     *time.Time   `json:"expires_at,omitempty"`
}

// SharedLocation is attached to messages of type location.
type SharedLocation struct {
	Name        string   `json:"name"`
	Address     string   `json:"address"`
	Lat         float64  `json:"lat"`
	Lng         float64  `json:"lng"`
	Rating      *float64 `json:"rating,omitempty"`
	PriceRange  string   `json:"price_range,omitempty"`
	Category    string   `json:"category,omitempty"`
	Description string   `json:"description,omitempty"`
}

// Attachment describes an uploaded file referenced by a message.
type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Type string `json:"type"`
	Size int64  `json:"size"`
	Path string `json:"path"`
}

// Message is a single chat entry. Messages are never removed, only flagged.
type Message struct {
	ID           string                              `gorm:"primaryKey;size:36" json:"id"`
	ChatID       string                              `gorm:"size:36;index:idx_messages_chat_created,priority:1;not null" json:"chat_id"`
	SenderID     string                              `gorm:"size:128;index" json:"sender_id"`
	SenderName   string                              `gorm:"size:255" json:"sender_name"`
	SenderAvatar string                              `gorm:"size:1024" json:"sender_avatar"`
	Content      string                              `gorm:"type:text" json:"content"`
	Type         MessageType                         `gorm:"size:16;not null;default:text" json:"type"`
	ReadBy       datatypes.JSONSlice[string]         `gorm:"type:json" json:"read_by"`
	Reactions    datatypes.JSONSlice[Reaction]       `gorm:"type:json" json:"reactions"`
	Poll         datatypes.JSONType[*Poll]           `gorm:"type:json" json:"poll"`
	Location     datatypes.JSONType[*SharedLocation] `gorm:"type:json" json:"location"`
	Attachments  datatypes.JSONSlice[Attachment]     `gorm:"type:json" json:"attachments"`
	AIActions    datatypes.JSONSlice[string]         `gorm:"type:json" json:"ai_actions"`
	ReplyTo      *string                             `gorm:"size:36" json:"reply_to,omitempty"`
	Edited       bool                                `gorm:"not null;default:false" json:"edited"`
	EditedAt     *time.Time                          `json:"edited_at,omitempty"`
	Deleted      bool                                `gorm:"not null;default:false" json:"deleted"`
	DeletedAt    *time.Time                          `json:"deleted_at,omitempty"`
	CreatedAt    time.Time                           `gorm:"index:idx_messages_chat_created,priority:2" json:"created_at"`
	UpdatedAt    time.Time                           `json:"updated_at"`
}

// IsReadBy reports whether uid has read the message.
func (m Message) IsReadBy(uid string) bool {
	for _, reader := range m.ReadBy {
		if reader == uid {
			return true
		}
	}
	return false
}

// NewPoll builds an active single-choice poll with empty vote lists.
func NewPoll(question string, options []string, allowMultiple bool, createdBy string) *Poll {
	poll := &Poll{
		Question:      question,
		Options:       make([]PollOption, 0, len(options)),
		AllowMultiple: allowMultiple,
		IsActive:      true,
		CreatedBy:     createdBy,
	}
	for _, option := range options {
		poll.Options = append(poll.Options, PollOption{Text: option, Votes: []string{}})
	}
	return poll
}

// Vote records uid against the option at index. Single-choice polls first
// retract uid from every option.
func (p *Poll) Vote(uid string, index int) error {
	if !p.IsActive {
		return ErrPollClosed
	}
	if index < 0 || index >= len(p.Options) {
		return fmt.Errorf("%w: poll option %d out of range", ErrInvalidInput, index)
	}

	if !p.AllowMultiple {
		for i := range p.Options {
			p.Options[i].Votes = removeString(p.Options[i].Votes, uid)
			p.Options[i].Count = len(p.Options[i].Votes)
		}
	}

	option := &p.Options[index]
	if !containsString(option.Votes, uid) {
		option.Votes = append(option.Votes, uid)
	}
	option.Count = len(option.Votes)
	return nil
}

// ToggleReaction adds uid to the emoji bucket, or removes it when already
// present. Buckets that reach zero are dropped.
func ToggleReaction(reactions []Reaction, uid, emoji string) []Reaction {
	out := make([]Reaction, 0, len(reactions)+1)
	found := false
	for _, reaction := range reactions {
		if reaction.Emoji != emoji {
			out = append(out, reaction)
			continue
		}
		found = true
		users := append([]string(nil), reaction.Users...)
		if containsString(users, uid) {
			users = removeString(users, uid)
		} else {
			users = append(users, uid)
		}
		if len(users) == 0 {
			continue
		}
		out = append(out, Reaction{Emoji: emoji, Users: users, Count: len(users)})
	}
	if !found {
		out = append(out, Reaction{Emoji: emoji, Users: []string{uid}, Count: 1})
	}
	return out
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}

func removeString(values []string, target string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value != target {
			out = append(out, value)
		}
	}
	return out
}
