package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"html"
	"math/big"
	"mime/multipart"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/noah-isme/onquest-api/internal/dto"
	"github.com/noah-isme/onquest-api/internal/models"
	"github.com/noah-isme/onquest-api/internal/observability"
	"github.com/noah-isme/onquest-api/internal/realtime"
	"github.com/noah-isme/onquest-api/internal/repository"
	"github.com/noah-isme/onquest-api/pkg/ai"
)

const (
	// AssistantSenderID is the sender id of travel assistant messages.
	AssistantSenderID = "mr-pebbles"
	assistantName     = "Mr. Pebbles"
	assistantAvatar   = "🤖"

	systemSenderID = "system"
	systemName     = "System"

	inviteAlphabet      = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	inviteCodeLength    = 8
	inviteCodeAttempts  = 5
	defaultGroupAvatar  = "👥"
	defaultMessageLimit = 200
	assistantHistory    = 20
)

var (
	// ErrNotMessageAuthor indicates an edit or delete of somebody else's message.
	ErrNotMessageAuthor = fmt.Errorf("%w: only the author can change this message", models.ErrNotMember)
	// ErrAssistantUnavailable indicates an assistant request without a configured assistant.
	ErrAssistantUnavailable = fmt.Errorf("%w: travel assistant is not configured", models.ErrInvalidInput)
)

// ChangePublisher notifies watchers that the data behind a topic changed.
type ChangePublisher interface {
	Publish(ctx context.Context, topics ...string)
}

// ChatService exposes conversation and message mutations for the signed-in user.
type ChatService interface {
	CreateGroup(ctx context.Context, identity models.Identity, req dto.CreateGroupRequest) (dto.ConversationResponse, error)
	JoinGroup(ctx context.Context, identity models.Identity, req dto.JoinGroupRequest) (dto.ConversationResponse, error)
	LeaveGroup(ctx context.Context, identity models.Identity, chatID string) error
	StartDirectMessage(ctx context.Context, identity models.Identity, req dto.DirectMessageRequest) (dto.ConversationResponse, error)
	SendMessage(ctx context.Context, identity models.Identity, chatID string, req dto.SendMessageRequest) (dto.MessageResponse, error)
	SendFileMessage(ctx context.Context, identity models.Identity, chatID string, file *multipart.FileHeader) (dto.MessageResponse, error)
	SendLocation(ctx context.Context, identity models.Identity, chatID string, req dto.SendLocationRequest) (dto.MessageResponse, error)
	SendPoll(ctx context.Context, identity models.Identity, chatID string, req dto.SendPollRequest) (dto.MessageResponse, error)
	SendAIMessage(ctx context.Context, identity models.Identity, chatID string, req dto.SendAIMessageRequest) (dto.MessageResponse, error)
	VoteInPoll(ctx context.Context, identity models.Identity, messageID string, req dto.VoteRequest) (dto.MessageResponse, error)
	AddReaction(ctx context.Context, identity models.Identity, messageID string, req dto.ReactionRequest) (dto.MessageResponse, error)
	EditMessage(ctx context.Context, identity models.Identity, messageID string, req dto.EditMessageRequest) (dto.MessageResponse, error)
	DeleteMessage(ctx context.Context, identity models.Identity, messageID string) (dto.MessageResponse, error)
	MarkMessagesAsRead(ctx context.Context, identity models.Identity, chatID string) (dto.ReadReceiptResponse, error)
	UpdateOnlineStatus(ctx context.Context, identity models.Identity, online bool) error
	ListConversations(ctx context.Context, identity models.Identity) ([]dto.ConversationResponse, error)
	ListMessages(ctx context.Context, identity models.Identity, chatID string, limit int) ([]dto.MessageResponse, error)
	ListMembers(ctx context.Context, identity models.Identity, chatID string) ([]dto.MemberResponse, error)
}

type chatService struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	users         repository.UserRepository
	media         MediaService
	assistant     ai.Assistant
	publisher     ChangePublisher
	validate      *validator.Validate
	sanitizer     *bluemonday.Policy
	logger        zerolog.Logger
	tracer        trace.Tracer
}

// ChatServiceDeps groups the collaborators of the chat service.
type ChatServiceDeps struct {
	Conversations repository.ConversationRepository
	Messages      repository.MessageRepository
	Users         repository.UserRepository
	Media         MediaService
	Assistant     ai.Assistant
	Publisher     ChangePublisher
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, ...string) {}

// NewChatService constructs the chat service. Assistant and Publisher are optional.
func NewChatService(deps ChatServiceDeps, validate *validator.Validate, logger zerolog.Logger) ChatService {
	sanitizer := bluemonday.StrictPolicy()

	publisher := deps.Publisher
	if publisher == nil {
		publisher = noopPublisher{}
	}

	return &chatService{
		conversations: deps.Conversations,
		messages:      deps.Messages,
		users:         deps.Users,
		media:         deps.Media,
		assistant:     deps.Assistant,
		publisher:     publisher,
		validate:      validate,
		sanitizer:     sanitizer,
		logger:        logger.With().Str("component", "chat_service").Logger(),
		tracer:        otel.Tracer("github.com/noah-isme/onquest-api/internal/service/chat"),
	}
}

func (s *chatService) CreateGroup(ctx context.Context, identity models.Identity, req dto.CreateGroupRequest) (dto.ConversationResponse, error) {
	if !identity.Authenticated() {
		return dto.ConversationResponse{}, models.ErrNotAuthenticated
	}
	if err := s.validate.Struct(req); err != nil {
		return dto.ConversationResponse{}, err
	}

	name := s.clean(req.Name)
	if name == "" {
		return dto.ConversationResponse{}, fmt.Errorf("%w: group name is required", models.ErrInvalidInput)
	}

	ctx, span := s.tracer.Start(ctx, "chat.create_group")
	defer span.End()

	if err := ensureProfile(ctx, s.users, identity); err != nil {
		return dto.ConversationResponse{}, err
	}

	code, err := s.uniqueInviteCode(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invite code")
		return dto.ConversationResponse{}, err
	}

	avatar := strings.TrimSpace(req.Avatar)
	if avatar == "" {
		avatar = defaultGroupAvatar
	}

	now := time.Now().UTC()
	system := s.systemMessage(fmt.Sprintf("%s created the group", identity.Name()), now)
	conversation := models.Conversation{
		ID:              repository.NewID(),
		Type:            models.ConversationTypeGroup,
		Name:            name,
		Description:     s.clean(req.Description),
		Destination:     s.clean(req.Destination),
		Avatar:          avatar,
		Members:         datatypes.JSONSlice[models.MemberRef]{{UID: identity.UID, Role: models.MemberRoleAdmin}},
		MemberCount:     1,
		InviteCode:      &code,
		LastMessage:     system.Content,
		LastMessageAt:   &now,
		LastMessageBy:   system.SenderID,
		LastMessageType: system.Type,
		LastActivityAt:  now,
		CreatedBy:       identity.UID,
		IsPrivate:       req.IsPrivate,
	}
	system.ChatID = conversation.ID

	if err := s.conversations.CreateGroup(ctx, &conversation, memberFromIdentity(identity, models.MemberRoleAdmin), system); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		return dto.ConversationResponse{}, models.Remote("create group", err)
	}

	span.SetAttributes(attribute.String("chat.id", conversation.ID))
	s.publisher.Publish(ctx, realtime.ChatsTopic(identity.UID), realtime.MessagesTopic(conversation.ID))
	s.logger.Info().Str("chat_id", conversation.ID).Str("user_id", identity.UID).Msg("group created")
	return dto.NewConversationResponse(conversation, 0), nil
}

func (s *chatService) JoinGroup(ctx context.Context, identity models.Identity, req dto.JoinGroupRequest) (dto.ConversationResponse, error) {
	if !identity.Authenticated() {
		return dto.ConversationResponse{}, models.ErrNotAuthenticated
	}
	req.InviteCode = strings.ToUpper(strings.TrimSpace(req.InviteCode))
	if err := s.validate.Struct(req); err != nil {
		return dto.ConversationResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "chat.join_group")
	defer span.End()

	conversation, err := s.conversations.FindByInviteCode(ctx, req.InviteCode)
	if err != nil {
		return dto.ConversationResponse{}, models.Remote("find group", err)
	}
	if conversation.HasMember(identity.UID) {
		return dto.ConversationResponse{}, models.ErrAlreadyMember
	}

	if err := ensureProfile(ctx, s.users, identity); err != nil {
		return dto.ConversationResponse{}, err
	}

	system := s.systemMessage(fmt.Sprintf("%s joined the group", identity.Name()), time.Now().UTC())
	system.ChatID = conversation.ID

	updated, err := s.conversations.AddMember(ctx, conversation.ID, memberFromIdentity(identity, models.MemberRoleMember), system)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "join failed")
		return dto.ConversationResponse{}, models.Remote("join group", err)
	}

	s.publishConversation(ctx, updated.ID, updated.MemberIDs())
	s.logger.Info().Str("chat_id", updated.ID).Str("user_id", identity.UID).Msg("group joined")
	return dto.NewConversationResponse(updated, 0), nil
}

// LeaveGroup removes the caller. The last member leaving deletes the
// conversation; its messages are kept.
func (s *chatService) LeaveGroup(ctx context.Context, identity models.Identity, chatID string) error {
	if !identity.Authenticated() {
		return models.ErrNotAuthenticated
	}

	ctx, span := s.tracer.Start(ctx, "chat.leave_group")
	defer span.End()
	span.SetAttributes(attribute.String("chat.id", chatID))

	conversation, err := s.memberConversation(ctx, identity, chatID)
	if err != nil {
		return err
	}
	if conversation.Type != models.ConversationTypeGroup {
		return fmt.Errorf("%w: direct conversations cannot be left", models.ErrInvalidInput)
	}

	system := s.systemMessage(fmt.Sprintf("%s left the group", identity.Name()), time.Now().UTC())
	system.ChatID = chatID

	result, err := s.conversations.RemoveMember(ctx, chatID, identity.UID, system)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "leave failed")
		return models.Remote("leave group", err)
	}

	s.publishConversation(ctx, chatID, result.Members)
	s.logger.Info().
		Str("chat_id", chatID).
		Str("user_id", identity.UID).
		Bool("deleted", result.Deleted).
		Msg("group left")
	return nil
}

// StartDirectMessage returns the caller's direct conversation with another
// user, creating it on first contact. The id is derived from the unordered
// pair so concurrent starts converge on one conversation.
func (s *chatService) StartDirectMessage(ctx context.Context, identity models.Identity, req dto.DirectMessageRequest) (dto.ConversationResponse, error) {
	if !identity.Authenticated() {
		return dto.ConversationResponse{}, models.ErrNotAuthenticated
	}
	if err := s.validate.Struct(req); err != nil {
		return dto.ConversationResponse{}, err
	}
	otherID := strings.TrimSpace(req.UserID)
	if otherID == identity.UID {
		return dto.ConversationResponse{}, fmt.Errorf("%w: cannot start a conversation with yourself", models.ErrInvalidInput)
	}

	ctx, span := s.tracer.Start(ctx, "chat.start_direct")
	defer span.End()

	existing, err := s.conversations.FindDirect(ctx, identity.UID, otherID)
	if err == nil {
		return s.withUnread(ctx, identity.UID, existing)
	}
	if !errors.Is(err, models.ErrNotFound) {
		return dto.ConversationResponse{}, models.Remote("find direct conversation", err)
	}

	other, err := s.users.Get(ctx, otherID)
	if err != nil {
		return dto.ConversationResponse{}, models.Remote("load user", err)
	}
	if err := ensureProfile(ctx, s.users, identity); err != nil {
		return dto.ConversationResponse{}, err
	}

	now := time.Now().UTC()
	otherMember := models.ConversationMember{
		UserID:      other.UID,
		Role:        models.MemberRoleMember,
		DisplayName: other.DisplayName,
		Email:       other.Email,
		PhotoURL:    other.PhotoURL,
		JoinedAt:    now,
		IsOnline:    other.IsOnline,
		LastSeen:    other.LastSeen,
	}
	if otherMember.DisplayName == "" {
		otherMember.DisplayName = "User"
	}

	conversation := models.Conversation{
		ID:   directConversationID(identity.UID, otherID),
		Type: models.ConversationTypeDM,
		Members: datatypes.JSONSlice[models.MemberRef]{
			{UID: identity.UID, Role: models.MemberRoleMember},
			{UID: otherID, Role: models.MemberRoleMember},
		},
		MemberCount:    2,
		LastActivityAt: now,
		CreatedBy:      identity.UID,
	}

	created, err := s.conversations.CreateDirect(ctx, &conversation, []models.ConversationMember{
		memberFromIdentity(identity, models.MemberRoleMember),
		otherMember,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		return dto.ConversationResponse{}, models.Remote("create direct conversation", err)
	}

	s.publisher.Publish(ctx, realtime.ChatsTopic(identity.UID), realtime.ChatsTopic(otherID))
	return s.withUnread(ctx, identity.UID, created)
}

func (s *chatService) SendMessage(ctx context.Context, identity models.Identity, chatID string, req dto.SendMessageRequest) (dto.MessageResponse, error) {
	if !identity.Authenticated() {
		return dto.MessageResponse{}, models.ErrNotAuthenticated
	}
	if err := s.validate.Struct(req); err != nil {
		return dto.MessageResponse{}, err
	}

	content := s.clean(req.Content)
	if content == "" {
		return dto.MessageResponse{}, fmt.Errorf("%w: message content is required", models.ErrInvalidInput)
	}

	conversation, err := s.memberConversation(ctx, identity, chatID)
	if err != nil {
		return dto.MessageResponse{}, err
	}

	message := s.messageFrom(identity, models.MessageTypeText, content)
	if req.ReplyTo != nil && strings.TrimSpace(*req.ReplyTo) != "" {
		parent, err := s.messages.Get(ctx, strings.TrimSpace(*req.ReplyTo))
		if err != nil {
			return dto.MessageResponse{}, models.Remote("load reply target", err)
		}
		if parent.ChatID != chatID {
			return dto.MessageResponse{}, fmt.Errorf("%w: reply target belongs to another conversation", models.ErrInvalidInput)
		}
		message.ReplyTo = &parent.ID
	}

	return s.post(ctx, conversation, message, content)
}

// SendFileMessage uploads the file first and then posts a message referencing it.
func (s *chatService) SendFileMessage(ctx context.Context, identity models.Identity, chatID string, file *multipart.FileHeader) (dto.MessageResponse, error) {
	if !identity.Authenticated() {
		return dto.MessageResponse{}, models.ErrNotAuthenticated
	}

	conversation, err := s.memberConversation(ctx, identity, chatID)
	if err != nil {
		return dto.MessageResponse{}, err
	}

	attachment, err := s.media.UploadAttachment(ctx, chatID, file)
	if err != nil {
		return dto.MessageResponse{}, err
	}

	messageType := models.MessageTypeFile
	if strings.HasPrefix(attachment.Type, "image/") {
		messageType = models.MessageTypeImage
	}
	content := "📎 " + s.clean(attachment.Name)

	message := s.messageFrom(identity, messageType, content)
	message.Attachments = datatypes.JSONSlice[models.Attachment]{attachment}
	sent, err := s.post(ctx, conversation, message, content)
	if err != nil {
		s.media.DiscardAttachment(attachment)
		return dto.MessageResponse{}, err
	}
	return sent, nil
}

func (s *chatService) SendLocation(ctx context.Context, identity models.Identity, chatID string, req dto.SendLocationRequest) (dto.MessageResponse, error) {
	if !identity.Authenticated() {
		return dto.MessageResponse{}, models.ErrNotAuthenticated
	}
	if err := s.validate.Struct(req); err != nil {
		return dto.MessageResponse{}, err
	}

	conversation, err := s.memberConversation(ctx, identity, chatID)
	if err != nil {
		return dto.MessageResponse{}, err
	}

	name := s.clean(req.Name)
	if name == "" {
		name = "Shared location"
	}
	location := &models.SharedLocation{
		Name:        name,
		Address:     s.clean(req.Address),
		Lat:         req.Lat,
		Lng:         req.Lng,
		Rating:      req.Rating,
		PriceRange:  strings.TrimSpace(req.PriceRange),
		Category:    strings.TrimSpace(req.Category),
		Description: s.clean(req.Description),
	}

	content := "📍 " + name
	message := s.messageFrom(identity, models.MessageTypeLocation, content)
	message.Location = datatypes.NewJSONType(location)
	return s.post(ctx, conversation, message, content)
}

func (s *chatService) SendPoll(ctx context.Context, identity models.Identity, chatID string, req dto.SendPollRequest) (dto.MessageResponse, error) {
	if !identity.Authenticated() {
		return dto.MessageResponse{}, models.ErrNotAuthenticated
	}
	if err := s.validate.Struct(req); err != nil {
		return dto.MessageResponse{}, err
	}

	question := s.clean(req.Question)
	options := make([]string, 0, len(req.Options))
	for _, option := range req.Options {
		if cleaned := s.clean(option); cleaned != "" {
			options = append(options, cleaned)
		}
	}
	if question == "" || len(options) < 2 {
		return dto.MessageResponse{}, fmt.Errorf("%w: a poll needs a question and at least two options", models.ErrInvalidInput)
	}

	conversation, err := s.memberConversation(ctx, identity, chatID)
	if err != nil {
		return dto.MessageResponse{}, err
	}

	poll := models.NewPoll(question, options, req.AllowMultiple, identity.UID)
	if req.ExpiresAt != nil {
		expires := req.ExpiresAt.UTC()
		poll.ExpiresAt = &expires
	}

	content := "📊 " + question
	message := s.messageFrom(identity, models.MessageTypePoll, content)
	message.Poll = datatypes.NewJSONType(poll)
	return s.post(ctx, conversation, message, content)
}

// SendAIMessage posts a travel assistant message. Without explicit content the
// assistant answers the prompt using the recent conversation history.
func (s *chatService) SendAIMessage(ctx context.Context, identity models.Identity, chatID string, req dto.SendAIMessageRequest) (dto.MessageResponse, error) {
	if !identity.Authenticated() {
		return dto.MessageResponse{}, models.ErrNotAuthenticated
	}
	if err := s.validate.Struct(req); err != nil {
		return dto.MessageResponse{}, err
	}

	conversation, err := s.memberConversation(ctx, identity, chatID)
	if err != nil {
		return dto.MessageResponse{}, err
	}

	content := s.clean(req.Content)
	actions := cleanActions(req.Actions)
	if content == "" {
		if s.assistant == nil {
			return dto.MessageResponse{}, ErrAssistantUnavailable
		}
		reply, err := s.askAssistant(ctx, conversation, req.Prompt)
		if err != nil {
			return dto.MessageResponse{}, err
		}
		content = s.clean(reply.Content)
		if len(actions) == 0 {
			actions = cleanActions(reply.Actions)
		}
	}
	if content == "" {
		return dto.MessageResponse{}, fmt.Errorf("%w: assistant message is empty", models.ErrInvalidInput)
	}

	message := &models.Message{
		SenderID:     AssistantSenderID,
		SenderName:   assistantName,
		SenderAvatar: assistantAvatar,
		Content:      content,
		Type:         models.MessageTypeAI,
		AIActions:    datatypes.JSONSlice[string](actions),
	}
	return s.post(ctx, conversation, message, content)
}

// VoteInPoll casts the caller's vote. Single-choice polls move an earlier vote.
func (s *chatService) VoteInPoll(ctx context.Context, identity models.Identity, messageID string, req dto.VoteRequest) (dto.MessageResponse, error) {
	if !identity.Authenticated() {
		return dto.MessageResponse{}, models.ErrNotAuthenticated
	}
	if err := s.validate.Struct(req); err != nil {
		return dto.MessageResponse{}, err
	}

	return s.mutateMessage(ctx, identity, messageID, "vote in poll", func(message *models.Message) error {
		poll := message.Poll.Data()
		if message.Type != models.MessageTypePoll || poll == nil {
			return fmt.Errorf("%w: message is not a poll", models.ErrInvalidInput)
		}
		if poll.ExpiresAt != nil && time.Now().After(*poll.ExpiresAt) {
			return models.ErrPollClosed
		}
		if err := poll.Vote(identity.UID, req.OptionIndex); err != nil {
			return err
		}
		message.Poll = datatypes.NewJSONType(poll)
		return nil
	})
}

// AddReaction toggles the caller's reaction with the given emoji.
func (s *chatService) AddReaction(ctx context.Context, identity models.Identity, messageID string, req dto.ReactionRequest) (dto.MessageResponse, error) {
	if !identity.Authenticated() {
		return dto.MessageResponse{}, models.ErrNotAuthenticated
	}
	if err := s.validate.Struct(req); err != nil {
		return dto.MessageResponse{}, err
	}
	emoji := strings.TrimSpace(req.Emoji)

	return s.mutateMessage(ctx, identity, messageID, "toggle reaction", func(message *models.Message) error {
		message.Reactions = models.ToggleReaction(message.Reactions, identity.UID, emoji)
		return nil
	})
}

func (s *chatService) EditMessage(ctx context.Context, identity models.Identity, messageID string, req dto.EditMessageRequest) (dto.MessageResponse, error) {
	if !identity.Authenticated() {
		return dto.MessageResponse{}, models.ErrNotAuthenticated
	}
	if err := s.validate.Struct(req); err != nil {
		return dto.MessageResponse{}, err
	}
	content := s.clean(req.Content)
	if content == "" {
		return dto.MessageResponse{}, fmt.Errorf("%w: message content is required", models.ErrInvalidInput)
	}

	return s.mutateMessage(ctx, identity, messageID, "edit message", func(message *models.Message) error {
		if message.SenderID != identity.UID {
			return ErrNotMessageAuthor
		}
		if message.Deleted || message.Type != models.MessageTypeText {
			return fmt.Errorf("%w: only text messages can be edited", models.ErrInvalidInput)
		}
		now := time.Now().UTC()
		message.Content = content
		message.Edited = true
		message.EditedAt = &now
		return nil
	})
}

// DeleteMessage flags the message as deleted and clears its payload. The
// record itself is kept.
func (s *chatService) DeleteMessage(ctx context.Context, identity models.Identity, messageID string) (dto.MessageResponse, error) {
	if !identity.Authenticated() {
		return dto.MessageResponse{}, models.ErrNotAuthenticated
	}

	return s.mutateMessage(ctx, identity, messageID, "delete message", func(message *models.Message) error {
		if message.SenderID != identity.UID {
			return ErrNotMessageAuthor
		}
		if message.Deleted {
			return nil
		}
		now := time.Now().UTC()
		message.Content = ""
		message.Attachments = datatypes.JSONSlice[models.Attachment]{}
		message.Deleted = true
		message.DeletedAt = &now
		return nil
	})
}

// MarkMessagesAsRead marks every message of the chat not authored by the
// caller as read and zeroes the caller's unread counter.
func (s *chatService) MarkMessagesAsRead(ctx context.Context, identity models.Identity, chatID string) (dto.ReadReceiptResponse, error) {
	if !identity.Authenticated() {
		return dto.ReadReceiptResponse{}, models.ErrNotAuthenticated
	}
	if _, err := s.memberConversation(ctx, identity, chatID); err != nil {
		return dto.ReadReceiptResponse{}, err
	}

	marked, err := s.messages.MarkRead(ctx, chatID, identity.UID)
	if err != nil {
		return dto.ReadReceiptResponse{}, models.Remote("mark messages read", err)
	}
	if err := s.conversations.ResetUnread(ctx, chatID, identity.UID); err != nil {
		return dto.ReadReceiptResponse{}, models.Remote("reset unread counter", err)
	}

	topics := []string{realtime.ChatsTopic(identity.UID)}
	if marked > 0 {
		topics = append(topics, realtime.MessagesTopic(chatID))
	}
	s.publisher.Publish(ctx, topics...)
	return dto.ReadReceiptResponse{ChatID: chatID, Marked: marked}, nil
}

// UpdateOnlineStatus writes the caller's presence to the user document and
// to every membership mirror the caller appears in.
func (s *chatService) UpdateOnlineStatus(ctx context.Context, identity models.Identity, online bool) error {
	if !identity.Authenticated() {
		return models.ErrNotAuthenticated
	}

	state := "offline"
	if online {
		state = "online"
	}

	now := time.Now().UTC()
	if err := s.users.SetPresence(ctx, identity.UID, online, now); err != nil {
		return models.Remote("update user presence", err)
	}
	chatIDs, err := s.conversations.SetPresence(ctx, identity.UID, online, now)
	if err != nil {
		return models.Remote("update member presence", err)
	}

	observability.PresenceUpdates().WithLabelValues(state).Inc()

	topics := make([]string, 0, len(chatIDs))
	for _, chatID := range chatIDs {
		topics = append(topics, realtime.MembersTopic(chatID))
	}
	s.publisher.Publish(ctx, topics...)
	return nil
}

// ListConversations returns the caller's conversations, most recent activity first.
func (s *chatService) ListConversations(ctx context.Context, identity models.Identity) ([]dto.ConversationResponse, error) {
	if !identity.Authenticated() {
		return nil, models.ErrNotAuthenticated
	}

	conversations, err := s.conversations.ListForUser(ctx, identity.UID)
	if err != nil {
		return nil, models.Remote("list conversations", err)
	}
	unread, err := s.conversations.UnreadCounts(ctx, identity.UID)
	if err != nil {
		return nil, models.Remote("load unread counters", err)
	}

	out := make([]dto.ConversationResponse, 0, len(conversations))
	for _, conversation := range conversations {
		out = append(out, dto.NewConversationResponse(conversation, unread[conversation.ID]))
	}
	return out, nil
}

// ListMessages returns the latest messages of a chat in creation order.
func (s *chatService) ListMessages(ctx context.Context, identity models.Identity, chatID string, limit int) ([]dto.MessageResponse, error) {
	if !identity.Authenticated() {
		return nil, models.ErrNotAuthenticated
	}
	if _, err := s.memberConversation(ctx, identity, chatID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultMessageLimit
	}

	messages, err := s.messages.ListByChat(ctx, chatID, limit)
	if err != nil {
		return nil, models.Remote("list messages", err)
	}
	return dto.NewMessageResponseSlice(messages), nil
}

func (s *chatService) ListMembers(ctx context.Context, identity models.Identity, chatID string) ([]dto.MemberResponse, error) {
	if !identity.Authenticated() {
		return nil, models.ErrNotAuthenticated
	}
	if _, err := s.memberConversation(ctx, identity, chatID); err != nil {
		return nil, err
	}

	members, err := s.conversations.Members(ctx, chatID)
	if err != nil {
		return nil, models.Remote("list members", err)
	}
	out := make([]dto.MemberResponse, 0, len(members))
	for _, member := range members {
		out = append(out, dto.NewMemberResponse(member))
	}
	return out, nil
}

func (s *chatService) memberConversation(ctx context.Context, identity models.Identity, chatID string) (models.Conversation, error) {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return models.Conversation{}, models.ErrNotFound
	}
	conversation, err := s.conversations.Get(ctx, chatID)
	if err != nil {
		return models.Conversation{}, models.Remote("load conversation", err)
	}
	if !conversation.HasMember(identity.UID) {
		return models.Conversation{}, models.ErrNotMember
	}
	return conversation, nil
}

func (s *chatService) mutateMessage(ctx context.Context, identity models.Identity, messageID, op string, mutate func(message *models.Message) error) (dto.MessageResponse, error) {
	ctx, span := s.tracer.Start(ctx, "chat.mutate_message")
	defer span.End()
	span.SetAttributes(attribute.String("chat.message_id", messageID), attribute.String("chat.op", op))

	current, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return dto.MessageResponse{}, models.Remote("load message", err)
	}
	if _, err := s.memberConversation(ctx, identity, current.ChatID); err != nil {
		return dto.MessageResponse{}, err
	}

	updated, err := s.messages.Mutate(ctx, messageID, mutate)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, op)
		return dto.MessageResponse{}, models.Remote(op, err)
	}

	s.publisher.Publish(ctx, realtime.MessagesTopic(updated.ChatID))
	return dto.NewMessageResponse(updated), nil
}

func (s *chatService) post(ctx context.Context, conversation models.Conversation, message *models.Message, preview string) (dto.MessageResponse, error) {
	ctx, span := s.tracer.Start(ctx, "chat.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("chat.id", conversation.ID),
		attribute.String("chat.message_type", string(message.Type)),
	)

	message.ID = repository.NewID()
	message.ChatID = conversation.ID
	message.CreatedAt = time.Now().UTC()
	if message.ReadBy == nil {
		message.ReadBy = datatypes.JSONSlice[string]{}
	}
	if message.Reactions == nil {
		message.Reactions = datatypes.JSONSlice[models.Reaction]{}
	}
	if message.Attachments == nil {
		message.Attachments = datatypes.JSONSlice[models.Attachment]{}
	}

	if err := s.conversations.RecordMessage(ctx, message, preview); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		return dto.MessageResponse{}, models.Remote("send message", err)
	}

	observability.ChatMessagesSent().WithLabelValues(string(message.Type)).Inc()
	s.publishConversation(ctx, conversation.ID, conversation.MemberIDs())
	return dto.NewMessageResponse(*message), nil
}

func (s *chatService) askAssistant(ctx context.Context, conversation models.Conversation, prompt string) (ai.AssistantReply, error) {
	history, err := s.messages.ListByChat(ctx, conversation.ID, assistantHistory)
	if err != nil {
		return ai.AssistantReply{}, models.Remote("load history", err)
	}

	turns := make([]ai.Turn, 0, len(history))
	for _, message := range history {
		if message.Deleted || message.Type == models.MessageTypeSystem || strings.TrimSpace(message.Content) == "" {
			continue
		}
		turns = append(turns, ai.Turn{Author: message.SenderName, Content: message.Content})
	}

	reply, err := s.assistant.Reply(ctx, ai.AssistantInput{
		ChatName:    conversation.Name,
		Destination: conversation.Destination,
		Prompt:      strings.TrimSpace(prompt),
		History:     turns,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("chat_id", conversation.ID).Msg("assistant reply failed")
		return ai.AssistantReply{}, models.Remote("assistant reply", err)
	}
	return reply, nil
}

func (s *chatService) withUnread(ctx context.Context, uid string, conversation models.Conversation) (dto.ConversationResponse, error) {
	unread, err := s.conversations.UnreadCounts(ctx, uid)
	if err != nil {
		return dto.ConversationResponse{}, models.Remote("load unread counters", err)
	}
	return dto.NewConversationResponse(conversation, unread[conversation.ID]), nil
}

func (s *chatService) publishConversation(ctx context.Context, chatID string, members []string) {
	topics := make([]string, 0, len(members)+2)
	topics = append(topics, realtime.MessagesTopic(chatID), realtime.MembersTopic(chatID))
	for _, uid := range members {
		topics = append(topics, realtime.ChatsTopic(uid))
	}
	s.publisher.Publish(ctx, topics...)
}

func (s *chatService) messageFrom(identity models.Identity, messageType models.MessageType, content string) *models.Message {
	return &models.Message{
		SenderID:     identity.UID,
		SenderName:   identity.Name(),
		SenderAvatar: identity.Avatar(),
		Content:      content,
		Type:         messageType,
	}
}

func (s *chatService) systemMessage(content string, at time.Time) *models.Message {
	return &models.Message{
		ID:          repository.NewID(),
		SenderID:    systemSenderID,
		SenderName:  systemName,
		Content:     content,
		Type:        models.MessageTypeSystem,
		ReadBy:      datatypes.JSONSlice[string]{},
		Reactions:   datatypes.JSONSlice[models.Reaction]{},
		Attachments: datatypes.JSONSlice[models.Attachment]{},
		CreatedAt:   at,
	}
}

// clean strips markup and returns the plain text with entities decoded.
func (s *chatService) clean(value string) string {
	return strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(strings.TrimSpace(value))))
}

func (s *chatService) uniqueInviteCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < inviteCodeAttempts; attempt++ {
		code, err := newInviteCode()
		if err != nil {
			return "", err
		}
		_, err = s.conversations.FindByInviteCode(ctx, code)
		if errors.Is(err, models.ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return "", models.Remote("check invite code", err)
		}
	}
	return "", models.Remote("generate invite code", errors.New("no free invite code"))
}

func newInviteCode() (string, error) {
	size := big.NewInt(int64(len(inviteAlphabet)))
	var builder strings.Builder
	builder.Grow(inviteCodeLength)
	for i := 0; i < inviteCodeLength; i++ {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", err
		}
		builder.WriteByte(inviteAlphabet[n.Int64()])
	}
	return builder.String(), nil
}

func directConversationID(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("onquest:dm:"+pair[0]+":"+pair[1])).String()
}

func cleanActions(actions []string) []string {
	out := make([]string, 0, len(actions))
	for _, action := range actions {
		if trimmed := strings.TrimSpace(action); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
