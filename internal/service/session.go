package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/onquest-api/internal/dto"
	"github.com/noah-isme/onquest-api/internal/models"
	"github.com/noah-isme/onquest-api/internal/realtime"
)

// SubscriptionState tracks the active conversation's message subscription.
type SubscriptionState string

const (
	SubscriptionUnsubscribed SubscriptionState = "unsubscribed"
	SubscriptionSubscribing  SubscriptionState = "subscribing"
	SubscriptionSubscribed   SubscriptionState = "subscribed"
)

// Session event types pushed to clients.
const (
	SessionEventConversations = "conversations"
	SessionEventMessages      = "messages"
	SessionEventMembers       = "members"
	SessionEventError         = "error"
)

const (
	sessionEventBuffer   = 16
	pendingMessagePrefix = "pending-"
	presenceTimeout      = 5 * time.Second
)

// ErrSessionClosed indicates a call on a session that was stopped or never started.
var ErrSessionClosed = errors.New("session is not running")

// SessionView is the state a client renders: confirmed snapshots followed by
// sends that have not shown up in a snapshot yet.
type SessionView struct {
	Conversations []dto.ConversationResponse
	ActiveChatID  string
	State         SubscriptionState
	Messages      []dto.MessageResponse
	Members       []dto.MemberResponse
	Visible       bool
}

type pendingMessage struct {
	message     dto.MessageResponse
	confirmedID string
	confirmedAt time.Time
}

// Session holds the realtime chat state of one authenticated connection. It
// owns at most one live message subscription at a time, paired with a
// subscription on the same conversation's members.
type Session struct {
	chats    ChatService
	feed     *realtime.Feed
	identity models.Identity
	logger   zerolog.Logger

	events   chan dto.SessionEvent
	emitMu   sync.Mutex
	closed   bool
	pumps    sync.WaitGroup
	presence sync.Mutex
	online   bool
	switchMu sync.Mutex

	mu            sync.Mutex
	ctx           context.Context
	cancel        context.CancelFunc
	started       bool
	stopped       bool
	visible       bool
	chatsSub      *realtime.Subscription[[]dto.ConversationResponse]
	conversations []dto.ConversationResponse
	activeID      string
	state         SubscriptionState
	messagesSub   *realtime.Subscription[[]dto.MessageResponse]
	messages      []dto.MessageResponse
	pending       []pendingMessage
	membersSub    *realtime.Subscription[[]dto.MemberResponse]
	members       []dto.MemberResponse
}

// NewSession prepares a session for identity. Nothing is subscribed until Start.
func NewSession(chats ChatService, feed *realtime.Feed, identity models.Identity, logger zerolog.Logger) *Session {
	return &Session{
		chats:    chats,
		feed:     feed,
		identity: identity,
		logger:   logger.With().Str("component", "chat_session").Str("user_id", identity.UID).Logger(),
		events:   make(chan dto.SessionEvent, sessionEventBuffer),
		state:    SubscriptionUnsubscribed,
		visible:  true,
	}
}

// Events yields a full view after every change. It is closed by Stop.
func (s *Session) Events() <-chan dto.SessionEvent {
	return s.events
}

// Start marks the user online and opens the conversation-list subscription.
// Calling it again is a no-op.
func (s *Session) Start(ctx context.Context) error {
	if !s.identity.Authenticated() {
		return models.ErrNotAuthenticated
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	sessionCtx := s.ctx
	s.mu.Unlock()

	s.setPresence(sessionCtx, true)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrSessionClosed
	}
	sub := realtime.Watch(sessionCtx, s.feed, realtime.ChatsTopic(s.identity.UID), func(ctx context.Context) ([]dto.ConversationResponse, error) {
		return s.chats.ListConversations(ctx, s.identity)
	})
	s.chatsSub = sub
	s.pumps.Add(1)
	go s.pumpConversations(sub)
	return nil
}

// Stop cancels every subscription and marks the user offline. A presence
// failure is only logged.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	started := s.started
	chatsSub, messagesSub, membersSub := s.chatsSub, s.messagesSub, s.membersSub
	s.chatsSub, s.messagesSub, s.membersSub = nil, nil, nil
	s.state = SubscriptionUnsubscribed
	cancel := s.cancel
	s.mu.Unlock()

	if messagesSub != nil {
		messagesSub.Cancel()
	}
	if membersSub != nil {
		membersSub.Cancel()
	}
	if chatsSub != nil {
		chatsSub.Cancel()
	}
	if cancel != nil {
		cancel()
	}
	s.pumps.Wait()

	if started {
		ctx, done := context.WithTimeout(context.Background(), presenceTimeout)
		s.setPresence(ctx, false)
		done()
	}

	s.emitMu.Lock()
	s.closed = true
	close(s.events)
	s.emitMu.Unlock()
}

// SetActiveConversation switches the message subscription to chatID. The
// previous subscription is torn down before the new one attaches. An empty
// id only closes the current one.
func (s *Session) SetActiveConversation(chatID string) error {
	s.switchMu.Lock()
	defer s.switchMu.Unlock()

	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if chatID != "" && chatID == s.activeID && s.state != SubscriptionUnsubscribed {
		s.mu.Unlock()
		return nil
	}
	previous, previousMembers := s.messagesSub, s.membersSub
	s.messagesSub, s.membersSub = nil, nil
	s.activeID = ""
	s.state = SubscriptionUnsubscribed
	s.messages = nil
	s.pending = nil
	s.members = nil
	sessionCtx := s.ctx
	s.mu.Unlock()

	if previous != nil {
		previous.Cancel()
		<-previous.Done()
	}
	if previousMembers != nil {
		previousMembers.Cancel()
		<-previousMembers.Done()
	}

	if chatID == "" {
		s.emit(s.viewEvent(SessionEventMessages, ""))
		return nil
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.activeID = chatID
	s.state = SubscriptionSubscribing
	sub := realtime.Watch(sessionCtx, s.feed, realtime.MessagesTopic(chatID), func(ctx context.Context) ([]dto.MessageResponse, error) {
		return s.chats.ListMessages(ctx, s.identity, chatID, 0)
	})
	s.messagesSub = sub
	members := realtime.Watch(sessionCtx, s.feed, realtime.MembersTopic(chatID), func(ctx context.Context) ([]dto.MemberResponse, error) {
		return s.chats.ListMembers(ctx, s.identity, chatID)
	})
	s.membersSub = members
	s.pumps.Add(2)
	s.mu.Unlock()

	go s.pumpMessages(chatID, sub)
	go s.pumpMembers(chatID, members)
	return nil
}

// SetVisible records the client's visibility and propagates it as presence.
func (s *Session) SetVisible(ctx context.Context, visible bool) error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.visible = visible
	s.mu.Unlock()

	s.setPresence(ctx, visible)
	return nil
}

// Send posts a text message to the active conversation. The message appears
// in the view immediately as pending and is replaced by the confirmed copy
// once a snapshot carries it.
func (s *Session) Send(ctx context.Context, content string) (dto.MessageResponse, error) {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return dto.MessageResponse{}, ErrSessionClosed
	}
	chatID := s.activeID
	if chatID == "" {
		s.mu.Unlock()
		return dto.MessageResponse{}, fmt.Errorf("%w: no active conversation", models.ErrInvalidInput)
	}
	placeholder := dto.MessageResponse{
		ID:           pendingMessagePrefix + uuid.NewString(),
		ChatID:       chatID,
		SenderID:     s.identity.UID,
		SenderName:   s.identity.Name(),
		SenderAvatar: s.identity.Avatar(),
		Content:      content,
		Type:         models.MessageTypeText,
		ReadBy:       []string{},
		Reactions:    []models.Reaction{},
		Attachments:  []models.Attachment{},
		Pending:      true,
		CreatedAt:    time.Now().UTC(),
	}
	s.pending = append(s.pending, pendingMessage{message: placeholder})
	s.mu.Unlock()
	s.emit(s.viewEvent(SessionEventMessages, ""))

	sent, err := s.chats.SendMessage(ctx, s.identity, chatID, dto.SendMessageRequest{Content: content})

	s.mu.Lock()
	for i := range s.pending {
		if s.pending[i].message.ID != placeholder.ID {
			continue
		}
		if err != nil {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
		} else {
			s.pending[i].confirmedID = sent.ID
			s.pending[i].confirmedAt = time.Now().UTC()
		}
		break
	}
	// The snapshot carrying the message may have arrived before the send returned.
	s.pending = reconcilePending(s.pending, s.messages, time.Time{})
	s.mu.Unlock()
	s.emit(s.viewEvent(SessionEventMessages, ""))

	if err != nil {
		return dto.MessageResponse{}, err
	}
	return sent, nil
}

// MarkRead marks the active conversation as read by the session's user.
func (s *Session) MarkRead(ctx context.Context) (dto.ReadReceiptResponse, error) {
	s.mu.Lock()
	chatID := s.activeID
	running := s.started && !s.stopped
	s.mu.Unlock()

	if !running {
		return dto.ReadReceiptResponse{}, ErrSessionClosed
	}
	if chatID == "" {
		return dto.ReadReceiptResponse{}, fmt.Errorf("%w: no active conversation", models.ErrInvalidInput)
	}
	return s.chats.MarkMessagesAsRead(ctx, s.identity, chatID)
}

// Handle applies a client command.
func (s *Session) Handle(ctx context.Context, cmd dto.SessionCommand) error {
	switch cmd.Type {
	case "open":
		return s.SetActiveConversation(cmd.ChatID)
	case "close":
		return s.SetActiveConversation("")
	case "visibility":
		if cmd.Visible == nil {
			return fmt.Errorf("%w: visible is required", models.ErrInvalidInput)
		}
		return s.SetVisible(ctx, *cmd.Visible)
	case "send":
		_, err := s.Send(ctx, cmd.Content)
		return err
	case "read":
		_, err := s.MarkRead(ctx)
		return err
	default:
		return fmt.Errorf("%w: unknown command %q", models.ErrInvalidInput, cmd.Type)
	}
}

// View returns the current state.
func (s *Session) View() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() SessionView {
	messages := make([]dto.MessageResponse, 0, len(s.messages)+len(s.pending))
	messages = append(messages, s.messages...)
	for _, entry := range s.pending {
		messages = append(messages, entry.message)
	}
	return SessionView{
		Conversations: append([]dto.ConversationResponse{}, s.conversations...),
		ActiveChatID:  s.activeID,
		State:         s.state,
		Messages:      messages,
		Members:       append([]dto.MemberResponse{}, s.members...),
		Visible:       s.visible,
	}
}

func (s *Session) pumpConversations(sub *realtime.Subscription[[]dto.ConversationResponse]) {
	defer s.pumps.Done()
	for snapshot := range sub.Snapshots() {
		if snapshot.Err != nil {
			s.logger.Warn().Err(snapshot.Err).Msg("conversation subscription failed")
			s.emit(s.viewEvent(SessionEventError, snapshot.Err.Error()))
			return
		}

		s.mu.Lock()
		if s.chatsSub != sub {
			s.mu.Unlock()
			return
		}
		s.conversations = snapshot.Data
		s.mu.Unlock()

		s.emit(s.viewEvent(SessionEventConversations, ""))
	}
}

func (s *Session) pumpMessages(chatID string, sub *realtime.Subscription[[]dto.MessageResponse]) {
	defer s.pumps.Done()
	for snapshot := range sub.Snapshots() {
		s.mu.Lock()
		if s.messagesSub != sub {
			s.mu.Unlock()
			return
		}
		if snapshot.Err != nil {
			members := s.membersSub
			s.messagesSub, s.membersSub = nil, nil
			s.state = SubscriptionUnsubscribed
			s.activeID = ""
			s.messages = nil
			s.pending = nil
			s.members = nil
			s.mu.Unlock()
			if members != nil {
				members.Cancel()
			}

			s.logger.Warn().Err(snapshot.Err).Str("chat_id", chatID).Msg("message subscription failed")
			s.emit(s.viewEvent(SessionEventError, snapshot.Err.Error()))
			return
		}

		s.state = SubscriptionSubscribed
		s.messages = snapshot.Data
		s.pending = reconcilePending(s.pending, snapshot.Data, snapshot.At)
		s.mu.Unlock()

		s.emit(s.viewEvent(SessionEventMessages, ""))
	}
}

// pumpMembers keeps the member list of the active conversation current. A
// failure only clears the list; the message subscription reports access errors.
func (s *Session) pumpMembers(chatID string, sub *realtime.Subscription[[]dto.MemberResponse]) {
	defer s.pumps.Done()
	for snapshot := range sub.Snapshots() {
		s.mu.Lock()
		if s.membersSub != sub {
			s.mu.Unlock()
			return
		}
		if snapshot.Err != nil {
			s.membersSub = nil
			s.members = nil
			s.mu.Unlock()

			s.logger.Warn().Err(snapshot.Err).Str("chat_id", chatID).Msg("member subscription failed")
			return
		}
		s.members = snapshot.Data
		s.mu.Unlock()

		s.emit(s.viewEvent(SessionEventMembers, ""))
	}
}

// reconcilePending drops pending sends the snapshot already carries, and
// confirmed sends that the snapshot was taken after.
func reconcilePending(pending []pendingMessage, confirmed []dto.MessageResponse, at time.Time) []pendingMessage {
	if len(pending) == 0 {
		return pending
	}
	ids := make(map[string]struct{}, len(confirmed))
	for _, message := range confirmed {
		ids[message.ID] = struct{}{}
	}

	kept := make([]pendingMessage, 0, len(pending))
	for _, entry := range pending {
		if entry.confirmedID != "" {
			if _, ok := ids[entry.confirmedID]; ok {
				continue
			}
			if at.After(entry.confirmedAt) {
				continue
			}
		}
		kept = append(kept, entry)
	}
	return kept
}

func (s *Session) viewEvent(kind, errText string) dto.SessionEvent {
	view := s.View()
	return dto.SessionEvent{
		Type:          kind,
		Conversations: view.Conversations,
		ActiveChatID:  view.ActiveChatID,
		Messages:      view.Messages,
		Members:       view.Members,
		Error:         errText,
	}
}

// setPresence writes presence only when it differs from what this session
// last wrote.
func (s *Session) setPresence(ctx context.Context, online bool) {
	s.presence.Lock()
	defer s.presence.Unlock()
	if s.online == online {
		return
	}
	if err := s.chats.UpdateOnlineStatus(ctx, s.identity, online); err != nil {
		s.logger.Warn().Err(err).Bool("online", online).Msg("failed to update presence")
		return
	}
	s.online = online
}

// emit never blocks. When the client falls behind, the oldest queued event is
// dropped. Every event carries the full view.
func (s *Session) emit(event dto.SessionEvent) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.events <- event:
			return
		default:
		}
		select {
		case <-s.events:
		default:
		}
	}
}
