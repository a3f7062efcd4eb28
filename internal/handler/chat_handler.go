package handler

import (
	"context"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/onquest-api/internal/dto"
	"github.com/noah-isme/onquest-api/internal/middleware"
	"github.com/noah-isme/onquest-api/internal/models"
	"github.com/noah-isme/onquest-api/internal/realtime"
	"github.com/noah-isme/onquest-api/internal/service"
	"github.com/noah-isme/onquest-api/internal/utils"
)

// ChatHandler wires chat endpoints including the session websocket.
type ChatHandler struct {
	service   service.ChatService
	feed      *realtime.Feed
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewChatHandler creates a chat handler instance. The session websocket is
// only registered when a feed is provided.
func NewChatHandler(service service.ChatService, feed *realtime.Feed, validator *validator.Validate, logger zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		service:   service,
		feed:      feed,
		validator: validator,
		logger:    logger.With().Str("component", "chat_handler").Logger(),
	}
}

// Register binds conversation routes under the chats group. joinGuards run
// before the join-by-code endpoint.
func (h *ChatHandler) Register(router fiber.Router, joinGuards ...fiber.Handler) {
	if h.feed != nil {
		router.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				c.Locals("request_ctx", requestContext(c))
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		router.Get("/ws", middleware.WithAuth(websocket.New(h.handleConnection), middleware.AuthOptions{RequireUser: true}))
	}

	router.Get("", h.listConversations)
	router.Post("/groups", h.createGroup)
	router.Post("/groups/join", append(joinGuards, h.joinGroup)...)
	router.Post("/direct", h.startDirect)
	router.Post("/:id/leave", h.leave)
	router.Get("/:id/messages", h.listMessages)
	router.Post("/:id/messages", h.sendMessage)
	router.Post("/:id/files", h.sendFile)
	router.Post("/:id/locations", h.sendLocation)
	router.Post("/:id/polls", h.sendPoll)
	router.Post("/:id/ai", h.sendAI)
	router.Post("/:id/read", h.markRead)
	router.Get("/:id/members", h.listMembers)
}

// RegisterMessages binds per-message routes.
func (h *ChatHandler) RegisterMessages(router fiber.Router) {
	router.Post("/:id/votes", h.vote)
	router.Post("/:id/reactions", h.react)
	router.Patch("/:id", h.edit)
	router.Delete("/:id", h.delete)
}

// RegisterPresence binds the presence route.
func (h *ChatHandler) RegisterPresence(router fiber.Router) {
	router.Put("", h.presence)
}

func (h *ChatHandler) listConversations(c *fiber.Ctx) error {
	conversations, err := h.service.ListConversations(requestContext(c), middleware.IdentityFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to list conversations")
	}
	return utils.SendSuccess(c, "conversations", conversations)
}

func (h *ChatHandler) createGroup(c *fiber.Ctx) error {
	var payload dto.CreateGroupRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	conversation, err := h.service.CreateGroup(requestContext(c), middleware.IdentityFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to create group")
	}
	return utils.Created(c, "group created", conversation)
}

func (h *ChatHandler) joinGroup(c *fiber.Ctx) error {
	var payload dto.JoinGroupRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	conversation, err := h.service.JoinGroup(requestContext(c), middleware.IdentityFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to join group")
	}
	return utils.SendSuccess(c, "joined group", conversation)
}

func (h *ChatHandler) startDirect(c *fiber.Ctx) error {
	var payload dto.DirectMessageRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	conversation, err := h.service.StartDirectMessage(requestContext(c), middleware.IdentityFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to start conversation")
	}
	return utils.SendSuccess(c, "conversation ready", conversation)
}

func (h *ChatHandler) leave(c *fiber.Ctx) error {
	if err := h.service.LeaveGroup(requestContext(c), middleware.IdentityFromContext(c), c.Params("id")); err != nil {
		return respondError(c, h.logger, err, "failed to leave group")
	}
	return utils.SendSuccess(c, "left group", nil)
}

func (h *ChatHandler) listMessages(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}
	query := dto.MessageListQuery{Limit: limit}
	if err := h.validator.Struct(query); err != nil {
		return respondError(c, h.logger, err, "invalid limit")
	}

	messages, err := h.service.ListMessages(requestContext(c), middleware.IdentityFromContext(c), c.Params("id"), query.Limit)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list messages")
	}
	return utils.SendSuccess(c, "messages", messages)
}

func (h *ChatHandler) sendMessage(c *fiber.Ctx) error {
	var payload dto.SendMessageRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	message, err := h.service.SendMessage(requestContext(c), middleware.IdentityFromContext(c), c.Params("id"), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to send message")
	}
	return utils.Created(c, "message sent", message)
}

func (h *ChatHandler) sendFile(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	message, err := h.service.SendFileMessage(requestContext(c), middleware.IdentityFromContext(c), c.Params("id"), file)
	if err != nil {
		return respondError(c, h.logger, err, "failed to send file")
	}
	return utils.Created(c, "file sent", message)
}

func (h *ChatHandler) sendLocation(c *fiber.Ctx) error {
	var payload dto.SendLocationRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	message, err := h.service.SendLocation(requestContext(c), middleware.IdentityFromContext(c), c.Params("id"), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to share location")
	}
	return utils.Created(c, "location shared", message)
}

func (h *ChatHandler) sendPoll(c *fiber.Ctx) error {
	var payload dto.SendPollRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	message, err := h.service.SendPoll(requestContext(c), middleware.IdentityFromContext(c), c.Params("id"), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to create poll")
	}
	return utils.Created(c, "poll created", message)
}

func (h *ChatHandler) sendAI(c *fiber.Ctx) error {
	var payload dto.SendAIMessageRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		}
	}

	message, err := h.service.SendAIMessage(requestContext(c), middleware.IdentityFromContext(c), c.Params("id"), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to post assistant message")
	}
	return utils.Created(c, "assistant replied", message)
}

func (h *ChatHandler) markRead(c *fiber.Ctx) error {
	receipt, err := h.service.MarkMessagesAsRead(requestContext(c), middleware.IdentityFromContext(c), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err, "failed to mark messages as read")
	}
	return utils.SendSuccess(c, "messages read", receipt)
}

func (h *ChatHandler) listMembers(c *fiber.Ctx) error {
	members, err := h.service.ListMembers(requestContext(c), middleware.IdentityFromContext(c), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err, "failed to list members")
	}
	return utils.SendSuccess(c, "members", members)
}

func (h *ChatHandler) vote(c *fiber.Ctx) error {
	var payload dto.VoteRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	message, err := h.service.VoteInPoll(requestContext(c), middleware.IdentityFromContext(c), c.Params("id"), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to vote")
	}
	return utils.SendSuccess(c, "vote recorded", message)
}

func (h *ChatHandler) react(c *fiber.Ctx) error {
	var payload dto.ReactionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	message, err := h.service.AddReaction(requestContext(c), middleware.IdentityFromContext(c), c.Params("id"), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to react")
	}
	return utils.SendSuccess(c, "reaction toggled", message)
}

func (h *ChatHandler) edit(c *fiber.Ctx) error {
	var payload dto.EditMessageRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	message, err := h.service.EditMessage(requestContext(c), middleware.IdentityFromContext(c), c.Params("id"), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to edit message")
	}
	return utils.SendSuccess(c, "message edited", message)
}

func (h *ChatHandler) delete(c *fiber.Ctx) error {
	message, err := h.service.DeleteMessage(requestContext(c), middleware.IdentityFromContext(c), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err, "failed to delete message")
	}
	return utils.SendSuccess(c, "message deleted", message)
}

func (h *ChatHandler) presence(c *fiber.Ctx) error {
	var payload dto.PresenceRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	if err := h.service.UpdateOnlineStatus(requestContext(c), middleware.IdentityFromContext(c), payload.Online); err != nil {
		return respondError(c, h.logger, err, "failed to update presence")
	}
	return utils.SendSuccess(c, "presence updated", payload)
}

func (h *ChatHandler) handleConnection(conn *websocket.Conn) {
	identity, _ := conn.Locals("identity").(models.Identity)
	if !identity.Authenticated() {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authentication required"))
		_ = conn.Close()
		return
	}

	baseCtx, _ := conn.Locals("request_ctx").(context.Context)
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	logger := h.logger.With().Str("user_id", identity.UID).Logger()
	session := service.NewSession(h.service, h.feed, identity, logger)
	if err := session.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to start chat session")
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "session unavailable"))
		_ = conn.Close()
		return
	}

	logger.Info().Msg("chat session connected")
	defer logger.Info().Msg("chat session disconnected")

	var writeMu sync.Mutex
	write := func(event dto.SessionEvent) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(event)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for event := range session.Events() {
			if err := write(event); err != nil {
				logger.Debug().Err(err).Msg("session write failed")
				cancel()
				_ = conn.Close()
				return
			}
		}
	}()

	for ctx.Err() == nil {
		var cmd dto.SessionCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			break
		}
		if err := h.validator.Struct(cmd); err != nil {
			_ = write(dto.SessionEvent{Type: service.SessionEventError, Error: err.Error()})
			continue
		}
		if err := session.Handle(ctx, cmd); err != nil {
			_ = write(dto.SessionEvent{Type: service.SessionEventError, Error: err.Error()})
		}
	}

	session.Stop()
	wg.Wait()
}
