package handler_test

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/onquest-api/internal/dto"
	"github.com/noah-isme/onquest-api/internal/handler"
	"github.com/noah-isme/onquest-api/internal/models"
	"github.com/noah-isme/onquest-api/internal/service"
)

type mockChatService struct {
	service.ChatService

	identity models.Identity
	chatID   string
	limit    int
	content  string
	fileName string
	online   *bool
	joined   dto.JoinGroupRequest
	err      error
}

func (m *mockChatService) CreateGroup(_ context.Context, identity models.Identity, req dto.CreateGroupRequest) (dto.ConversationResponse, error) {
	m.identity = identity
	return dto.ConversationResponse{ID: "chat-1", Name: req.Name, Type: models.ConversationTypeGroup}, m.err
}

func (m *mockChatService) JoinGroup(_ context.Context, _ models.Identity, req dto.JoinGroupRequest) (dto.ConversationResponse, error) {
	m.joined = req
	return dto.ConversationResponse{ID: "chat-1"}, m.err
}

func (m *mockChatService) ListMessages(_ context.Context, _ models.Identity, chatID string, limit int) ([]dto.MessageResponse, error) {
	m.chatID = chatID
	m.limit = limit
	return []dto.MessageResponse{{ID: "m1", ChatID: chatID, Content: "hello"}}, m.err
}

func (m *mockChatService) SendMessage(_ context.Context, _ models.Identity, chatID string, req dto.SendMessageRequest) (dto.MessageResponse, error) {
	m.chatID = chatID
	m.content = req.Content
	return dto.MessageResponse{ID: "m2", ChatID: chatID, Content: req.Content}, m.err
}

func (m *mockChatService) SendFileMessage(_ context.Context, _ models.Identity, chatID string, file *multipart.FileHeader) (dto.MessageResponse, error) {
	m.chatID = chatID
	m.fileName = file.Filename
	return dto.MessageResponse{ID: "m3", ChatID: chatID}, m.err
}

func (m *mockChatService) SendAIMessage(_ context.Context, _ models.Identity, chatID string, req dto.SendAIMessageRequest) (dto.MessageResponse, error) {
	m.chatID = chatID
	m.content = req.Content
	return dto.MessageResponse{ID: "m4", ChatID: chatID, SenderID: service.AssistantSenderID}, m.err
}

func (m *mockChatService) VoteInPoll(context.Context, models.Identity, string, dto.VoteRequest) (dto.MessageResponse, error) {
	return dto.MessageResponse{}, m.err
}

func (m *mockChatService) DeleteMessage(_ context.Context, identity models.Identity, messageID string) (dto.MessageResponse, error) {
	m.identity = identity
	return dto.MessageResponse{ID: messageID, Deleted: true}, m.err
}

func (m *mockChatService) UpdateOnlineStatus(_ context.Context, _ models.Identity, online bool) error {
	m.online = &online
	return m.err
}

func setupChatApp(svc service.ChatService, joinGuards ...fiber.Handler) *fiber.App {
	app := fiber.New()
	api := app.Group("/api/v1", withIdentity("alice"))
	chats := handler.NewChatHandler(svc, nil, validator.New(validator.WithRequiredStructEnabled()), zerolog.New(io.Discard))
	chats.Register(api.Group("/chats"), joinGuards...)
	chats.RegisterMessages(api.Group("/messages"))
	chats.RegisterPresence(api.Group("/presence"))
	return app
}

func TestChatHandlerCreateGroup(t *testing.T) {
	svc := &mockChatService{}
	app := setupChatApp(svc)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v1/chats/groups", dto.CreateGroupRequest{Name: "Tokyo Trip"}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var response struct {
		Success bool                     `json:"success"`
		Data    dto.ConversationResponse `json:"data"`
	}
	decodeResponse(t, resp, &response)
	require.True(t, response.Success)
	require.Equal(t, "Tokyo Trip", response.Data.Name)
	require.Equal(t, "alice", svc.identity.UID)
}

func TestChatHandlerJoinRunsGuards(t *testing.T) {
	svc := &mockChatService{}
	guarded := 0
	app := setupChatApp(svc, func(c *fiber.Ctx) error {
		guarded++
		if guarded > 1 {
			return c.SendStatus(fiber.StatusTooManyRequests)
		}
		return c.Next()
	})

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v1/chats/groups/join", dto.JoinGroupRequest{InviteCode: "abcd2345"}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "abcd2345", svc.joined.InviteCode)

	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/api/v1/chats/groups/join", dto.JoinGroupRequest{InviteCode: "abcd2345"}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	require.Equal(t, 2, guarded)
}

func TestChatHandlerJoinConflict(t *testing.T) {
	svc := &mockChatService{err: models.ErrAlreadyMember}
	app := setupChatApp(svc)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v1/chats/groups/join", dto.JoinGroupRequest{InviteCode: "ABCD2345"}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)

	var response struct {
		Message string `json:"message"`
	}
	decodeResponse(t, resp, &response)
	require.Equal(t, models.ErrAlreadyMember.Error(), response.Message)
}

func TestChatHandlerListMessagesLimit(t *testing.T) {
	svc := &mockChatService{}
	app := setupChatApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/chats/chat-1/messages?limit=50", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "chat-1", svc.chatID)
	require.Equal(t, 50, svc.limit)

	var response struct {
		Data []dto.MessageResponse `json:"data"`
	}
	decodeResponse(t, resp, &response)
	require.Len(t, response.Data, 1)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/chats/chat-1/messages?limit=abc", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/chats/chat-1/messages?limit=5000", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var failure struct {
		Message string   `json:"message"`
		Details []string `json:"details"`
	}
	decodeResponse(t, resp, &failure)
	require.Equal(t, "validation failed", failure.Message)
	require.NotEmpty(t, failure.Details)
}

func TestChatHandlerSendMessageRequiresMembership(t *testing.T) {
	svc := &mockChatService{}
	app := setupChatApp(svc)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v1/chats/chat-1/messages", dto.SendMessageRequest{Content: "see you at the station"}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Equal(t, "see you at the station", svc.content)

	svc.err = models.ErrNotMember
	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/api/v1/chats/chat-1/messages", dto.SendMessageRequest{Content: "hi"}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/chats/chat-1/messages", bytes.NewBufferString("{")))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestChatHandlerSendFile(t *testing.T) {
	svc := &mockChatService{}
	app := setupChatApp(svc)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "tickets.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("pdf"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chats/chat-1/files", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Equal(t, "tickets.pdf", svc.fileName)

	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/api/v1/chats/chat-1/files", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestChatHandlerAssistantWithoutBody(t *testing.T) {
	svc := &mockChatService{}
	app := setupChatApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/chats/chat-1/ai", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Equal(t, "chat-1", svc.chatID)
	require.Empty(t, svc.content)

	svc.err = models.Remote("assistant reply", io.ErrUnexpectedEOF)
	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/chats/chat-1/ai", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
}

func TestChatHandlerVoteOnClosedPoll(t *testing.T) {
	svc := &mockChatService{err: models.ErrPollClosed}
	app := setupChatApp(svc)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v1/messages/m1/votes", dto.VoteRequest{OptionIndex: 1}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestChatHandlerDeleteMessage(t *testing.T) {
	svc := &mockChatService{}
	app := setupChatApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/api/v1/messages/m9", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var response struct {
		Data dto.MessageResponse `json:"data"`
	}
	decodeResponse(t, resp, &response)
	require.Equal(t, "m9", response.Data.ID)
	require.True(t, response.Data.Deleted)
	require.Equal(t, "alice", svc.identity.UID)
}

func TestChatHandlerPresence(t *testing.T) {
	svc := &mockChatService{}
	app := setupChatApp(svc)

	resp, err := app.Test(jsonRequest(t, http.MethodPut, "/api/v1/presence", dto.PresenceRequest{Online: true}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NotNil(t, svc.online)
	require.True(t, *svc.online)

	svc.err = models.ErrNotAuthenticated
	resp, err = app.Test(jsonRequest(t, http.MethodPut, "/api/v1/presence", dto.PresenceRequest{Online: false}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
