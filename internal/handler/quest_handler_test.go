package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/onquest-api/internal/dto"
	"github.com/noah-isme/onquest-api/internal/handler"
	"github.com/noah-isme/onquest-api/internal/itinerary"
	"github.com/noah-isme/onquest-api/internal/models"
	"github.com/noah-isme/onquest-api/internal/service"
)

type cardCall struct {
	draftID string
	day     int
	period  itinerary.PeriodID
	card    int
}

type mockQuestService struct {
	service.QuestService

	identity   models.Identity
	call       cardCall
	move       dto.MoveCardRequest
	files      []string
	viewed     []string
	draft      dto.QuestDraftResponse
	trip       dto.TripResponse
	err        error
	saveErr    error
	engagement dto.EngagementResponse
}

func (m *mockQuestService) CreateDraft(_ context.Context, identity models.Identity) (dto.QuestDraftResponse, error) {
	m.identity = identity
	return m.draft, m.err
}

func (m *mockQuestService) AddCard(_ context.Context, identity models.Identity, draftID string, dayIndex int, period itinerary.PeriodID) (dto.QuestDraftResponse, error) {
	m.identity = identity
	m.call = cardCall{draftID: draftID, day: dayIndex, period: period}
	return m.draft, m.err
}

func (m *mockQuestService) MoveCard(_ context.Context, _ models.Identity, draftID string, dayIndex int, period itinerary.PeriodID, cardIndex int, req dto.MoveCardRequest) (dto.QuestDraftResponse, error) {
	m.call = cardCall{draftID: draftID, day: dayIndex, period: period, card: cardIndex}
	m.move = req
	return m.draft, m.err
}

func (m *mockQuestService) UploadCardMedia(_ context.Context, _ models.Identity, draftID string, dayIndex int, period itinerary.PeriodID, cardIndex int, files []*multipart.FileHeader) (dto.QuestDraftResponse, error) {
	m.call = cardCall{draftID: draftID, day: dayIndex, period: period, card: cardIndex}
	for _, file := range files {
		m.files = append(m.files, file.Filename)
	}
	return m.draft, m.err
}

func (m *mockQuestService) Save(context.Context, models.Identity, string) (dto.TripResponse, error) {
	return m.trip, m.saveErr
}

func (m *mockQuestService) GetTrip(_ context.Context, _ models.Identity, tripID string) (dto.TripResponse, error) {
	if m.err != nil {
		return dto.TripResponse{}, m.err
	}
	trip := m.trip
	trip.ID = tripID
	return trip, nil
}

func (m *mockQuestService) IncrementViewCount(_ context.Context, tripID string) {
	m.viewed = append(m.viewed, tripID)
}

func (m *mockQuestService) ToggleLike(_ context.Context, _ models.Identity, tripID string) (dto.EngagementResponse, error) {
	result := m.engagement
	result.TripID = tripID
	return result, m.err
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(body, target))
}

func withIdentity(uid string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("identity", models.Identity{UID: uid, DisplayName: "Test " + uid})
		return c.Next()
	}
}

func setupQuestApp(svc service.QuestService) *fiber.App {
	app := fiber.New()
	group := app.Group("/quests", withIdentity("alice"))
	handler.NewQuestHandler(svc, zerolog.New(io.Discard)).Register(group)
	return app
}

func jsonRequest(t *testing.T, method, target string, payload interface{}) *http.Request {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestQuestHandlerCreateDraft(t *testing.T) {
	svc := &mockQuestService{draft: dto.QuestDraftResponse{ID: "draft-1"}}
	app := setupQuestApp(svc)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/quests/drafts", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var response struct {
		Success bool                   `json:"success"`
		Data    dto.QuestDraftResponse `json:"data"`
	}
	decodeResponse(t, resp, &response)
	require.True(t, response.Success)
	require.Equal(t, "draft-1", response.Data.ID)
	require.Equal(t, "alice", svc.identity.UID)
}

func TestQuestHandlerAddCardParsesAddress(t *testing.T) {
	svc := &mockQuestService{}
	app := setupQuestApp(svc)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/quests/drafts/d1/days/2/periods/evening/cards", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Equal(t, cardCall{draftID: "d1", day: 2, period: itinerary.Evening}, svc.call)
}

func TestQuestHandlerRejectsBadAddress(t *testing.T) {
	svc := &mockQuestService{}
	app := setupQuestApp(svc)

	cases := map[string]string{
		"/quests/drafts/d1/days/x/periods/morning/cards":  "invalid day",
		"/quests/drafts/d1/days/-1/periods/morning/cards": "invalid day",
		"/quests/drafts/d1/days/0/periods/brunch/cards":   "invalid period",
	}
	for target, message := range cases {
		resp, err := app.Test(jsonRequest(t, http.MethodPost, target, nil))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusBadRequest, resp.StatusCode, target)

		var response struct {
			Success bool   `json:"success"`
			Message string `json:"message"`
		}
		decodeResponse(t, resp, &response)
		require.False(t, response.Success)
		require.Equal(t, message, response.Message)
	}
	require.Empty(t, svc.call.draftID)
}

func TestQuestHandlerMoveCard(t *testing.T) {
	svc := &mockQuestService{}
	app := setupQuestApp(svc)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/quests/drafts/d1/days/0/periods/morning/cards/3/move", dto.MoveCardRequest{Direction: "up"}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, 3, svc.call.card)
	require.Equal(t, "up", svc.move.Direction)

	svc.err = fmt.Errorf("%w: card index out of range", models.ErrInvalidInput)
	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/quests/drafts/d1/days/0/periods/morning/cards/9/move", dto.MoveCardRequest{Direction: "down"}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestQuestHandlerSaveReportsViolations(t *testing.T) {
	svc := &mockQuestService{saveErr: &models.ValidationError{Violations: []string{"Quest title is required", "Add at least one activity"}}}
	app := setupQuestApp(svc)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/quests/drafts/d1/save", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	var response struct {
		Success bool     `json:"success"`
		Message string   `json:"message"`
		Details []string `json:"details"`
	}
	decodeResponse(t, resp, &response)
	require.False(t, response.Success)
	require.Equal(t, models.ErrValidationFailed.Error(), response.Message)
	require.Len(t, response.Details, 2)
}

func TestQuestHandlerSaveRemoteFailure(t *testing.T) {
	svc := &mockQuestService{saveErr: models.Remote("save trip", errors.New("connection reset"))}
	app := setupQuestApp(svc)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/quests/drafts/d1/save", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadGateway, resp.StatusCode)

	var response struct {
		Message string `json:"message"`
	}
	decodeResponse(t, resp, &response)
	require.Equal(t, "failed to save quest", response.Message)
}

func TestQuestHandlerGetTripCountsView(t *testing.T) {
	svc := &mockQuestService{trip: dto.TripResponse{Title: "Kyoto in Autumn"}}
	app := setupQuestApp(svc)

	resp, err := app.Test(jsonRequest(t, http.MethodGet, "/quests/trip-1", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var response struct {
		Data dto.TripResponse `json:"data"`
	}
	decodeResponse(t, resp, &response)
	require.Equal(t, "trip-1", response.Data.ID)
	require.Equal(t, []string{"trip-1"}, svc.viewed)

	svc.err = models.ErrNotFound
	resp, err = app.Test(jsonRequest(t, http.MethodGet, "/quests/missing", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	require.Len(t, svc.viewed, 1)
}

func TestQuestHandlerToggleLike(t *testing.T) {
	svc := &mockQuestService{engagement: dto.EngagementResponse{Active: true, Count: 4}}
	app := setupQuestApp(svc)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/quests/trip-1/like", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var response struct {
		Data dto.EngagementResponse `json:"data"`
	}
	decodeResponse(t, resp, &response)
	require.Equal(t, "trip-1", response.Data.TripID)
	require.True(t, response.Data.Active)
	require.Equal(t, 4, response.Data.Count)
}

func TestQuestHandlerUploadCardMedia(t *testing.T) {
	svc := &mockQuestService{}
	app := setupQuestApp(svc)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, name := range []string{"shrine.jpg", "market.mp4"} {
		part, err := writer.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte("media"))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/quests/drafts/d1/days/1/periods/afternoon/cards/0/media", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, []string{"shrine.jpg", "market.mp4"}, svc.files)
	require.Equal(t, cardCall{draftID: "d1", day: 1, period: itinerary.Afternoon}, svc.call)
}

func TestQuestHandlerUploadTooLarge(t *testing.T) {
	svc := &mockQuestService{err: service.ErrUploadTooLarge}
	app := setupQuestApp(svc)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("files", "huge.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("png"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/quests/drafts/d1/days/0/periods/night/cards/0/media", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusRequestEntityTooLarge, resp.StatusCode)
}
