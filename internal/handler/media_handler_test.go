package handler_test

import (
	"bytes"
	"context"
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

type mockMediaService struct {
	service.MediaService

	tripID       string
	uploaded     []string
	removed      itinerary.Media
	deleteObject bool
	err          error
}

func (m *mockMediaService) UploadMedia(_ context.Context, _ models.Identity, tripID string, files []*multipart.FileHeader) ([]itinerary.Media, error) {
	m.tripID = tripID
	media := make([]itinerary.Media, 0, len(files))
	for _, file := range files {
		m.uploaded = append(m.uploaded, file.Filename)
		media = append(media, itinerary.Media{URL: "https://cdn.example.com/" + file.Filename, Name: file.Filename, Path: "quests/" + file.Filename})
	}
	return media, m.err
}

func (m *mockMediaService) RemoveMedia(_ context.Context, _ models.Identity, tripID string, item itinerary.Media, deleteObject bool) ([]itinerary.Media, error) {
	m.tripID = tripID
	m.removed = item
	m.deleteObject = deleteObject
	return []itinerary.Media{}, m.err
}

func setupMediaApp(svc service.MediaService) *fiber.App {
	app := fiber.New()
	handler.NewMediaHandler(svc, zerolog.New(io.Discard)).Register(app.Group("/quests", withIdentity("alice")))
	return app
}

func TestMediaHandlerUpload(t *testing.T) {
	svc := &mockMediaService{}
	app := setupMediaApp(svc)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "sunset.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("png"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/quests/trip-1/media", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var response struct {
		Success bool              `json:"success"`
		Data    dto.MediaResponse `json:"data"`
		Message string            `json:"message"`
	}
	decodeResponse(t, resp, &response)
	require.True(t, response.Success)
	require.Equal(t, "upload successful", response.Message)
	require.Equal(t, "trip-1", svc.tripID)
	require.Len(t, response.Data.Media, 1)
	require.Equal(t, "quests/sunset.png", response.Data.Media[0].Path)
}

func TestMediaHandlerMissingFile(t *testing.T) {
	app := setupMediaApp(&mockMediaService{})

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("note", "nothing"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/quests/trip-1/media", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestMediaHandlerRemove(t *testing.T) {
	svc := &mockMediaService{}
	app := setupMediaApp(svc)

	resp, err := app.Test(jsonRequest(t, http.MethodDelete, "/quests/trip-1/media", dto.RemoveMediaRequest{Path: "quests/sunset.png", DeleteObject: true}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "quests/sunset.png", svc.removed.Path)
	require.True(t, svc.deleteObject)

	svc.err = models.ErrNotFound
	resp, err = app.Test(jsonRequest(t, http.MethodDelete, "/quests/other/media", dto.RemoveMediaRequest{Path: "quests/sunset.png"}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
