package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/onquest-api/internal/dto"
	"github.com/noah-isme/onquest-api/internal/itinerary"
	"github.com/noah-isme/onquest-api/internal/middleware"
	"github.com/noah-isme/onquest-api/internal/service"
	"github.com/noah-isme/onquest-api/internal/utils"
)

// MediaHandler handles media attached directly to a saved quest.
type MediaHandler struct {
	service service.MediaService
	logger  zerolog.Logger
}

// NewMediaHandler constructs a media handler.
func NewMediaHandler(service service.MediaService, logger zerolog.Logger) *MediaHandler {
	return &MediaHandler{
		service: service,
		logger:  logger.With().Str("component", "media_handler").Logger(),
	}
}

// Register wires media routes.
func (h *MediaHandler) Register(router fiber.Router) {
	router.Post("/:id/media", h.upload)
	router.Delete("/:id/media", h.remove)
}

func (h *MediaHandler) upload(c *fiber.Ctx) error {
	files, err := formFiles(c)
	if err != nil || len(files) == 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	media, err := h.service.UploadMedia(requestContext(c), middleware.IdentityFromContext(c), c.Params("id"), files)
	if err != nil {
		return respondError(c, h.logger, err, "upload failed")
	}

	return utils.SendSuccess(c, "upload successful", dto.MediaResponse{Media: media})
}

func (h *MediaHandler) remove(c *fiber.Ctx) error {
	var payload dto.RemoveMediaRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	item := itinerary.Media{Path: payload.Path}
	media, err := h.service.RemoveMedia(requestContext(c), middleware.IdentityFromContext(c), c.Params("id"), item, payload.DeleteObject)
	if err != nil {
		return respondError(c, h.logger, err, "failed to remove media")
	}

	return utils.SendSuccess(c, "media removed", dto.MediaResponse{Media: media})
}
