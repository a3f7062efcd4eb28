package handler

import (
	"mime/multipart"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/onquest-api/internal/dto"
	"github.com/noah-isme/onquest-api/internal/itinerary"
	"github.com/noah-isme/onquest-api/internal/middleware"
	"github.com/noah-isme/onquest-api/internal/service"
	"github.com/noah-isme/onquest-api/internal/utils"
)

// QuestHandler exposes the itinerary editor and saved quest endpoints.
type QuestHandler struct {
	service service.QuestService
	logger  zerolog.Logger
}

// NewQuestHandler constructs a quest handler.
func NewQuestHandler(service service.QuestService, logger zerolog.Logger) *QuestHandler {
	return &QuestHandler{
		service: service,
		logger:  logger.With().Str("component", "quest_handler").Logger(),
	}
}

// Register wires quest routes.
func (h *QuestHandler) Register(router fiber.Router) {
	drafts := router.Group("/drafts")
	drafts.Post("", h.createDraft)
	drafts.Get("/:draftId", h.getDraft)
	drafts.Patch("/:draftId", h.updateDetails)
	drafts.Delete("/:draftId", h.discardDraft)
	drafts.Get("/:draftId/validation", h.validate)
	drafts.Post("/:draftId/save", h.save)
	drafts.Post("/:draftId/days", h.addDay)
	drafts.Patch("/:draftId/days/:day", h.setDayDate)
	drafts.Post("/:draftId/days/:day/periods/:period/toggle", h.togglePeriod)
	drafts.Post("/:draftId/days/:day/periods/:period/cards", h.addCard)
	drafts.Patch("/:draftId/days/:day/periods/:period/cards/:card", h.updateCard)
	drafts.Delete("/:draftId/days/:day/periods/:period/cards/:card", h.deleteCard)
	drafts.Post("/:draftId/days/:day/periods/:period/cards/:card/move", h.moveCard)
	drafts.Post("/:draftId/days/:day/periods/:period/cards/:card/media", h.uploadCardMedia)
	drafts.Delete("/:draftId/days/:day/periods/:period/cards/:card/media", h.removeCardMedia)

	router.Get("/:id", h.getTrip)
	router.Post("/:id/drafts", h.editTrip)
	router.Patch("/:id/title", h.updateTitle)
	router.Patch("/:id/description", h.updateDescription)
	router.Post("/:id/like", h.toggleLike)
	router.Post("/:id/save", h.toggleSave)
	router.Post("/:id/follow", h.toggleFollow)
	router.Post("/:id/duplicate", h.duplicate)
}

type cardAddress struct {
	draftID string
	day     int
	period  itinerary.PeriodID
	card    int
}

func parseCardAddress(c *fiber.Ctx, withCard bool) (cardAddress, error) {
	address := cardAddress{draftID: c.Params("draftId")}
	var err error
	if address.day, err = parseIndexParam(c, "day"); err != nil {
		return cardAddress{}, err
	}
	if address.period, err = parsePeriodParam(c); err != nil {
		return cardAddress{}, err
	}
	if withCard {
		if address.card, err = parseIndexParam(c, "card"); err != nil {
			return cardAddress{}, err
		}
	}
	return address, nil
}

func (h *QuestHandler) createDraft(c *fiber.Ctx) error {
	draft, err := h.service.CreateDraft(requestContext(c), middleware.IdentityFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to create draft")
	}
	return utils.Created(c, "draft created", draft)
}

func (h *QuestHandler) getDraft(c *fiber.Ctx) error {
	draft, err := h.service.GetDraft(requestContext(c), middleware.IdentityFromContext(c), c.Params("draftId"))
	if err != nil {
		return respondError(c, h.logger, err, "failed to load draft")
	}
	return utils.SendSuccess(c, "draft retrieved", draft)
}

func (h *QuestHandler) updateDetails(c *fiber.Ctx) error {
	var payload dto.QuestDetailsRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	draft, err := h.service.UpdateDetails(requestContext(c), middleware.IdentityFromContext(c), c.Params("draftId"), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to update draft")
	}
	return utils.SendSuccess(c, "draft updated", draft)
}

func (h *QuestHandler) discardDraft(c *fiber.Ctx) error {
	if err := h.service.DiscardDraft(requestContext(c), middleware.IdentityFromContext(c), c.Params("draftId")); err != nil {
		return respondError(c, h.logger, err, "failed to discard draft")
	}
	return utils.SendSuccess(c, "draft discarded", nil)
}

func (h *QuestHandler) validate(c *fiber.Ctx) error {
	result, err := h.service.Validate(requestContext(c), middleware.IdentityFromContext(c), c.Params("draftId"))
	if err != nil {
		return respondError(c, h.logger, err, "failed to validate draft")
	}
	return utils.SendSuccess(c, "draft validated", result)
}

func (h *QuestHandler) save(c *fiber.Ctx) error {
	trip, err := h.service.Save(requestContext(c), middleware.IdentityFromContext(c), c.Params("draftId"))
	if err != nil {
		return respondError(c, h.logger, err, "failed to save quest")
	}
	return utils.SendSuccess(c, "quest saved", trip)
}

func (h *QuestHandler) addDay(c *fiber.Ctx) error {
	draft, err := h.service.AddDay(requestContext(c), middleware.IdentityFromContext(c), c.Params("draftId"))
	if err != nil {
		return respondError(c, h.logger, err, "failed to add day")
	}
	return utils.SendSuccess(c, "day added", draft)
}

func (h *QuestHandler) setDayDate(c *fiber.Ctx) error {
	day, err := parseIndexParam(c, "day")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	var payload dto.DayDateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	draft, err := h.service.SetDayDate(requestContext(c), middleware.IdentityFromContext(c), c.Params("draftId"), day, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to set day date")
	}
	return utils.SendSuccess(c, "day updated", draft)
}

func (h *QuestHandler) togglePeriod(c *fiber.Ctx) error {
	address, err := parseCardAddress(c, false)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	draft, err := h.service.ToggleTimePeriod(requestContext(c), middleware.IdentityFromContext(c), address.draftID, address.day, address.period)
	if err != nil {
		return respondError(c, h.logger, err, "failed to toggle period")
	}
	return utils.SendSuccess(c, "period toggled", draft)
}

func (h *QuestHandler) addCard(c *fiber.Ctx) error {
	address, err := parseCardAddress(c, false)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	draft, err := h.service.AddCard(requestContext(c), middleware.IdentityFromContext(c), address.draftID, address.day, address.period)
	if err != nil {
		return respondError(c, h.logger, err, "failed to add card")
	}
	return utils.Created(c, "card added", draft)
}

func (h *QuestHandler) updateCard(c *fiber.Ctx) error {
	address, err := parseCardAddress(c, true)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	var payload dto.CardUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	draft, err := h.service.UpdateCard(requestContext(c), middleware.IdentityFromContext(c), address.draftID, address.day, address.period, address.card, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to update card")
	}
	return utils.SendSuccess(c, "card updated", draft)
}

func (h *QuestHandler) deleteCard(c *fiber.Ctx) error {
	address, err := parseCardAddress(c, true)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	draft, err := h.service.DeleteCard(requestContext(c), middleware.IdentityFromContext(c), address.draftID, address.day, address.period, address.card)
	if err != nil {
		return respondError(c, h.logger, err, "failed to delete card")
	}
	return utils.SendSuccess(c, "card deleted", draft)
}

func (h *QuestHandler) moveCard(c *fiber.Ctx) error {
	address, err := parseCardAddress(c, true)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	var payload dto.MoveCardRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	draft, err := h.service.MoveCard(requestContext(c), middleware.IdentityFromContext(c), address.draftID, address.day, address.period, address.card, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to move card")
	}
	return utils.SendSuccess(c, "card moved", draft)
}

func (h *QuestHandler) uploadCardMedia(c *fiber.Ctx) error {
	address, err := parseCardAddress(c, true)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	files, err := formFiles(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "files are required")
	}

	draft, err := h.service.UploadCardMedia(requestContext(c), middleware.IdentityFromContext(c), address.draftID, address.day, address.period, address.card, files)
	if err != nil {
		return respondError(c, h.logger, err, "failed to upload media")
	}
	return utils.SendSuccess(c, "media uploaded", draft)
}

func (h *QuestHandler) removeCardMedia(c *fiber.Ctx) error {
	address, err := parseCardAddress(c, true)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	var payload dto.RemoveMediaRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	draft, err := h.service.RemoveCardMedia(requestContext(c), middleware.IdentityFromContext(c), address.draftID, address.day, address.period, address.card, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to remove media")
	}
	return utils.SendSuccess(c, "media removed", draft)
}

func (h *QuestHandler) getTrip(c *fiber.Ctx) error {
	ctx := requestContext(c)
	trip, err := h.service.GetTrip(ctx, middleware.IdentityFromContext(c), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err, "failed to load quest")
	}
	h.service.IncrementViewCount(ctx, trip.ID)
	return utils.SendSuccess(c, "quest retrieved", trip)
}

func (h *QuestHandler) editTrip(c *fiber.Ctx) error {
	draft, err := h.service.EditTrip(requestContext(c), middleware.IdentityFromContext(c), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err, "failed to open quest")
	}
	return utils.Created(c, "draft created", draft)
}

func (h *QuestHandler) updateTitle(c *fiber.Ctx) error {
	var payload dto.TitleRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	trip, err := h.service.UpdateTitle(requestContext(c), middleware.IdentityFromContext(c), c.Params("id"), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to update title")
	}
	return utils.SendSuccess(c, "quest updated", trip)
}

func (h *QuestHandler) updateDescription(c *fiber.Ctx) error {
	var payload dto.DescriptionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	trip, err := h.service.UpdateDescription(requestContext(c), middleware.IdentityFromContext(c), c.Params("id"), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to update description")
	}
	return utils.SendSuccess(c, "quest updated", trip)
}

func (h *QuestHandler) toggleLike(c *fiber.Ctx) error {
	result, err := h.service.ToggleLike(requestContext(c), middleware.IdentityFromContext(c), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err, "failed to toggle like")
	}
	return utils.SendSuccess(c, "like toggled", result)
}

func (h *QuestHandler) toggleSave(c *fiber.Ctx) error {
	result, err := h.service.ToggleSave(requestContext(c), middleware.IdentityFromContext(c), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err, "failed to toggle save")
	}
	return utils.SendSuccess(c, "save toggled", result)
}

func (h *QuestHandler) toggleFollow(c *fiber.Ctx) error {
	result, err := h.service.ToggleFollow(requestContext(c), middleware.IdentityFromContext(c), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err, "failed to toggle follow")
	}
	return utils.SendSuccess(c, "follow toggled", result)
}

func (h *QuestHandler) duplicate(c *fiber.Ctx) error {
	trip, err := h.service.Duplicate(requestContext(c), middleware.IdentityFromContext(c), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err, "failed to duplicate quest")
	}
	return utils.Created(c, "quest duplicated", trip)
}

func formFiles(c *fiber.Ctx) ([]*multipart.FileHeader, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, err
	}
	files := append([]*multipart.FileHeader{}, form.File["files"]...)
	files = append(files, form.File["file"]...)
	return files, nil
}
