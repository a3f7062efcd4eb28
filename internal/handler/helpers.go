package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/onquest-api/internal/itinerary"
	"github.com/noah-isme/onquest-api/internal/middleware"
	"github.com/noah-isme/onquest-api/internal/models"
	"github.com/noah-isme/onquest-api/internal/service"
	"github.com/noah-isme/onquest-api/internal/utils"
)

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

func parseIndexParam(c *fiber.Ctx, key string) (int, error) {
	parsed, err := strconv.Atoi(strings.TrimSpace(c.Params(key)))
	if err != nil || parsed < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return parsed, nil
}

func parsePeriodParam(c *fiber.Ctx) (itinerary.PeriodID, error) {
	period, err := itinerary.ParsePeriod(c.Params("period"))
	if err != nil {
		return "", fmt.Errorf("invalid period")
	}
	return period, nil
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

func validationDetails(err error) []string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}
	details := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		details = append(details, fmt.Sprintf("%s failed on %s", fieldErr.Field(), fieldErr.Tag()))
	}
	return details
}

// respondError maps the service error taxonomy onto HTTP statuses.
func respondError(c *fiber.Ctx, logger zerolog.Logger, err error, fallback string) error {
	var violations *models.ValidationError
	switch {
	case isValidationError(err):
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", validationDetails(err))
	case errors.As(err, &violations):
		return utils.Fail(c, fiber.StatusUnprocessableEntity, models.ErrValidationFailed.Error(), violations.Violations)
	case errors.Is(err, models.ErrNotAuthenticated):
		return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, models.ErrNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrNotMember):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, models.ErrAlreadyMember), errors.Is(err, models.ErrPollClosed):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrUploadTooLarge):
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, models.ErrInvalidInput):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrRemoteOperationFailed):
		requestLogger(logger, c).Error().Err(err).Msg(fallback)
		return utils.SendError(c, fiber.StatusBadGateway, fallback)
	default:
		requestLogger(logger, c).Error().Err(err).Msg(fallback)
		return utils.SendError(c, fiber.StatusInternalServerError, fallback)
	}
}
