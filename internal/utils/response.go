package utils

import "github.com/gofiber/fiber/v2"

// APIResponse is the envelope every endpoint answers with. Details carries
// field errors or the violated save rules of a quest.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// SendSuccess sends a 200 success payload.
func SendSuccess(c *fiber.Ctx, message string, data interface{}) error {
	return SendSuccessWithStatus(c, fiber.StatusOK, message, data)
}

// Created sends a 201 success payload for newly created resources.
func Created(c *fiber.Ctx, message string, data interface{}) error {
	return SendSuccessWithStatus(c, fiber.StatusCreated, message, data)
}

// SendSuccessWithStatus sends a success payload using the provided HTTP status code.
func SendSuccessWithStatus(c *fiber.Ctx, status int, message string, data interface{}) error {
	if status == 0 {
		status = fiber.StatusOK
	}
	return write(c, status, APIResponse{
		Success: true,
		Data:    data,
		Message: orDefault(message, "success"),
	})
}

// SendError sends an error payload without details.
func SendError(c *fiber.Ctx, status int, message string) error {
	return Fail(c, status, message, nil)
}

// Fail sends an error payload carrying optional details.
func Fail(c *fiber.Ctx, status int, message string, details interface{}) error {
	return write(c, status, APIResponse{
		Message: orDefault(message, "error"),
		Details: details,
	})
}

func write(c *fiber.Ctx, status int, body APIResponse) error {
	return c.Status(status).JSON(body)
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
