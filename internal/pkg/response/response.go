package response

import (
	"github.com/gofiber/fiber/v2"
)

// OK sends 200 with {"ok": true} merged with fields.
func OK(c *fiber.Ctx, fields fiber.Map) error {
	return c.Status(fiber.StatusOK).JSON(envelope(true, fields))
}

// Error sends {"ok": false, "error": message} merged with extra fields.
func Error(c *fiber.Ctx, statusCode int, message string, extra fiber.Map) error {
	body := envelope(false, extra)
	body["error"] = message
	return c.Status(statusCode).JSON(body)
}

// BadRequest sends 400 with the standard error shape.
func BadRequest(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusBadRequest, message, nil)
}

// ServerError sends 500 with a generic message. Callers log the cause.
func ServerError(c *fiber.Ctx) error {
	return Error(c, fiber.StatusInternalServerError, "Server error", nil)
}

func envelope(ok bool, fields fiber.Map) fiber.Map {
	body := fiber.Map{"ok": ok}
	for k, v := range fields {
		body[k] = v
	}
	return body
}
