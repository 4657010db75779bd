package controllers

import "github.com/gofiber/fiber/v2"

// HandleHealth is GET /health.
func HandleHealth(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}
