package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/tahirov/eduadmin-api/database"
	"github.com/tahirov/eduadmin-api/utils/response"
)

// HandleCheckHealth reports service and database liveness
func HandleCheckHealth(store *database.GORMStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := store.HealthCheck(); err != nil {
			return response.ServiceUnavailable(c, "Database unreachable")
		}
		return response.Success(c, fiber.Map{"status": "ok"})
	}
}
