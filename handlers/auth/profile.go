package auth

import (
	"github.com/gofiber/fiber/v2"
	"github.com/tahirov/eduadmin-api/utils/middleware"
	"github.com/tahirov/eduadmin-api/utils/response"
)

// Me returns the authenticated user's profile with their home institution
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	res := fiber.Map{
		"id":             user.ID,
		"email":          user.Email,
		"name":           user.Name,
		"role":           user.Role,
		"institution_id": user.InstitutionID,
	}
	if user.InstitutionID != nil && user.Institution != nil {
		res["institution"] = fiber.Map{
			"id":    user.Institution.ID,
			"name":  user.Institution.Name,
			"type":  user.Institution.Type,
			"level": user.Institution.Level,
		}
	}

	return response.Success(c, res)
}
