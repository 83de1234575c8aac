package approval

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/tahirov/eduadmin-api/utils/response"
)

// Trail handles GET /api/v1/approvals/:id/trail. Returns the full
// transition history of a request, oldest first.
func (h *ApprovalHandler) Trail(c *fiber.Ctx) error {
	sc, _, err := h.scopeContext(c)
	if err != nil {
		return serviceError(c, err)
	}

	requestID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid request ID")
	}

	transitions, err := h.audit.GetTrail(c.Context(), uint(requestID), sc)
	if err != nil {
		return serviceError(c, err)
	}

	return response.Success(c, fiber.Map{
		"request_id":  requestID,
		"transitions": transitions,
	})
}
