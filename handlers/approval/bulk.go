package approval

import (
	"github.com/gofiber/fiber/v2"
	"github.com/tahirov/eduadmin-api/model"
	"github.com/tahirov/eduadmin-api/utils/middleware"
	"github.com/tahirov/eduadmin-api/utils/response"
)

// BulkBody is the payload for a bulk approval action
type BulkBody struct {
	RequestIDs []uint `json:"request_ids" validate:"required,min=1,max=500"`
	Action     string `json:"action" validate:"required,oneof=approve reject return_for_revision"`
	Comments   string `json:"comments,omitempty"`
}

// Bulk handles POST /api/v1/approvals/bulk. Items succeed or fail
// independently; the response reports both lists.
func (h *ApprovalHandler) Bulk(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	var body BulkBody
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := validate.ValidateStruct(&body); err != nil {
		return response.ValidationError(c, err)
	}

	result, err := h.bulk.ApplyBulk(c.Context(), body.RequestIDs, model.ApprovalActionType(body.Action), user, body.Comments)
	if err != nil {
		return serviceError(c, err)
	}

	return response.Success(c, result)
}
