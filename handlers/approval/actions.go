package approval

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/tahirov/eduadmin-api/model"
	"github.com/tahirov/eduadmin-api/services"
	"github.com/tahirov/eduadmin-api/utils/middleware"
	"github.com/tahirov/eduadmin-api/utils/response"
)

// ActionBody carries the optional or mandatory comments for an action
type ActionBody struct {
	Comments string `json:"comments,omitempty"`
}

// requestAction pulls the acting user, request ID, and comments out of
// an action request. The returned error is always non-nil on failure;
// callers translate it with serviceError.
func (h *ApprovalHandler) requestAction(c *fiber.Ctx) (uint, *model.User, string, error) {
	user, ok := middleware.GetUser(c)
	if !ok {
		return 0, nil, "", errNotAuthenticated
	}

	requestID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return 0, nil, "", fmt.Errorf("invalid request ID: %w", services.ErrValidation)
	}

	var body ActionBody
	// An empty body is fine; comments are validated per action downstream
	_ = c.BodyParser(&body)

	return uint(requestID), user, body.Comments, nil
}

// Submit handles POST /api/v1/approvals/:id/submit
func (h *ApprovalHandler) Submit(c *fiber.Ctx) error {
	requestID, user, comments, err := h.requestAction(c)
	if err != nil {
		return serviceError(c, err)
	}

	request, err := h.approvals.Submit(c.Context(), requestID, user, comments)
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, request)
}

// Approve handles POST /api/v1/approvals/:id/approve
func (h *ApprovalHandler) Approve(c *fiber.Ctx) error {
	requestID, user, comments, err := h.requestAction(c)
	if err != nil {
		return serviceError(c, err)
	}

	request, err := h.approvals.Approve(c.Context(), requestID, user, comments)
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, request)
}

// Reject handles POST /api/v1/approvals/:id/reject
func (h *ApprovalHandler) Reject(c *fiber.Ctx) error {
	requestID, user, comments, err := h.requestAction(c)
	if err != nil {
		return serviceError(c, err)
	}

	request, err := h.approvals.Reject(c.Context(), requestID, user, comments)
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, request)
}

// Return handles POST /api/v1/approvals/:id/return
func (h *ApprovalHandler) Return(c *fiber.Ctx) error {
	requestID, user, comments, err := h.requestAction(c)
	if err != nil {
		return serviceError(c, err)
	}

	request, err := h.approvals.ReturnForRevision(c.Context(), requestID, user, comments)
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, request)
}

// Archive handles POST /api/v1/approvals/:id/archive
func (h *ApprovalHandler) Archive(c *fiber.Ctx) error {
	requestID, user, _, err := h.requestAction(c)
	if err != nil {
		return serviceError(c, err)
	}

	request, err := h.approvals.Archive(c.Context(), requestID, user)
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, request)
}
