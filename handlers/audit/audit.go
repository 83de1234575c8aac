package audit

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/tahirov/eduadmin-api/services"
	"github.com/tahirov/eduadmin-api/utils/middleware"
	"github.com/tahirov/eduadmin-api/utils/response"
)

// AuditHandler handles audit trail endpoints
type AuditHandler struct {
	audit  *services.AuditService
	scopes *services.AccessScopeService
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(audit *services.AuditService, scopes *services.AccessScopeService) *AuditHandler {
	return &AuditHandler{audit: audit, scopes: scopes}
}

// BypassEvents handles GET /api/v1/audit/bypass-events. Superadmin only.
func (h *AuditHandler) BypassEvents(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	scope, err := h.scopes.Resolve(c.Context(), user)
	if err != nil {
		return response.InternalServerError(c, "Failed to resolve access scope")
	}
	sc := services.NewScopeContext(user, scope)

	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	if limit < 1 || limit > 200 {
		limit = 50
	}

	events, total, err := h.audit.ListBypassEvents(c.Context(), sc, limit, offset)
	if err != nil {
		if errors.Is(err, services.ErrAccessDenied) {
			return response.Forbidden(c, "Superadmin access required")
		}
		return response.InternalServerError(c, "Failed to list bypass events")
	}

	return response.Success(c, fiber.Map{
		"events": events,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// ActorHistory handles GET /api/v1/audit/actors/:id/history. Superadmin
// only; exposes every transition a user has performed.
func (h *AuditHandler) ActorHistory(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	actorID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid actor ID")
	}

	scope, err := h.scopes.Resolve(c.Context(), user)
	if err != nil {
		return response.InternalServerError(c, "Failed to resolve access scope")
	}
	sc := services.NewScopeContext(user, scope)

	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	if limit < 1 || limit > 200 {
		limit = 50
	}

	transitions, total, err := h.audit.ActorHistory(c.Context(), uint(actorID), sc, limit, offset)
	if err != nil {
		if errors.Is(err, services.ErrAccessDenied) {
			return response.Forbidden(c, "Superadmin access required")
		}
		return response.InternalServerError(c, "Failed to load actor history")
	}

	return response.Success(c, fiber.Map{
		"transitions": transitions,
		"total":       total,
		"limit":       limit,
		"offset":      offset,
	})
}
