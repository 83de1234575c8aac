package approval

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/tahirov/eduadmin-api/model"
	"github.com/tahirov/eduadmin-api/services"
	"github.com/tahirov/eduadmin-api/utils/middleware"
	"github.com/tahirov/eduadmin-api/utils/response"
)

// ApprovalHandler handles approval workflow endpoints
type ApprovalHandler struct {
	approvals *services.ApprovalService
	bulk      *services.BulkService
	audit     *services.AuditService
	scopes    *services.AccessScopeService
}

// NewApprovalHandler creates a new approval handler
func NewApprovalHandler(approvals *services.ApprovalService, bulk *services.BulkService, audit *services.AuditService, scopes *services.AccessScopeService) *ApprovalHandler {
	return &ApprovalHandler{
		approvals: approvals,
		bulk:      bulk,
		audit:     audit,
		scopes:    scopes,
	}
}

// errNotAuthenticated marks requests that carry no authenticated user.
// Response helpers write the body and return fiber's (nil on success)
// write error, so helpers here must never hand those back as sentinels.
var errNotAuthenticated = errors.New("not authenticated")

// scopeContext resolves the authenticated user's access scope. The
// returned error is always non-nil on failure; callers translate it
// with serviceError.
func (h *ApprovalHandler) scopeContext(c *fiber.Ctx) (*services.ScopeContext, *model.User, error) {
	user, ok := middleware.GetUser(c)
	if !ok {
		return nil, nil, errNotAuthenticated
	}

	scope, err := h.scopes.Resolve(c.Context(), user)
	if err != nil {
		return nil, nil, err
	}
	return services.NewScopeContext(user, scope), user, nil
}

// serviceError maps workflow service errors to HTTP responses
func serviceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, errNotAuthenticated):
		return response.Unauthorized(c, "Not authenticated")
	case errors.Is(err, services.ErrNotFound):
		return response.NotFound(c, err.Error())
	case errors.Is(err, services.ErrUnresolvableScope):
		return response.Forbidden(c, "Account has no resolvable institution scope")
	case errors.Is(err, services.ErrAccessDenied):
		return response.Forbidden(c, err.Error())
	case errors.Is(err, services.ErrNotAuthorizedApprover):
		return response.Forbidden(c, "Not an authorized approver for the current step")
	case errors.Is(err, services.ErrInvalidTransition):
		return response.Conflict(c, err.Error())
	case errors.Is(err, services.ErrConcurrentModification):
		return response.Conflict(c, "Request was modified concurrently, retry")
	case errors.Is(err, services.ErrBatchTooLarge):
		return response.BadRequest(c, err.Error())
	case errors.Is(err, services.ErrValidation):
		return response.BadRequest(c, err.Error())
	default:
		return response.InternalServerError(c, "Internal server error")
	}
}
