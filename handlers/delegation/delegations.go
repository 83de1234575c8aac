package delegation

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/tahirov/eduadmin-api/services"
	"github.com/tahirov/eduadmin-api/utils/middleware"
	"github.com/tahirov/eduadmin-api/utils/response"
	"github.com/tahirov/eduadmin-api/utils/validation"
)

var validate = validation.NewValidator()

// DelegationHandler handles approval-authority delegation endpoints
type DelegationHandler struct {
	delegations *services.DelegationService
}

// NewDelegationHandler creates a new delegation handler
func NewDelegationHandler(delegations *services.DelegationService) *DelegationHandler {
	return &DelegationHandler{delegations: delegations}
}

// CreateBody is the payload for creating a delegation
type CreateBody struct {
	DelegateID         uint      `json:"delegate_id" validate:"required"`
	ScopeInstitutionID uint      `json:"scope_institution_id" validate:"required"`
	ValidFrom          time.Time `json:"valid_from" validate:"required"`
	ValidUntil         time.Time `json:"valid_until" validate:"required"`
}

// Create handles POST /api/v1/delegations
func (h *DelegationHandler) Create(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	var body CreateBody
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := validate.ValidateStruct(&body); err != nil {
		return response.ValidationError(c, err)
	}

	delegation, err := h.delegations.CreateDelegation(c.Context(), user, services.CreateDelegationInput{
		DelegateID:         body.DelegateID,
		ScopeInstitutionID: body.ScopeInstitutionID,
		ValidFrom:          body.ValidFrom,
		ValidUntil:         body.ValidUntil,
	})
	if err != nil {
		return delegationError(c, err)
	}

	return response.Created(c, delegation)
}

// Revoke handles POST /api/v1/delegations/:id/revoke
func (h *DelegationHandler) Revoke(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	delegationID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid delegation ID")
	}

	if err := h.delegations.RevokeDelegation(c.Context(), uint(delegationID), user); err != nil {
		return delegationError(c, err)
	}

	return response.Success(c, fiber.Map{"message": "Delegation revoked"})
}

// List handles GET /api/v1/delegations. Returns delegations where the
// caller is delegator or delegate.
func (h *DelegationHandler) List(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	delegations, err := h.delegations.ListForUser(c.Context(), user.ID)
	if err != nil {
		return delegationError(c, err)
	}

	return response.Success(c, delegations)
}

func delegationError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return response.NotFound(c, err.Error())
	case errors.Is(err, services.ErrDelegationCycle):
		return response.Conflict(c, "Delegation would create a cycle")
	case errors.Is(err, services.ErrUnresolvableScope):
		return response.Forbidden(c, "Account has no resolvable institution scope")
	case errors.Is(err, services.ErrAccessDenied):
		return response.Forbidden(c, err.Error())
	case errors.Is(err, services.ErrValidation):
		return response.BadRequest(c, err.Error())
	default:
		return response.InternalServerError(c, "Internal server error")
	}
}
