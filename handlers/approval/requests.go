package approval

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/tahirov/eduadmin-api/model"
	"github.com/tahirov/eduadmin-api/services"
	"github.com/tahirov/eduadmin-api/utils/middleware"
	"github.com/tahirov/eduadmin-api/utils/response"
	"github.com/tahirov/eduadmin-api/utils/validation"
)

var validate = validation.NewValidator()

// CreateRequestBody is the payload for registering a draft request
type CreateRequestBody struct {
	EntityType    string   `json:"entity_type" validate:"required"`
	EntityID      uint     `json:"entity_id" validate:"required"`
	InstitutionID uint     `json:"institution_id" validate:"required"`
	Title         string   `json:"title" validate:"required,min=3"`
	Chain         []string `json:"chain,omitempty"`
}

// Create handles POST /api/v1/approvals
func (h *ApprovalHandler) Create(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	var body CreateRequestBody
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := validate.ValidateStruct(&body); err != nil {
		return response.ValidationError(c, err)
	}

	request, err := h.approvals.CreateDraft(c.Context(), user, services.CreateRequestInput{
		EntityType:    body.EntityType,
		EntityID:      body.EntityID,
		InstitutionID: body.InstitutionID,
		Title:         body.Title,
		Chain:         body.Chain,
	})
	if err != nil {
		return serviceError(c, err)
	}

	return response.Created(c, request)
}

// Get handles GET /api/v1/approvals/:id
func (h *ApprovalHandler) Get(c *fiber.Ctx) error {
	sc, _, err := h.scopeContext(c)
	if err != nil {
		return serviceError(c, err)
	}

	requestID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid request ID")
	}

	request, err := h.approvals.GetRequest(c.Context(), uint(requestID), sc)
	if err != nil {
		return serviceError(c, err)
	}

	return response.Success(c, request)
}

// List handles GET /api/v1/approvals
func (h *ApprovalHandler) List(c *fiber.Ctx) error {
	sc, _, err := h.scopeContext(c)
	if err != nil {
		return serviceError(c, err)
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	institutionID, _ := strconv.ParseUint(c.Query("institution_id", "0"), 10, 32)
	submitterID, _ := strconv.ParseUint(c.Query("submitter_id", "0"), 10, 32)

	requests, total, err := h.approvals.ListRequests(c.Context(), sc, services.ListRequestsOptions{
		Status:        model.ApprovalStatus(c.Query("status")),
		EntityType:    c.Query("entity_type"),
		InstitutionID: uint(institutionID),
		SubmitterID:   uint(submitterID),
		Limit:         limit,
		Offset:        (page - 1) * limit,
	})
	if err != nil {
		return serviceError(c, err)
	}

	return response.Paginated(c, requests, response.CalculatePagination(page, limit, total))
}

// ListPending handles GET /api/v1/approvals/pending. Convenience view of
// requests waiting at any step inside the caller's scope.
func (h *ApprovalHandler) ListPending(c *fiber.Ctx) error {
	sc, _, err := h.scopeContext(c)
	if err != nil {
		return serviceError(c, err)
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	requests, total, err := h.approvals.ListRequests(c.Context(), sc, services.ListRequestsOptions{
		Status: model.StatusPendingApproval,
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		return serviceError(c, err)
	}

	return response.Paginated(c, requests, response.CalculatePagination(page, limit, total))
}
