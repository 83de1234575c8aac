package institution

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/tahirov/eduadmin-api/model"
	"github.com/tahirov/eduadmin-api/services"
	"github.com/tahirov/eduadmin-api/utils/middleware"
	"github.com/tahirov/eduadmin-api/utils/response"
	"gorm.io/gorm"
)

// InstitutionHandler handles institution hierarchy endpoints
type InstitutionHandler struct {
	db     *gorm.DB
	tree   *services.TreeService
	scopes *services.AccessScopeService
	filter *services.ScopeFilter
}

// NewInstitutionHandler creates a new institution handler
func NewInstitutionHandler(db *gorm.DB, tree *services.TreeService, scopes *services.AccessScopeService, filter *services.ScopeFilter) *InstitutionHandler {
	return &InstitutionHandler{db: db, tree: tree, scopes: scopes, filter: filter}
}

// List handles GET /api/v1/institutions. Returns only institutions
// inside the caller's access scope.
func (h *InstitutionHandler) List(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	scope, err := h.scopes.Resolve(c.Context(), user)
	if err != nil {
		if errors.Is(err, services.ErrUnresolvableScope) {
			return response.Forbidden(c, "Account has no resolvable institution scope")
		}
		return response.InternalServerError(c, "Failed to resolve access scope")
	}
	sc := services.NewScopeContext(user, scope)

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	query := h.db.WithContext(c.Context()).Model(&model.Institution{})
	query = h.filter.Apply(c.Context(), query, sc, "id", "institutions")

	if institutionType := c.Query("type"); institutionType != "" {
		query = query.Where("type = ?", institutionType)
	}
	if level, err := strconv.Atoi(c.Query("level", "0")); err == nil && level > 0 {
		query = query.Where("level = ?", level)
	}
	if c.Query("active_only") == "true" {
		query = query.Where("is_active = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count institutions")
	}

	var institutions []model.Institution
	if err := query.Order("level ASC, name ASC").
		Limit(limit).Offset((page - 1) * limit).
		Find(&institutions).Error; err != nil {
		return response.InternalServerError(c, "Failed to list institutions")
	}

	return response.Paginated(c, institutions, response.CalculatePagination(page, limit, total))
}

// Subtree handles GET /api/v1/institutions/:id/subtree. Returns the
// institution and all descendants, provided the root is in scope.
func (h *InstitutionHandler) Subtree(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	rootID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid institution ID")
	}

	scope, err := h.scopes.Resolve(c.Context(), user)
	if err != nil {
		if errors.Is(err, services.ErrUnresolvableScope) {
			return response.Forbidden(c, "Account has no resolvable institution scope")
		}
		return response.InternalServerError(c, "Failed to resolve access scope")
	}
	if !scope.Contains(uint(rootID)) {
		return response.NotFound(c, "Institution not found")
	}

	snapshot, err := h.tree.Snapshot(c.Context())
	if err != nil {
		return response.InternalServerError(c, "Failed to load institution tree")
	}

	ids := snapshot.Subtree(uint(rootID))
	if len(ids) == 0 {
		return response.NotFound(c, "Institution not found")
	}

	nodes := make([]fiber.Map, 0, len(ids))
	for _, id := range ids {
		node, ok := snapshot.Node(id)
		if !ok {
			continue
		}
		nodes = append(nodes, fiber.Map{
			"id":        node.ID,
			"parent_id": node.ParentID,
			"name":      node.Name,
			"type":      node.Type,
			"level":     node.Level,
			"is_active": node.IsActive,
		})
	}

	return response.Success(c, fiber.Map{
		"root_id": rootID,
		"nodes":   nodes,
	})
}
