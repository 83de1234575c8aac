package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tahirov/eduadmin-api/model"
	"gorm.io/gorm"
)

// approverLevelFor maps a chain level (an approver role name) to the
// institution hierarchy level where that approver sits
var approverLevelFor = map[string]int{
	model.RoleSchoolAdmin: model.LevelSchool,
	model.RoleSektorAdmin: model.LevelSector,
	model.RoleRegionAdmin: model.LevelRegion,
}

// DelegationService tracks temporary reassignment of approval authority
// and resolves the rightful approvers for a chain step.
type DelegationService struct {
	db     *gorm.DB
	tree   *TreeService
	scopes *AccessScopeService
}

// NewDelegationService creates a new delegation service
func NewDelegationService(db *gorm.DB, tree *TreeService, scopes *AccessScopeService) *DelegationService {
	return &DelegationService{db: db, tree: tree, scopes: scopes}
}

// CreateDelegationInput is the input for creating a delegation
type CreateDelegationInput struct {
	DelegateID         uint
	ScopeInstitutionID uint
	ValidFrom          time.Time
	ValidUntil         time.Time
}

// CreateDelegation creates a delegation after validating the window, the
// delegator's scope and the absence of cycles in the active delegation
// graph.
func (s *DelegationService) CreateDelegation(ctx context.Context, delegator *model.User, input CreateDelegationInput) (*model.Delegation, error) {
	if !input.ValidFrom.Before(input.ValidUntil) {
		return nil, fmt.Errorf("valid_from must precede valid_until: %w", ErrValidation)
	}
	if input.DelegateID == delegator.ID {
		return nil, fmt.Errorf("cannot delegate to yourself: %w", ErrValidation)
	}

	var delegate model.User
	if err := s.db.WithContext(ctx).First(&delegate, input.DelegateID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("delegate %d: %w", input.DelegateID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load delegate: %w", err)
	}

	scope, err := s.scopes.Resolve(ctx, delegator)
	if err != nil {
		return nil, err
	}
	if !scope.Contains(input.ScopeInstitutionID) {
		return nil, fmt.Errorf("institution %d outside delegator scope: %w", input.ScopeInstitutionID, ErrAccessDenied)
	}

	// Cycle check walks the existing delegation graph from the delegate.
	// Only windows overlapping the new delegation matter.
	var active []model.Delegation
	if err := s.db.WithContext(ctx).
		Where("revoked_at IS NULL").
		Where("valid_from <= ? AND valid_until >= ?", input.ValidUntil, input.ValidFrom).
		Find(&active).Error; err != nil {
		return nil, fmt.Errorf("failed to load active delegations: %w", err)
	}
	if delegationWouldCycle(active, delegator.ID, input.DelegateID) {
		return nil, fmt.Errorf("delegation %d -> %d: %w", delegator.ID, input.DelegateID, ErrDelegationCycle)
	}

	delegation := &model.Delegation{
		DelegatorID:        delegator.ID,
		DelegateID:         input.DelegateID,
		ScopeInstitutionID: input.ScopeInstitutionID,
		ValidFrom:          input.ValidFrom,
		ValidUntil:         input.ValidUntil,
	}
	if err := s.db.WithContext(ctx).Create(delegation).Error; err != nil {
		return nil, fmt.Errorf("failed to create delegation: %w", err)
	}
	return delegation, nil
}

// delegationWouldCycle reports whether adding delegator->delegate closes
// a loop over the given delegations. The candidates must already be
// window-filtered against the new delegation's validity.
func delegationWouldCycle(existing []model.Delegation, delegatorID, delegateID uint) bool {
	// Edges flow authority delegator -> delegate; a cycle exists when the
	// new delegate can already reach the new delegator.
	adjacency := make(map[uint][]uint, len(existing))
	for _, d := range existing {
		adjacency[d.DelegatorID] = append(adjacency[d.DelegatorID], d.DelegateID)
	}

	visited := map[uint]bool{delegateID: true}
	queue := []uint{delegateID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current == delegatorID {
			return true
		}
		for _, next := range adjacency[current] {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

// RevokeDelegation marks a delegation revoked. Only the delegator or a
// superadmin may revoke.
func (s *DelegationService) RevokeDelegation(ctx context.Context, delegationID uint, actor *model.User) error {
	var delegation model.Delegation
	if err := s.db.WithContext(ctx).First(&delegation, delegationID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fmt.Errorf("delegation %d: %w", delegationID, ErrNotFound)
		}
		return fmt.Errorf("failed to load delegation: %w", err)
	}
	if actor.Role != model.RoleSuperAdmin && delegation.DelegatorID != actor.ID {
		return fmt.Errorf("only the delegator may revoke: %w", ErrAccessDenied)
	}
	if delegation.RevokedAt != nil {
		return nil // already revoked, nothing to do
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(&delegation).Update("revoked_at", now).Error; err != nil {
		return fmt.Errorf("failed to revoke delegation: %w", err)
	}
	return nil
}

// ListForUser returns delegations where the user is delegator or
// delegate, newest first
func (s *DelegationService) ListForUser(ctx context.Context, userID uint) ([]model.Delegation, error) {
	var delegations []model.Delegation
	err := s.db.WithContext(ctx).
		Where("delegator_id = ? OR delegate_id = ?", userID, userID).
		Order("created_at DESC").
		Find(&delegations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list delegations: %w", err)
	}
	return delegations, nil
}

// ResolveApprovers returns the user ids allowed to act on the given
// chain level for an institution at a point in time: the nominal role
// holders at the ancestor-or-self institution of that level, plus valid
// delegates whose delegation covers the institution.
func (s *DelegationService) ResolveApprovers(ctx context.Context, level string, institutionID uint, at time.Time) (map[uint]bool, error) {
	tree, err := s.tree.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	hierarchyLevel, ok := approverLevelFor[strings.ToLower(level)]
	if !ok {
		return nil, fmt.Errorf("unknown approver level %q: %w", level, ErrValidation)
	}
	approverInstitution, ok := tree.AncestorAtLevel(institutionID, hierarchyLevel)
	if !ok {
		// No ancestor at the required level: nobody can approve this step
		return map[uint]bool{}, nil
	}

	var nominal []model.User
	if err := s.db.WithContext(ctx).
		Where("role = ? AND institution_id = ?", strings.ToLower(level), approverInstitution).
		Find(&nominal).Error; err != nil {
		return nil, fmt.Errorf("failed to load nominal approvers: %w", err)
	}

	approvers := make(map[uint]bool, len(nominal))
	nominalIDs := make([]uint, 0, len(nominal))
	for _, u := range nominal {
		approvers[u.ID] = true
		nominalIDs = append(nominalIDs, u.ID)
	}
	if len(nominalIDs) == 0 {
		return approvers, nil
	}

	// Delegations transfer a nominal approver's authority when their
	// scope institution is an ancestor-or-self of the entity's one.
	var delegations []model.Delegation
	if err := s.db.WithContext(ctx).
		Where("delegator_id IN ?", nominalIDs).
		Where("revoked_at IS NULL OR revoked_at > ?", at).
		Where("valid_from <= ? AND valid_until >= ?", at, at).
		Find(&delegations).Error; err != nil {
		return nil, fmt.Errorf("failed to load delegations: %w", err)
	}
	for _, d := range delegations {
		if tree.IsAncestorOrSelf(d.ScopeInstitutionID, institutionID) {
			approvers[d.DelegateID] = true
		}
	}
	return approvers, nil
}

// IsAuthorizedApprover reports whether the actor may act on the given
// chain level for an institution. Superadmin is always authorized.
func (s *DelegationService) IsAuthorizedApprover(ctx context.Context, actor *model.User, level string, institutionID uint, at time.Time) (bool, error) {
	if actor.Role == model.RoleSuperAdmin {
		return true, nil
	}
	approvers, err := s.ResolveApprovers(ctx, level, institutionID, at)
	if err != nil {
		return false, err
	}
	return approvers[actor.ID], nil
}

// PurgeExpired hard-deletes delegations whose validity ended more than
// the retention period ago. Called from the maintenance cron.
func (s *DelegationService) PurgeExpired(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	result := s.db.WithContext(ctx).
		Unscoped().
		Where("valid_until < ?", cutoff).
		Delete(&model.Delegation{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge expired delegations: %w", result.Error)
	}
	return result.RowsAffected, nil
}
