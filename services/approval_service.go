package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tahirov/eduadmin-api/model"
	"gorm.io/gorm"
)

// DefaultChains holds the ordered approver levels per entity type, used
// when a draft is created without an explicit chain
var DefaultChains = map[string][]string{
	model.EntitySurveyResponse: {model.RoleSchoolAdmin, model.RoleSektorAdmin, model.RoleRegionAdmin},
	model.EntityTask:           {model.RoleSektorAdmin, model.RoleRegionAdmin},
	model.EntityDocumentShare:  {model.RoleSchoolAdmin, model.RoleSektorAdmin},
	model.EntityEvent:          {model.RoleSchoolAdmin, model.RoleSektorAdmin, model.RoleRegionAdmin},
}

// activeStatuses are the statuses during which an entity is considered
// to hold its single allowed active request
var activeStatuses = []model.ApprovalStatus{
	model.StatusDraft,
	model.StatusPendingApproval,
	model.StatusReturnedForRevision,
}

// canTransition is the transition table of the workflow state machine.
// Everything not listed is an invalid transition.
func canTransition(from model.ApprovalStatus, action model.ApprovalActionType) bool {
	switch action {
	case model.ActionSubmit:
		return from == model.StatusDraft || from == model.StatusReturnedForRevision
	case model.ActionApprove, model.ActionReject, model.ActionReturnForRevision:
		return from == model.StatusPendingApproval
	case model.ActionArchive:
		return from == model.StatusApproved
	default:
		return false
	}
}

// targetStatus returns the terminal-or-resting status an action drives
// toward, used by bulk idempotency checks. Approve lands on approved
// only once the chain is exhausted.
func targetStatus(action model.ApprovalActionType) model.ApprovalStatus {
	switch action {
	case model.ActionApprove:
		return model.StatusApproved
	case model.ActionReject:
		return model.StatusRejected
	case model.ActionReturnForRevision:
		return model.StatusReturnedForRevision
	case model.ActionSubmit:
		return model.StatusPendingApproval
	case model.ActionArchive:
		return model.StatusArchived
	default:
		return ""
	}
}

// ApprovalService is the workflow engine moving approvable entities
// through their hierarchical sign-off chains
type ApprovalService struct {
	db            *gorm.DB
	filter        *ScopeFilter
	scopes        *AccessScopeService
	delegations   *DelegationService
	notifications *NotificationService
}

// NewApprovalService creates a new approval service
func NewApprovalService(db *gorm.DB, filter *ScopeFilter, scopes *AccessScopeService, delegations *DelegationService, notifications *NotificationService) *ApprovalService {
	return &ApprovalService{
		db:            db,
		filter:        filter,
		scopes:        scopes,
		delegations:   delegations,
		notifications: notifications,
	}
}

// CreateRequestInput is the input for creating a draft approval request
type CreateRequestInput struct {
	EntityType    string
	EntityID      uint
	InstitutionID uint
	Title         string
	Chain         []string // optional; defaults per entity type
}

// CreateDraft registers an approvable entity with the workflow engine in
// draft state. An entity may only have one active request at a time.
func (s *ApprovalService) CreateDraft(ctx context.Context, actor *model.User, input CreateRequestInput) (*model.ApprovalRequest, error) {
	chain := input.Chain
	if len(chain) == 0 {
		chain = DefaultChains[input.EntityType]
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("no approval chain for entity type %q: %w", input.EntityType, ErrValidation)
	}
	for _, level := range chain {
		if _, ok := approverLevelFor[strings.ToLower(level)]; !ok {
			return nil, fmt.Errorf("unknown chain level %q: %w", level, ErrValidation)
		}
	}

	scope, err := s.scopes.Resolve(ctx, actor)
	if err != nil {
		return nil, err
	}
	if !scope.Contains(input.InstitutionID) {
		return nil, fmt.Errorf("institution %d outside actor scope: %w", input.InstitutionID, ErrAccessDenied)
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&model.ApprovalRequest{}).
		Where("entity_type = ? AND entity_id = ?", input.EntityType, input.EntityID).
		Where("status IN ?", activeStatuses).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check for active requests: %w", err)
	}
	if count > 0 {
		return nil, fmt.Errorf("entity %s/%d already has an active approval request: %w", input.EntityType, input.EntityID, ErrValidation)
	}

	request := &model.ApprovalRequest{
		EntityType:    input.EntityType,
		EntityID:      input.EntityID,
		InstitutionID: input.InstitutionID,
		SubmitterID:   actor.ID,
		Title:         input.Title,
		Chain:         chain,
		Status:        model.StatusDraft,
		Version:       1,
	}
	if err := s.db.WithContext(ctx).Create(request).Error; err != nil {
		return nil, fmt.Errorf("failed to create approval request: %w", err)
	}
	return request, nil
}

// Submit moves a draft or returned request into the approval chain,
// resetting progress to the first step
func (s *ApprovalService) Submit(ctx context.Context, requestID uint, actor *model.User, comments string) (*model.ApprovalRequest, error) {
	return s.apply(ctx, requestID, model.ActionSubmit, actor, comments, "")
}

// Approve records the current step's approval and advances the chain;
// approving the last step finalizes the request
func (s *ApprovalService) Approve(ctx context.Context, requestID uint, actor *model.User, comments string) (*model.ApprovalRequest, error) {
	return s.apply(ctx, requestID, model.ActionApprove, actor, comments, "")
}

// Reject terminates the chain. Comments are mandatory.
func (s *ApprovalService) Reject(ctx context.Context, requestID uint, actor *model.User, comments string) (*model.ApprovalRequest, error) {
	return s.apply(ctx, requestID, model.ActionReject, actor, comments, "")
}

// ReturnForRevision sends the request back to the submitter for edits.
// Comments are mandatory.
func (s *ApprovalService) ReturnForRevision(ctx context.Context, requestID uint, actor *model.User, comments string) (*model.ApprovalRequest, error) {
	return s.apply(ctx, requestID, model.ActionReturnForRevision, actor, comments, "")
}

// Archive moves an approved request to its terminal archived state.
// Requests are never hard-deleted; the audit trail must stay intact.
func (s *ApprovalService) Archive(ctx context.Context, requestID uint, actor *model.User) (*model.ApprovalRequest, error) {
	return s.apply(ctx, requestID, model.ActionArchive, actor, "", "")
}

// apply runs one workflow action: authorization, transition validation,
// version-checked status update and transition record, all atomic per
// request. bulkOpID correlates transitions that belong to one bulk call.
func (s *ApprovalService) apply(ctx context.Context, requestID uint, action model.ApprovalActionType, actor *model.User, comments, bulkOpID string) (*model.ApprovalRequest, error) {
	if action == model.ActionReject || action == model.ActionReturnForRevision {
		if strings.TrimSpace(comments) == "" {
			return nil, fmt.Errorf("comments are mandatory for %s: %w", action, ErrValidation)
		}
	}

	var request model.ApprovalRequest
	if err := s.db.WithContext(ctx).First(&request, requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("approval request %d: %w", requestID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load approval request: %w", err)
	}

	if err := s.authorize(ctx, &request, action, actor); err != nil {
		return nil, err
	}

	if !canTransition(request.Status, action) {
		return nil, fmt.Errorf("%s not allowed from status %s: %w", action, request.Status, ErrInvalidTransition)
	}

	now := time.Now()
	fromStatus := request.Status
	actedStep := request.CurrentStep
	toStatus := targetStatus(action)
	newStep := request.CurrentStep

	switch action {
	case model.ActionSubmit:
		newStep = 0
	case model.ActionApprove:
		newStep = request.CurrentStep + 1
		if newStep < len(request.Chain) {
			toStatus = model.StatusPendingApproval
		}
	case model.ActionReturnForRevision:
		newStep = 0
	}

	updates := map[string]interface{}{
		"status":       toStatus,
		"current_step": newStep,
		"version":      request.Version + 1,
		"updated_at":   now,
	}
	if action == model.ActionSubmit {
		updates["submitted_at"] = now
	}
	if toStatus == model.StatusApproved || toStatus == model.StatusRejected {
		updates["completed_at"] = now
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.ApprovalRequest{}).
			Where("id = ? AND version = ?", request.ID, request.Version).
			Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("failed to update approval request: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("approval request %d at version %d: %w", request.ID, request.Version, ErrConcurrentModification)
		}

		transition := model.ApprovalTransition{
			RequestID:          request.ID,
			Action:             action,
			FromStatus:         fromStatus,
			ToStatus:           toStatus,
			StepIndex:          actedStep,
			ActorID:            actor.ID,
			ActedInstitutionID: actor.HomeInstitutionID(),
			Comments:           comments,
			BulkOperationID:    bulkOpID,
		}
		if err := tx.Create(&transition).Error; err != nil {
			return fmt.Errorf("failed to record transition: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	request.Status = toStatus
	request.CurrentStep = newStep
	request.Version++
	if action == model.ActionSubmit {
		request.SubmittedAt = &now
	}
	if toStatus == model.StatusApproved || toStatus == model.StatusRejected {
		request.CompletedAt = &now
	}

	s.notify(ctx, &request, action, comments)
	return &request, nil
}

// authorize checks the actor against the action: submit-class actions
// need the entity's institution inside the actor's scope, decision
// actions need the actor to be a rightful approver for the current step.
func (s *ApprovalService) authorize(ctx context.Context, request *model.ApprovalRequest, action model.ApprovalActionType, actor *model.User) error {
	switch action {
	case model.ActionSubmit, model.ActionArchive:
		scope, err := s.scopes.Resolve(ctx, actor)
		if err != nil {
			return err
		}
		if !scope.Contains(request.InstitutionID) {
			return fmt.Errorf("institution %d outside actor scope: %w", request.InstitutionID, ErrAccessDenied)
		}
		return nil
	case model.ActionApprove, model.ActionReject, model.ActionReturnForRevision:
		level := request.CurrentLevel()
		if level == "" {
			// Not pending or chain exhausted; let transition validation
			// produce the precise error
			return nil
		}
		authorized, err := s.delegations.IsAuthorizedApprover(ctx, actor, level, request.InstitutionID, time.Now())
		if err != nil {
			return err
		}
		if !authorized {
			return fmt.Errorf("user %d cannot approve at level %s: %w", actor.ID, level, ErrNotAuthorizedApprover)
		}
		return nil
	default:
		return fmt.Errorf("unknown action %q: %w", action, ErrValidation)
	}
}

func (s *ApprovalService) notify(ctx context.Context, request *model.ApprovalRequest, action model.ApprovalActionType, comments string) {
	switch action {
	case model.ActionSubmit:
		s.notifications.NotifyApprovers(ctx, request)
	case model.ActionApprove:
		if request.Status == model.StatusApproved {
			s.notifications.NotifySubmitter(ctx, request, model.NotificationRequestApproved, comments)
		} else {
			s.notifications.NotifyApprovers(ctx, request)
		}
	case model.ActionReject:
		s.notifications.NotifySubmitter(ctx, request, model.NotificationRequestRejected, comments)
	case model.ActionReturnForRevision:
		s.notifications.NotifySubmitter(ctx, request, model.NotificationRevisionRequired, comments)
	}
}

// GetRequest returns a request visible to the scope context. Requests
// outside the scope read as not found.
func (s *ApprovalService) GetRequest(ctx context.Context, requestID uint, sc *ScopeContext) (*model.ApprovalRequest, error) {
	query := s.db.WithContext(ctx).Preload("Institution").Preload("Submitter")
	query = s.filter.Apply(ctx, query, sc, "institution_id", "approval_requests")

	var request model.ApprovalRequest
	if err := query.First(&request, requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("approval request %d: %w", requestID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load approval request: %w", err)
	}
	return &request, nil
}

// ListRequestsOptions filters request listings
type ListRequestsOptions struct {
	Status        model.ApprovalStatus
	EntityType    string
	InstitutionID uint
	SubmitterID   uint
	Limit         int
	Offset        int
}

// ListRequests returns scope-filtered approval requests, newest first
func (s *ApprovalService) ListRequests(ctx context.Context, sc *ScopeContext, opts ListRequestsOptions) ([]model.ApprovalRequest, int64, error) {
	query := s.db.WithContext(ctx).Model(&model.ApprovalRequest{})
	query = s.filter.Apply(ctx, query, sc, "institution_id", "approval_requests")

	if opts.Status != "" {
		query = query.Where("status = ?", opts.Status)
	}
	if opts.EntityType != "" {
		query = query.Where("entity_type = ?", opts.EntityType)
	}
	if opts.InstitutionID != 0 {
		query = query.Where("institution_id = ?", opts.InstitutionID)
	}
	if opts.SubmitterID != 0 {
		query = query.Where("submitter_id = ?", opts.SubmitterID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count approval requests: %w", err)
	}

	var requests []model.ApprovalRequest
	if err := query.Order("created_at DESC").Limit(opts.Limit).Offset(opts.Offset).Find(&requests).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list approval requests: %w", err)
	}
	return requests, total, nil
}
