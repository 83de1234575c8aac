package services

import (
	"context"
	"fmt"

	"github.com/tahirov/eduadmin-api/model"
	"gorm.io/gorm"
)

// AuditService is the read side of the audit trail: workflow transitions
// and isolation bypass events. Both tables are append-only; this service
// exposes no update or delete.
type AuditService struct {
	db     *gorm.DB
	filter *ScopeFilter
}

// NewAuditService creates a new audit service
func NewAuditService(db *gorm.DB, filter *ScopeFilter) *AuditService {
	return &AuditService{db: db, filter: filter}
}

// GetTrail returns the transition history of a request, oldest first.
// Access follows the caller's scope: a request outside it reads as not
// found, with the usual superadmin exception.
func (s *AuditService) GetTrail(ctx context.Context, requestID uint, sc *ScopeContext) ([]model.ApprovalTransition, error) {
	scopedRequest := s.db.WithContext(ctx).Model(&model.ApprovalRequest{})
	scopedRequest = s.filter.Apply(ctx, scopedRequest, sc, "institution_id", "approval_requests")

	var count int64
	if err := scopedRequest.Where("id = ?", requestID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check request visibility: %w", err)
	}
	if count == 0 {
		return nil, fmt.Errorf("approval request %d: %w", requestID, ErrNotFound)
	}

	var transitions []model.ApprovalTransition
	if err := s.db.WithContext(ctx).
		Preload("Actor").
		Where("request_id = ?", requestID).
		Order("created_at ASC, id ASC").
		Find(&transitions).Error; err != nil {
		return nil, fmt.Errorf("failed to load transitions: %w", err)
	}
	return transitions, nil
}

// ListBypassEvents returns isolation bypass records, newest first.
// Superadmin only.
func (s *AuditService) ListBypassEvents(ctx context.Context, sc *ScopeContext, limit, offset int) ([]model.ScopeBypassLog, int64, error) {
	if !sc.IsSystem() && (sc.Actor == nil || sc.Actor.Role != model.RoleSuperAdmin) {
		return nil, 0, fmt.Errorf("bypass log is superadmin only: %w", ErrAccessDenied)
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&model.ScopeBypassLog{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bypass events: %w", err)
	}

	var events []model.ScopeBypassLog
	if err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&events).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list bypass events: %w", err)
	}
	return events, total, nil
}

// ActorHistory returns the transitions a user performed, newest first.
// Superadmin only. The report crosses institution scopes, so the read
// goes through the isolation filter in bypass mode and every call lands
// in the bypass log.
func (s *AuditService) ActorHistory(ctx context.Context, actorID uint, sc *ScopeContext, limit, offset int) ([]model.ApprovalTransition, int64, error) {
	if !sc.IsSystem() && (sc.Actor == nil || sc.Actor.Role != model.RoleSuperAdmin) {
		return nil, 0, fmt.Errorf("actor history is superadmin only: %w", ErrAccessDenied)
	}

	query := s.db.WithContext(ctx).
		Model(&model.ApprovalTransition{}).
		Joins("JOIN approval_requests ON approval_requests.id = approval_transitions.request_id").
		Where("approval_transitions.actor_id = ?", actorID)
	query = s.filter.Apply(ctx, query, sc.WithBypass("cross-scope actor history report"), "approval_requests.institution_id", "approval_transitions")

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count transitions: %w", err)
	}

	var transitions []model.ApprovalTransition
	if err := query.Order("approval_transitions.created_at DESC").Limit(limit).Offset(offset).Find(&transitions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to load transitions: %w", err)
	}
	return transitions, total, nil
}
