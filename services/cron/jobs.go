package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/tahirov/eduadmin-api/model"
	"github.com/tahirov/eduadmin-api/services"
)

// delegationRetention is how long an expired delegation stays queryable
// before the purge job removes it
const delegationRetention = 90 * 24 * time.Hour

// staleApprovalAge marks a pending request as stale once it has waited
// this long since submission
const staleApprovalAge = 14 * 24 * time.Hour

// RefreshInstitutionTree reloads the tree snapshot. Runs hourly as a
// backstop; administrative tree changes should trigger it directly.
func (m *CronManager) RefreshInstitutionTree() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	jobName := "refresh_institution_tree"
	if err := m.scopes.InvalidateTree(ctx); err != nil {
		m.logJobError(jobName, fmt.Errorf("failed to refresh tree: %w", err))
		return
	}
	m.logJobComplete(jobName, "Institution tree refreshed")
}

// PurgeExpiredDelegations removes delegations whose validity ended more
// than the retention period ago
func (m *CronManager) PurgeExpiredDelegations() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	jobName := "purge_expired_delegations"
	purged, err := m.delegations.PurgeExpired(ctx, delegationRetention)
	if err != nil {
		m.logJobError(jobName, err)
		return
	}
	m.logJobComplete(jobName, fmt.Sprintf("Purged %d expired delegations", purged))
}

// EscalateStaleApprovals re-notifies the current approvers of every
// request that has been pending longer than the stale threshold
func (m *CronManager) EscalateStaleApprovals() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	jobName := "escalate_stale_approvals"
	cutoff := time.Now().Add(-staleApprovalAge)

	query := m.db.WithContext(ctx).
		Model(&model.ApprovalRequest{}).
		Where("status = ? AND submitted_at < ?", model.StatusPendingApproval, cutoff)
	query = m.filter.Apply(ctx, query, services.SystemScope(), "institution_id", "approval_requests")

	var stale []model.ApprovalRequest
	err := query.Find(&stale).Error
	if err != nil {
		m.logJobError(jobName, fmt.Errorf("failed to query stale requests: %w", err))
		return
	}

	for i := range stale {
		m.notifications.NotifyApprovers(ctx, &stale[i])
	}
	m.logJobComplete(jobName, fmt.Sprintf("Escalated %d stale approvals", len(stale)))
}

// CleanupTokenBlacklist drops blacklist entries whose tokens have
// expired anyway
func (m *CronManager) CleanupTokenBlacklist() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	jobName := "cleanup_token_blacklist"
	result := m.db.WithContext(ctx).
		Unscoped().
		Where("expires_at < ?", time.Now()).
		Delete(&model.JWTTokenBlacklist{})
	if result.Error != nil {
		m.logJobError(jobName, fmt.Errorf("failed to clean blacklist: %w", result.Error))
		return
	}
	m.logJobComplete(jobName, fmt.Sprintf("Removed %d expired blacklist entries", result.RowsAffected))
}
