package cron

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/tahirov/eduadmin-api/model"
	"github.com/tahirov/eduadmin-api/services"
	"gorm.io/gorm"
)

// CronManager manages all scheduled maintenance jobs. Jobs read scoped
// tables through the isolation filter under the system-trust context,
// never around it.
type CronManager struct {
	cron          *cron.Cron
	db            *gorm.DB
	filter        *services.ScopeFilter
	scopes        *services.AccessScopeService
	delegations   *services.DelegationService
	notifications *services.NotificationService
}

// NewCronManager creates a new cron manager
func NewCronManager(db *gorm.DB, filter *services.ScopeFilter, scopes *services.AccessScopeService, delegations *services.DelegationService, notifications *services.NotificationService) *CronManager {
	// Create cron with seconds precision
	c := cron.New(cron.WithSeconds())

	return &CronManager{
		cron:          c,
		db:            db,
		filter:        filter,
		scopes:        scopes,
		delegations:   delegations,
		notifications: notifications,
	}
}

// Start starts all cron jobs
func (m *CronManager) Start() error {
	log.Println("Starting cron jobs...")

	if err := m.registerJobs(); err != nil {
		return err
	}

	m.cron.Start()

	log.Println("Cron jobs started successfully")
	return nil
}

// Stop stops all cron jobs
func (m *CronManager) Stop() {
	log.Println("Stopping cron jobs...")
	ctx := m.cron.Stop()
	<-ctx.Done()
	log.Println("Cron jobs stopped")
}

// registerJobs registers all cron jobs with their schedules
func (m *CronManager) registerJobs() error {
	// 1. Every hour: refresh the institution tree snapshot. The version
	// bump invalidates cached access scopes after structural changes.
	_, err := m.cron.AddFunc("0 0 * * * *", func() {
		m.logJobStart("refresh_institution_tree")
		m.RefreshInstitutionTree()
	})
	if err != nil {
		return err
	}

	// 2. Daily at 2 AM: purge long-expired delegations
	_, err = m.cron.AddFunc("0 0 2 * * *", func() {
		m.logJobStart("purge_expired_delegations")
		m.PurgeExpiredDelegations()
	})
	if err != nil {
		return err
	}

	// 3. Daily at 3 AM: re-notify approvers of stale pending requests
	_, err = m.cron.AddFunc("0 0 3 * * *", func() {
		m.logJobStart("escalate_stale_approvals")
		m.EscalateStaleApprovals()
	})
	if err != nil {
		return err
	}

	// 4. Daily at 4 AM: drop expired token blacklist entries
	_, err = m.cron.AddFunc("0 0 4 * * *", func() {
		m.logJobStart("cleanup_token_blacklist")
		m.CleanupTokenBlacklist()
	})
	if err != nil {
		return err
	}

	log.Println("All cron jobs registered successfully")
	return nil
}

// logJobStart logs the start of a cron job
func (m *CronManager) logJobStart(jobName string) {
	log.Printf("[CRON] Starting job: %s at %s", jobName, time.Now().Format(time.RFC3339))

	cronLog := model.CronJobLog{
		JobName:   jobName,
		Status:    "running",
		StartedAt: time.Now(),
		Metadata:  "{}",
	}
	m.db.Create(&cronLog)
}

// logJobComplete logs successful completion of a cron job
func (m *CronManager) logJobComplete(jobName string, message string) {
	log.Printf("[CRON] Completed job: %s - %s", jobName, message)

	m.db.Model(&model.CronJobLog{}).
		Where("job_name = ? AND status = ?", jobName, "running").
		Order("started_at DESC").
		Limit(1).
		Updates(map[string]interface{}{
			"status":       "completed",
			"completed_at": time.Now(),
			"message":      message,
		})
}

// logJobError logs a cron job error
func (m *CronManager) logJobError(jobName string, err error) {
	log.Printf("[CRON] Error in job: %s - %v", jobName, err)

	m.db.Model(&model.CronJobLog{}).
		Where("job_name = ? AND status = ?", jobName, "running").
		Order("started_at DESC").
		Limit(1).
		Updates(map[string]interface{}{
			"status":       "failed",
			"completed_at": time.Now(),
			"error_msg":    err.Error(),
		})
}
