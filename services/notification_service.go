package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/tahirov/eduadmin-api/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// NotificationService creates and lists in-app approval notifications.
// Delivery channels (email, push) are outside this core.
type NotificationService struct {
	db          *gorm.DB
	delegations *DelegationService
}

// NewNotificationService creates a new notification service
func NewNotificationService(db *gorm.DB, delegations *DelegationService) *NotificationService {
	return &NotificationService{db: db, delegations: delegations}
}

// NotifyApprovers notifies everyone who can act on the request's current
// chain step. Notification failures are logged, never propagated: a
// missed notification must not roll back a transition.
func (s *NotificationService) NotifyApprovers(ctx context.Context, request *model.ApprovalRequest) {
	level := request.CurrentLevel()
	if level == "" {
		return
	}
	approvers, err := s.delegations.ResolveApprovers(ctx, level, request.InstitutionID, time.Now())
	if err != nil {
		log.Printf("Failed to resolve approvers for request %d: %v", request.ID, err)
		return
	}
	metadata, _ := json.Marshal(map[string]interface{}{
		"entity_type": request.EntityType,
		"entity_id":   request.EntityID,
		"step":        request.CurrentStep,
	})
	for userID := range approvers {
		notification := model.UserNotification{
			UserID:    userID,
			RequestID: &request.ID,
			Type:      model.NotificationApprovalRequired,
			Title:     fmt.Sprintf("Approval required: %s", request.Title),
			Message:   fmt.Sprintf("A %s is waiting for your approval.", request.EntityType),
			Metadata:  datatypes.JSON(metadata),
		}
		if err := s.db.WithContext(ctx).Create(&notification).Error; err != nil {
			log.Printf("Failed to notify user %d for request %d: %v", userID, request.ID, err)
		}
	}
}

// NotifySubmitter tells the submitter about a decision on their request
func (s *NotificationService) NotifySubmitter(ctx context.Context, request *model.ApprovalRequest, notificationType model.NotificationType, comments string) {
	var title, message string
	switch notificationType {
	case model.NotificationRequestApproved:
		title = fmt.Sprintf("Request approved: %s", request.Title)
		message = "Your request passed every approval level."
	case model.NotificationRequestRejected:
		title = fmt.Sprintf("Request rejected: %s", request.Title)
		message = fmt.Sprintf("Your request was rejected. Reason: %s", comments)
	case model.NotificationRevisionRequired:
		title = fmt.Sprintf("Revision required: %s", request.Title)
		message = fmt.Sprintf("Your request needs changes. Notes: %s", comments)
	default:
		return
	}

	notification := model.UserNotification{
		UserID:    request.SubmitterID,
		RequestID: &request.ID,
		Type:      notificationType,
		Title:     title,
		Message:   message,
	}
	if err := s.db.WithContext(ctx).Create(&notification).Error; err != nil {
		log.Printf("Failed to notify submitter %d for request %d: %v", request.SubmitterID, request.ID, err)
	}
}

// ListForUser returns a user's notifications, newest first
func (s *NotificationService) ListForUser(ctx context.Context, userID uint, unreadOnly bool, limit, offset int) ([]model.UserNotification, int64, error) {
	query := s.db.WithContext(ctx).Model(&model.UserNotification{}).Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("read = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	var notifications []model.UserNotification
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&notifications).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, total, nil
}

// MarkRead marks one of the user's notifications as read
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID uint) error {
	result := s.db.WithContext(ctx).Model(&model.UserNotification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Update("read", true)
	if result.Error != nil {
		return fmt.Errorf("failed to mark notification read: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("notification %d: %w", notificationID, ErrNotFound)
	}
	return nil
}
