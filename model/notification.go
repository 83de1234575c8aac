package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// NotificationType represents the kind of approval event being reported
type NotificationType string

const (
	NotificationApprovalRequired NotificationType = "approval_required"
	NotificationRequestApproved  NotificationType = "request_approved"
	NotificationRequestRejected  NotificationType = "request_rejected"
	NotificationRevisionRequired NotificationType = "revision_required"
)

// UserNotification represents an in-app notification for a user
type UserNotification struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	DeletedAt gorm.DeletedAt   `gorm:"index" json:"-"`
	UserID    uint             `gorm:"index;not null" json:"user_id"`
	RequestID *uint            `gorm:"index" json:"request_id,omitempty"`
	Type      NotificationType `gorm:"type:varchar(30);not null" json:"type"`
	Title     string           `gorm:"type:varchar(255);not null" json:"title"`
	Message   string           `gorm:"type:text" json:"message"`
	Read      bool             `gorm:"default:false" json:"read"`
	Metadata  datatypes.JSON   `gorm:"type:jsonb" json:"metadata,omitempty"`

	// Relationships
	User    User             `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Request *ApprovalRequest `gorm:"foreignKey:RequestID;constraint:OnDelete:SET NULL" json:"request,omitempty"`
}

// TableName specifies the table name for UserNotification
func (UserNotification) TableName() string {
	return "user_notifications"
}
