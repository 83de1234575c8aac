package model

import (
	"time"

	"gorm.io/datatypes"
)

// ScopeBypassLog records every privileged bypass of the query isolation
// filter. Append-only; rows identify the caller and the stated reason.
type ScopeBypassLog struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UserID    uint           `gorm:"not null;index" json:"user_id"`
	Resource  string         `gorm:"type:varchar(100);not null" json:"resource"` // e.g. "approval_requests", "institutions"
	Reason    string         `gorm:"type:text;not null" json:"reason"`
	Metadata  datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty"`

	// Relationships
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// TableName specifies the table name for ScopeBypassLog
func (ScopeBypassLog) TableName() string {
	return "scope_bypass_logs"
}
