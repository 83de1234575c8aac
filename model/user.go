package model

import (
	"time"

	"gorm.io/gorm"
)

// User roles. Every role except superadmin is scoped to the subtree of
// the user's home institution.
const (
	RoleSuperAdmin     = "superadmin"
	RoleRegionAdmin    = "regionadmin"
	RoleRegionOperator = "regionoperator"
	RoleSektorAdmin    = "sektoradmin"
	RoleSchoolAdmin    = "schooladmin"
	RoleTeacher        = "teacher"
)

// User represents a registered user in the system
type User struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
	Email         string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash  string         `gorm:"not null" json:"-"` // Never expose password in JSON
	Name          string         `gorm:"not null" json:"name"`
	Role          string         `gorm:"type:varchar(30);not null;default:'teacher'" json:"role"`
	InstitutionID *uint          `gorm:"index" json:"institution_id"` // Home institution; nil only for superadmin
	TokenVersion  int            `gorm:"default:0" json:"-"`          // Increment to invalidate all user tokens

	// Relationships
	Institution    *Institution        `gorm:"foreignKey:InstitutionID" json:"institution,omitempty"`
	Notifications  []UserNotification  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	TokenBlacklist []JWTTokenBlacklist `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "users"
}

// HomeInstitutionID returns the home institution id or 0 when unset
func (u *User) HomeInstitutionID() uint {
	if u.InstitutionID == nil {
		return 0
	}
	return *u.InstitutionID
}
