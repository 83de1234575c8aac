package model

import (
	"time"

	"gorm.io/gorm"
)

// Institution hierarchy levels. Every non-root institution sits exactly
// one level below its parent.
const (
	LevelMinistry = 1
	LevelRegion   = 2
	LevelSector   = 3
	LevelSchool   = 4
	LevelSubUnit  = 5
)

// Institution represents a node in the organizational tree
// (ministry -> region -> sector -> school -> sub-unit)
type Institution struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	Name      string         `gorm:"type:varchar(255);not null" json:"name"`
	ShortName string         `gorm:"type:varchar(100)" json:"short_name"`
	Type      string         `gorm:"type:varchar(50);not null" json:"type"` // ministry, region_office, sector, school, sub_unit
	ParentID  *uint          `gorm:"index" json:"parent_id"`
	Level     int            `gorm:"not null;index" json:"level"`
	IsActive  bool           `gorm:"default:true" json:"is_active"`

	// Relationships
	Parent   *Institution  `gorm:"foreignKey:ParentID" json:"parent,omitempty"`
	Children []Institution `gorm:"foreignKey:ParentID" json:"children,omitempty"`
	Users    []User        `gorm:"foreignKey:InstitutionID" json:"-"`
}

// TableName specifies the table name for Institution
func (Institution) TableName() string {
	return "institutions"
}

// IsRoot reports whether the institution has no parent
func (i *Institution) IsRoot() bool {
	return i.ParentID == nil
}
