package model

import (
	"time"

	"gorm.io/gorm"
)

// Delegation is a temporary, revocable reassignment of approval
// authority over an institution subtree. A delegation at the sector
// level covers every institution inside that sector for its window.
type Delegation struct {
	ID                 uint           `gorm:"primaryKey" json:"id"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`
	DelegatorID        uint           `gorm:"not null;index" json:"delegator_id"`
	DelegateID         uint           `gorm:"not null;index" json:"delegate_id"`
	ScopeInstitutionID uint           `gorm:"not null;index" json:"scope_institution_id"` // Subtree root the delegation applies to
	ValidFrom          time.Time      `gorm:"not null" json:"valid_from"`
	ValidUntil         time.Time      `gorm:"not null" json:"valid_until"`
	RevokedAt          *time.Time     `json:"revoked_at"`

	// Relationships
	Delegator        User        `gorm:"foreignKey:DelegatorID" json:"delegator,omitempty"`
	Delegate         User        `gorm:"foreignKey:DelegateID" json:"delegate,omitempty"`
	ScopeInstitution Institution `gorm:"foreignKey:ScopeInstitutionID" json:"scope_institution,omitempty"`
}

// TableName specifies the table name for Delegation
func (Delegation) TableName() string {
	return "delegations"
}

// ActiveAt reports whether the delegation is in force at the given time
func (d *Delegation) ActiveAt(t time.Time) bool {
	if d.RevokedAt != nil && !d.RevokedAt.After(t) {
		return false
	}
	return !t.Before(d.ValidFrom) && !t.After(d.ValidUntil)
}

// Overlaps reports whether two validity windows intersect, ignoring
// revocation (used by cycle detection on not-yet-revoked delegations)
func (d *Delegation) Overlaps(from, until time.Time) bool {
	return !d.ValidFrom.After(until) && !from.After(d.ValidUntil)
}
