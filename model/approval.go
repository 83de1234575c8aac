package model

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// ApprovalStatus represents the lifecycle state of an approval request
type ApprovalStatus string

const (
	StatusDraft               ApprovalStatus = "draft"
	StatusPendingApproval     ApprovalStatus = "pending_approval"
	StatusApproved            ApprovalStatus = "approved"
	StatusRejected            ApprovalStatus = "rejected"
	StatusReturnedForRevision ApprovalStatus = "returned_for_revision"
	StatusArchived            ApprovalStatus = "archived"
)

// IsTerminal reports whether no further chain progress is possible from
// this status. Rejected requests can only come back as a new draft.
func (s ApprovalStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusArchived
}

// ApprovalActionType identifies a workflow operation, used on transition
// records and bulk calls
type ApprovalActionType string

const (
	ActionSubmit            ApprovalActionType = "submit"
	ActionApprove           ApprovalActionType = "approve"
	ActionReject            ApprovalActionType = "reject"
	ActionReturnForRevision ApprovalActionType = "return_for_revision"
	ActionArchive           ApprovalActionType = "archive"
)

// Approvable entity types that can enter the workflow
const (
	EntitySurveyResponse = "survey_response"
	EntityTask           = "task"
	EntityDocumentShare  = "document_share"
	EntityEvent          = "event"
)

// ApprovalRequest tracks one approvable entity through its sign-off
// chain. An entity has at most one non-archived request at a time
// (enforced in the service layer, not by a constraint, because archived
// requests share the same entity reference).
type ApprovalRequest struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
	EntityType    string         `gorm:"type:varchar(50);not null;index:idx_approval_entity" json:"entity_type"`
	EntityID      uint           `gorm:"not null;index:idx_approval_entity" json:"entity_id"`
	InstitutionID uint           `gorm:"not null;index" json:"institution_id"` // Owning institution
	SubmitterID   uint           `gorm:"not null;index" json:"submitter_id"`
	Title         string         `gorm:"type:varchar(255)" json:"title"`
	Chain         pq.StringArray `gorm:"type:text[];not null" json:"chain"` // Ordered approver levels, e.g. {schooladmin,sektoradmin,regionadmin}
	CurrentStep   int            `gorm:"not null;default:0" json:"current_step"`
	Status        ApprovalStatus `gorm:"type:varchar(30);not null;default:'draft';index" json:"status"`
	Version       int            `gorm:"not null;default:1" json:"version"` // Optimistic concurrency token
	SubmittedAt   *time.Time     `json:"submitted_at"`
	CompletedAt   *time.Time     `json:"completed_at"`

	// Relationships
	Institution Institution          `gorm:"foreignKey:InstitutionID" json:"institution,omitempty"`
	Submitter   User                 `gorm:"foreignKey:SubmitterID" json:"submitter,omitempty"`
	Transitions []ApprovalTransition `gorm:"foreignKey:RequestID" json:"transitions,omitempty"`
}

// TableName specifies the table name for ApprovalRequest
func (ApprovalRequest) TableName() string {
	return "approval_requests"
}

// CurrentLevel returns the approver level the request is waiting on, or
// "" when the chain is exhausted or the request is not pending
func (r *ApprovalRequest) CurrentLevel() string {
	if r.Status != StatusPendingApproval {
		return ""
	}
	if r.CurrentStep < 0 || r.CurrentStep >= len(r.Chain) {
		return ""
	}
	return r.Chain[r.CurrentStep]
}

// ApprovalTransition is an immutable record of one workflow transition.
// Rows are append-only; there is no update or delete path.
type ApprovalTransition struct {
	ID                 uint               `gorm:"primaryKey" json:"id"`
	CreatedAt          time.Time          `json:"created_at"`
	RequestID          uint               `gorm:"not null;index" json:"request_id"`
	Action             ApprovalActionType `gorm:"type:varchar(30);not null" json:"action"`
	FromStatus         ApprovalStatus     `gorm:"type:varchar(30);not null" json:"from_status"`
	ToStatus           ApprovalStatus     `gorm:"type:varchar(30);not null" json:"to_status"`
	StepIndex          int                `json:"step_index"`
	ActorID            uint               `gorm:"not null;index" json:"actor_id"`
	ActedInstitutionID uint               `gorm:"not null" json:"acted_institution_id"`
	Comments           string             `gorm:"type:text" json:"comments"`
	BulkOperationID    string             `gorm:"type:varchar(64);index" json:"bulk_operation_id,omitempty"` // Set when part of a bulk call

	// Relationships
	Request ApprovalRequest `gorm:"foreignKey:RequestID" json:"-"`
	Actor   User            `gorm:"foreignKey:ActorID" json:"actor,omitempty"`
}

// TableName specifies the table name for ApprovalTransition
func (ApprovalTransition) TableName() string {
	return "approval_transitions"
}
