package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/tahirov/eduadmin-api/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ScopeContext carries the acting user and their resolved scope through
// a request. Core operations take it explicitly; there is no ambient
// current-user state. System mode and bypass are deliberate, named
// constructors so a missing user can never silently widen a query.
type ScopeContext struct {
	Actor  *model.User
	Scope  ScopeResult
	system bool

	bypass       bool
	bypassReason string
}

// NewScopeContext builds a scope context for an authenticated actor
func NewScopeContext(actor *model.User, scope ScopeResult) *ScopeContext {
	return &ScopeContext{Actor: actor, Scope: scope}
}

// SystemScope returns the system-trust context used by background jobs
// and other unauthenticated internal callers. Isolation is skipped
// entirely; callers must state this intent explicitly.
func SystemScope() *ScopeContext {
	return &ScopeContext{system: true, Scope: ScopeResult{Unrestricted: true}}
}

// WithBypass returns a copy of the context that skips isolation for
// privileged internal code. Every use is written to the audit trail.
func (sc *ScopeContext) WithBypass(reason string) *ScopeContext {
	clone := *sc
	clone.bypass = true
	clone.bypassReason = reason
	return &clone
}

// IsSystem reports whether this is the system-trust context
func (sc *ScopeContext) IsSystem() bool {
	return sc.system
}

// ActorID returns the acting user's id, or 0 for the system context
func (sc *ScopeContext) ActorID() uint {
	if sc.Actor == nil {
		return 0
	}
	return sc.Actor.ID
}

// ScopeFilter restricts every query over scoped entities to the caller's
// access scope. It is the single enforcement point for hierarchical data
// isolation: all repository reads of scoped tables go through Apply, and
// a defect here leaks cross-institution data. Never reimplement this
// per call site.
type ScopeFilter struct {
	db *gorm.DB
}

// NewScopeFilter creates a new scope filter
func NewScopeFilter(db *gorm.DB) *ScopeFilter {
	return &ScopeFilter{db: db}
}

// Apply intersects the query with the caller's scope on the given
// institution column. Ordinary reads filter silently: a forbidden row
// simply does not appear. Mutating paths must additionally check
// membership and error explicitly.
func (f *ScopeFilter) Apply(ctx context.Context, query *gorm.DB, sc *ScopeContext, column, resource string) *gorm.DB {
	if sc.IsSystem() {
		return query
	}
	if sc.bypass {
		f.logBypass(ctx, sc, resource)
		return query
	}
	if sc.Scope.Unrestricted {
		return query
	}
	if sc.Scope.IsEmpty() {
		// Deny-all: impossible predicate instead of returning everything
		return query.Where("1 = 0")
	}
	return query.Where(fmt.Sprintf("%s IN ?", column), sc.Scope.InstitutionIDs)
}

// logBypass records a privileged isolation bypass. The audit write must
// not fail the bypassed query, but it is never skipped silently.
func (f *ScopeFilter) logBypass(ctx context.Context, sc *ScopeContext, resource string) {
	metadata, _ := json.Marshal(map[string]interface{}{
		"unrestricted": sc.Scope.Unrestricted,
		"scope_size":   len(sc.Scope.InstitutionIDs),
	})

	entry := model.ScopeBypassLog{
		UserID:   sc.ActorID(),
		Resource: resource,
		Reason:   sc.bypassReason,
		Metadata: datatypes.JSON(metadata),
	}
	if err := f.db.WithContext(ctx).Create(&entry).Error; err != nil {
		log.Printf("ALERT: failed to record scope bypass by user %d on %s: %v", sc.ActorID(), resource, err)
	}
}
