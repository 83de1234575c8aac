package services

import (
	"context"
	"testing"

	"github.com/tahirov/eduadmin-api/model"
	"gorm.io/gorm"
)

func TestScopeContextDefaults(t *testing.T) {
	actor := &model.User{ID: 7, Role: model.RoleSchoolAdmin}
	sc := NewScopeContext(actor, ScopeResult{InstitutionIDs: []uint{1, 2}})

	if sc.IsSystem() {
		t.Error("an actor context must not be the system context")
	}
	if sc.ActorID() != 7 {
		t.Errorf("ActorID() = %d, want 7", sc.ActorID())
	}
}

func TestSystemScope(t *testing.T) {
	sc := SystemScope()

	if !sc.IsSystem() {
		t.Error("SystemScope must report IsSystem")
	}
	if sc.ActorID() != 0 {
		t.Errorf("system context ActorID() = %d, want 0", sc.ActorID())
	}
	if !sc.Scope.Unrestricted {
		t.Error("system context scope must be unrestricted")
	}
}

func TestApplyPassesSystemAndUnrestrictedThrough(t *testing.T) {
	f := NewScopeFilter(nil)
	query := &gorm.DB{}

	if got := f.Apply(context.Background(), query, SystemScope(), "institution_id", "approval_requests"); got != query {
		t.Error("system context must return the query untouched")
	}

	actor := &model.User{ID: 1, Role: model.RoleSuperAdmin}
	sc := NewScopeContext(actor, ScopeResult{Unrestricted: true})
	if got := f.Apply(context.Background(), query, sc, "institution_id", "approval_requests"); got != query {
		t.Error("unrestricted scope must return the query untouched")
	}
}

func TestWithBypassDoesNotMutateOriginal(t *testing.T) {
	actor := &model.User{ID: 3, Role: model.RoleSuperAdmin}
	sc := NewScopeContext(actor, ScopeResult{Unrestricted: true})

	bypassed := sc.WithBypass("cross-scope report")
	if bypassed == sc {
		t.Fatal("WithBypass must return a copy")
	}
	if !bypassed.bypass || bypassed.bypassReason != "cross-scope report" {
		t.Error("bypass copy must carry the flag and reason")
	}
	if sc.bypass {
		t.Error("original context must stay untouched")
	}
	if bypassed.ActorID() != sc.ActorID() {
		t.Error("bypass copy must keep the actor")
	}
}
