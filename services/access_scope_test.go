package services

import (
	"errors"
	"testing"

	"github.com/tahirov/eduadmin-api/model"
)

func TestSuperadminScopeIsUnrestricted(t *testing.T) {
	tree := buildTestTree()
	user := &model.User{ID: 1, Role: model.RoleSuperAdmin}

	scope, err := scopeStrategies[model.RoleSuperAdmin](user, tree)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !scope.Unrestricted {
		t.Error("superadmin scope must be unrestricted")
	}
	if len(scope.InstitutionIDs) != 0 {
		t.Error("unrestricted scope must not enumerate institutions")
	}
	if !scope.Contains(999) {
		t.Error("unrestricted scope must contain any institution")
	}
}

func TestSubtreeScopeCoversHomeAndDescendants(t *testing.T) {
	tree := buildTestTree()
	user := &model.User{ID: 5, Role: model.RoleSektorAdmin, InstitutionID: uintPtr(10)}

	scope, err := subtreeScope(user, tree)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scope.Unrestricted {
		t.Fatal("scoped role must not be unrestricted")
	}
	if len(scope.InstitutionIDs) != 6 {
		t.Errorf("sektoradmin scope has %d institutions, want 6 (sector + 5 schools)", len(scope.InstitutionIDs))
	}
	if !scope.Contains(10) {
		t.Error("scope must contain the home institution")
	}
	if !scope.Contains(103) {
		t.Error("scope must contain descendant schools")
	}
	if scope.Contains(2) {
		t.Error("scope must not contain ancestors")
	}
	if scope.Contains(110) {
		t.Error("scope must not contain sibling subtrees")
	}
}

func TestSubtreeScopeWithoutHomeInstitution(t *testing.T) {
	tree := buildTestTree()

	// No home institution at all
	user := &model.User{ID: 5, Role: model.RoleSchoolAdmin}
	if _, err := subtreeScope(user, tree); !errors.Is(err, ErrUnresolvableScope) {
		t.Errorf("missing home institution: got %v, want ErrUnresolvableScope", err)
	}

	// Home institution not present in the tree
	user = &model.User{ID: 5, Role: model.RoleSchoolAdmin, InstitutionID: uintPtr(999)}
	if _, err := subtreeScope(user, tree); !errors.Is(err, ErrUnresolvableScope) {
		t.Errorf("unknown home institution: got %v, want ErrUnresolvableScope", err)
	}
}

func TestSubtreeScopeInactiveHomeDeniesAll(t *testing.T) {
	institutions := []model.Institution{
		{ID: 1, Level: model.LevelMinistry, IsActive: true},
		{ID: 2, ParentID: uintPtr(1), Level: model.LevelRegion, IsActive: true},
		{ID: 3, ParentID: uintPtr(2), Level: model.LevelSector, IsActive: false},
		{ID: 4, ParentID: uintPtr(3), Level: model.LevelSchool, IsActive: true},
	}
	tree := NewTreeSnapshot(institutions, 1)

	user := &model.User{ID: 5, Role: model.RoleSektorAdmin, InstitutionID: uintPtr(3)}
	scope, err := subtreeScope(user, tree)
	if err != nil {
		t.Fatalf("inactive home must deny, not error: %v", err)
	}
	if !scope.IsEmpty() {
		t.Errorf("inactive home institution must yield an empty scope, got %v", scope.InstitutionIDs)
	}
}

func TestInactiveAncestorDoesNotAffectDescendantScope(t *testing.T) {
	institutions := []model.Institution{
		{ID: 1, Level: model.LevelMinistry, IsActive: true},
		{ID: 2, ParentID: uintPtr(1), Level: model.LevelRegion, IsActive: true},
		{ID: 3, ParentID: uintPtr(2), Level: model.LevelSector, IsActive: false},
		{ID: 4, ParentID: uintPtr(3), Level: model.LevelSchool, IsActive: true},
	}
	tree := NewTreeSnapshot(institutions, 1)

	// Activity is per-institution, not inherited
	user := &model.User{ID: 6, Role: model.RoleSchoolAdmin, InstitutionID: uintPtr(4)}
	scope, err := subtreeScope(user, tree)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !scope.Contains(4) {
		t.Error("school under an inactive sector must keep its own scope")
	}
}

func TestUnknownRoleHasNoStrategy(t *testing.T) {
	if _, ok := scopeStrategies["auditor"]; ok {
		t.Error("unknown roles must not have a scope strategy; Resolve denies them")
	}
}

func TestScopeResultIsEmpty(t *testing.T) {
	if (ScopeResult{Unrestricted: true}).IsEmpty() {
		t.Error("unrestricted scope is never empty")
	}
	if !(ScopeResult{}).IsEmpty() {
		t.Error("zero-value scope must be empty")
	}
	if (ScopeResult{InstitutionIDs: []uint{1}}).IsEmpty() {
		t.Error("scope with institutions is not empty")
	}
}
