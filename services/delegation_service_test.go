package services

import (
	"testing"
	"time"

	"github.com/tahirov/eduadmin-api/model"
)

func TestDelegationWouldCycle(t *testing.T) {
	existing := []model.Delegation{
		{DelegatorID: 1, DelegateID: 2},
	}

	// B -> A closes the loop A -> B
	if !delegationWouldCycle(existing, 2, 1) {
		t.Error("direct back-delegation must be detected as a cycle")
	}

	// B -> C is fine
	if delegationWouldCycle(existing, 2, 3) {
		t.Error("extending a chain is not a cycle")
	}
}

func TestDelegationWouldCycleTransitive(t *testing.T) {
	// A -> B -> C already exists; C -> A closes a three-node loop
	existing := []model.Delegation{
		{DelegatorID: 1, DelegateID: 2},
		{DelegatorID: 2, DelegateID: 3},
	}

	if !delegationWouldCycle(existing, 3, 1) {
		t.Error("transitive cycle must be detected")
	}
	if delegationWouldCycle(existing, 3, 4) {
		t.Error("delegating onward from the chain tail is not a cycle")
	}
	if delegationWouldCycle(existing, 4, 1) {
		t.Error("a fresh delegator joining the chain head is not a cycle")
	}
}

func TestDelegationActiveAt(t *testing.T) {
	now := time.Now()
	delegation := model.Delegation{
		ValidFrom:  now.Add(-time.Hour),
		ValidUntil: now.Add(time.Hour),
	}

	if !delegation.ActiveAt(now) {
		t.Error("delegation inside its window must be active")
	}
	if delegation.ActiveAt(now.Add(-2 * time.Hour)) {
		t.Error("delegation before its window must be inactive")
	}
	if delegation.ActiveAt(now.Add(2 * time.Hour)) {
		t.Error("delegation after its window must be inactive")
	}

	// Window boundaries are inclusive
	if !delegation.ActiveAt(delegation.ValidFrom) || !delegation.ActiveAt(delegation.ValidUntil) {
		t.Error("window boundaries must be inclusive")
	}

	revokedAt := now.Add(-time.Minute)
	delegation.RevokedAt = &revokedAt
	if delegation.ActiveAt(now) {
		t.Error("revoked delegation must be inactive from the revocation instant")
	}
}

func TestDelegationOverlaps(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	delegation := model.Delegation{
		ValidFrom:  base,
		ValidUntil: base.AddDate(0, 0, 10),
	}

	tests := []struct {
		name  string
		from  time.Time
		until time.Time
		want  bool
	}{
		{"fully inside", base.AddDate(0, 0, 2), base.AddDate(0, 0, 5), true},
		{"straddles start", base.AddDate(0, 0, -2), base.AddDate(0, 0, 2), true},
		{"straddles end", base.AddDate(0, 0, 8), base.AddDate(0, 0, 15), true},
		{"touches end exactly", base.AddDate(0, 0, 10), base.AddDate(0, 0, 20), true},
		{"entirely before", base.AddDate(0, 0, -20), base.AddDate(0, 0, -11), false},
		{"entirely after", base.AddDate(0, 0, 11), base.AddDate(0, 0, 20), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := delegation.Overlaps(tt.from, tt.until); got != tt.want {
				t.Errorf("Overlaps(%s, %s) = %v, want %v", tt.from, tt.until, got, tt.want)
			}
		})
	}
}

func TestApproverLevelMapping(t *testing.T) {
	tests := []struct {
		role  string
		level int
	}{
		{model.RoleRegionAdmin, model.LevelRegion},
		{model.RoleSektorAdmin, model.LevelSector},
		{model.RoleSchoolAdmin, model.LevelSchool},
	}
	for _, tt := range tests {
		if got, ok := approverLevelFor[tt.role]; !ok || got != tt.level {
			t.Errorf("approverLevelFor[%s] = %d,%v, want %d", tt.role, got, ok, tt.level)
		}
	}

	// Non-approver roles must not appear in the mapping
	for _, role := range []string{model.RoleTeacher, model.RoleRegionOperator, model.RoleSuperAdmin} {
		if _, ok := approverLevelFor[role]; ok {
			t.Errorf("role %s must not be a nominal approver level", role)
		}
	}
}
