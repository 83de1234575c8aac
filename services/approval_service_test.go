package services

import (
	"testing"

	"github.com/tahirov/eduadmin-api/model"
)

func TestCanTransitionTable(t *testing.T) {
	tests := []struct {
		from   model.ApprovalStatus
		action model.ApprovalActionType
		want   bool
	}{
		{model.StatusDraft, model.ActionSubmit, true},
		{model.StatusReturnedForRevision, model.ActionSubmit, true},
		{model.StatusPendingApproval, model.ActionSubmit, false},
		{model.StatusApproved, model.ActionSubmit, false},

		{model.StatusPendingApproval, model.ActionApprove, true},
		{model.StatusPendingApproval, model.ActionReject, true},
		{model.StatusPendingApproval, model.ActionReturnForRevision, true},
		{model.StatusDraft, model.ActionApprove, false},
		{model.StatusDraft, model.ActionReject, false},
		{model.StatusApproved, model.ActionApprove, false},
		{model.StatusRejected, model.ActionApprove, false},

		{model.StatusApproved, model.ActionArchive, true},
		{model.StatusDraft, model.ActionArchive, false},
		{model.StatusPendingApproval, model.ActionArchive, false},
		{model.StatusRejected, model.ActionArchive, false},
		{model.StatusArchived, model.ActionArchive, false},

		{model.StatusDraft, model.ApprovalActionType("bogus"), false},
	}

	for _, tt := range tests {
		if got := canTransition(tt.from, tt.action); got != tt.want {
			t.Errorf("canTransition(%s, %s) = %v, want %v", tt.from, tt.action, got, tt.want)
		}
	}
}

func TestTerminalStatusesAcceptNoAction(t *testing.T) {
	actions := []model.ApprovalActionType{
		model.ActionSubmit,
		model.ActionApprove,
		model.ActionReject,
		model.ActionReturnForRevision,
	}
	for _, from := range []model.ApprovalStatus{model.StatusRejected, model.StatusArchived} {
		for _, action := range actions {
			if canTransition(from, action) {
				t.Errorf("terminal status %s must not accept %s", from, action)
			}
		}
	}
}

func TestTargetStatus(t *testing.T) {
	tests := []struct {
		action model.ApprovalActionType
		want   model.ApprovalStatus
	}{
		{model.ActionSubmit, model.StatusPendingApproval},
		{model.ActionApprove, model.StatusApproved},
		{model.ActionReject, model.StatusRejected},
		{model.ActionReturnForRevision, model.StatusReturnedForRevision},
		{model.ActionArchive, model.StatusArchived},
		{model.ApprovalActionType("bogus"), ""},
	}
	for _, tt := range tests {
		if got := targetStatus(tt.action); got != tt.want {
			t.Errorf("targetStatus(%s) = %s, want %s", tt.action, got, tt.want)
		}
	}
}

func TestDefaultChainsUseKnownApproverLevels(t *testing.T) {
	for entityType, chain := range DefaultChains {
		if len(chain) == 0 {
			t.Errorf("entity type %s has an empty default chain", entityType)
		}
		for _, level := range chain {
			if _, ok := approverLevelFor[level]; !ok {
				t.Errorf("entity type %s chain contains unknown level %q", entityType, level)
			}
		}
	}
}

func TestCurrentLevel(t *testing.T) {
	request := &model.ApprovalRequest{
		Chain:       []string{model.RoleSchoolAdmin, model.RoleSektorAdmin},
		Status:      model.StatusPendingApproval,
		CurrentStep: 0,
	}
	if got := request.CurrentLevel(); got != model.RoleSchoolAdmin {
		t.Errorf("CurrentLevel() = %q, want schooladmin", got)
	}

	request.CurrentStep = 1
	if got := request.CurrentLevel(); got != model.RoleSektorAdmin {
		t.Errorf("CurrentLevel() = %q, want sektoradmin", got)
	}

	// Chain exhausted
	request.CurrentStep = 2
	if got := request.CurrentLevel(); got != "" {
		t.Errorf("CurrentLevel() past the chain = %q, want empty", got)
	}

	// Only pending requests wait on a level
	request.CurrentStep = 0
	request.Status = model.StatusDraft
	if got := request.CurrentLevel(); got != "" {
		t.Errorf("CurrentLevel() on draft = %q, want empty", got)
	}
}
