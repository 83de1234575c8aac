package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/tahirov/eduadmin-api/database"
	"github.com/tahirov/eduadmin-api/model"
	"gorm.io/gorm"
)

// setupWorkflowTest wires the full service graph against a real database
// and seeds a region -> sector -> school branch with one admin per level.
// Requires a reachable PostgreSQL configured via the usual DB_* env vars.
func setupWorkflowTest(t *testing.T) (*gorm.DB, *ApprovalService, *DelegationService, map[string]*model.User, map[string]uint) {
	t.Helper()

	if os.Getenv("RUN_INTEGRATION_TESTS") != "true" {
		t.Skip("Skipping integration test. Set RUN_INTEGRATION_TESTS=true to run")
	}

	store, err := database.StartGORM()
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}
	if err := store.Init(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	db := store.GetDB()

	suffix := time.Now().UnixNano()

	ministry := model.Institution{Name: fmt.Sprintf("Ministry %d", suffix), Type: "ministry", Level: model.LevelMinistry, IsActive: true}
	if err := db.Create(&ministry).Error; err != nil {
		t.Fatalf("Failed to seed ministry: %v", err)
	}
	region := model.Institution{Name: fmt.Sprintf("Region %d", suffix), Type: "region", ParentID: &ministry.ID, Level: model.LevelRegion, IsActive: true}
	if err := db.Create(&region).Error; err != nil {
		t.Fatalf("Failed to seed region: %v", err)
	}
	sector := model.Institution{Name: fmt.Sprintf("Sector %d", suffix), Type: "sector", ParentID: &region.ID, Level: model.LevelSector, IsActive: true}
	if err := db.Create(&sector).Error; err != nil {
		t.Fatalf("Failed to seed sector: %v", err)
	}
	school := model.Institution{Name: fmt.Sprintf("School %d", suffix), Type: "school", ParentID: &sector.ID, Level: model.LevelSchool, IsActive: true}
	if err := db.Create(&school).Error; err != nil {
		t.Fatalf("Failed to seed school: %v", err)
	}

	users := map[string]*model.User{}
	for role, institutionID := range map[string]uint{
		model.RoleTeacher:     school.ID,
		model.RoleSchoolAdmin: school.ID,
		model.RoleSektorAdmin: sector.ID,
		model.RoleRegionAdmin: region.ID,
	} {
		id := institutionID
		user := &model.User{
			Email:         fmt.Sprintf("%s-%d@test.local", role, suffix),
			PasswordHash:  "x",
			Name:          role,
			Role:          role,
			InstitutionID: &id,
		}
		if err := db.Create(user).Error; err != nil {
			t.Fatalf("Failed to seed %s: %v", role, err)
		}
		users[role] = user
	}

	tree := NewTreeService(db)
	scopes := NewAccessScopeService(tree, nil)
	filter := NewScopeFilter(db)
	delegations := NewDelegationService(db, tree, scopes)
	notifications := NewNotificationService(db, delegations)
	approvals := NewApprovalService(db, filter, scopes, delegations, notifications)

	institutions := map[string]uint{
		"ministry": ministry.ID,
		"region":   region.ID,
		"sector":   sector.ID,
		"school":   school.ID,
	}
	return db, approvals, delegations, users, institutions
}

func TestApprovalChainEndToEnd(t *testing.T) {
	db, approvals, _, users, institutions := setupWorkflowTest(t)
	ctx := context.Background()

	teacher := users[model.RoleTeacher]

	request, err := approvals.CreateDraft(ctx, teacher, CreateRequestInput{
		EntityType:    model.EntitySurveyResponse,
		EntityID:      uint(time.Now().UnixNano() % 1_000_000_000),
		InstitutionID: institutions["school"],
		Title:         "Quarterly survey",
	})
	if err != nil {
		t.Fatalf("CreateDraft failed: %v", err)
	}
	if request.Status != model.StatusDraft {
		t.Fatalf("new request status = %s, want draft", request.Status)
	}

	request, err = approvals.Submit(ctx, request.ID, teacher, "")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if request.Status != model.StatusPendingApproval || request.CurrentStep != 0 {
		t.Fatalf("after submit: status=%s step=%d, want pending_approval/0", request.Status, request.CurrentStep)
	}

	// Each chain level signs off in order
	request, err = approvals.Approve(ctx, request.ID, users[model.RoleSchoolAdmin], "ok")
	if err != nil {
		t.Fatalf("school approval failed: %v", err)
	}
	if request.Status != model.StatusPendingApproval || request.CurrentStep != 1 {
		t.Fatalf("after school approval: status=%s step=%d", request.Status, request.CurrentStep)
	}

	// Out-of-order approval must be rejected
	if _, err := approvals.Approve(ctx, request.ID, users[model.RoleRegionAdmin], "too early"); !errors.Is(err, ErrNotAuthorizedApprover) {
		t.Fatalf("region admin approving at sector step: got %v, want ErrNotAuthorizedApprover", err)
	}

	request, err = approvals.Approve(ctx, request.ID, users[model.RoleSektorAdmin], "ok")
	if err != nil {
		t.Fatalf("sector approval failed: %v", err)
	}
	request, err = approvals.Approve(ctx, request.ID, users[model.RoleRegionAdmin], "ok")
	if err != nil {
		t.Fatalf("region approval failed: %v", err)
	}
	if request.Status != model.StatusApproved {
		t.Fatalf("after full chain: status=%s, want approved", request.Status)
	}
	if request.CompletedAt == nil {
		t.Error("approved request must carry a completion timestamp")
	}

	// A terminal request accepts no further decisions
	if _, err := approvals.Approve(ctx, request.ID, users[model.RoleRegionAdmin], "again"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("approving a terminal request: got %v, want ErrInvalidTransition", err)
	}

	var transitionCount int64
	if err := db.Model(&model.ApprovalTransition{}).Where("request_id = ?", request.ID).Count(&transitionCount).Error; err != nil {
		t.Fatalf("Failed to count transitions: %v", err)
	}
	if transitionCount != 4 {
		t.Errorf("transition count = %d, want 4 (submit + 3 approvals)", transitionCount)
	}
}

func TestReturnForRevisionResetsChain(t *testing.T) {
	db, approvals, _, users, institutions := setupWorkflowTest(t)
	ctx := context.Background()

	teacher := users[model.RoleTeacher]

	request, err := approvals.CreateDraft(ctx, teacher, CreateRequestInput{
		EntityType:    model.EntityTask,
		EntityID:      uint(time.Now().UnixNano() % 1_000_000_000),
		InstitutionID: institutions["school"],
		Title:         "Maintenance task",
	})
	if err != nil {
		t.Fatalf("CreateDraft failed: %v", err)
	}
	if _, err := approvals.Submit(ctx, request.ID, teacher, ""); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	// Returning without comments is refused
	if _, err := approvals.ReturnForRevision(ctx, request.ID, users[model.RoleSektorAdmin], "  "); !errors.Is(err, ErrValidation) {
		t.Fatalf("return without comments: got %v, want ErrValidation", err)
	}

	request, err = approvals.ReturnForRevision(ctx, request.ID, users[model.RoleSektorAdmin], "missing budget")
	if err != nil {
		t.Fatalf("ReturnForRevision failed: %v", err)
	}
	if request.Status != model.StatusReturnedForRevision {
		t.Fatalf("status = %s, want returned_for_revision", request.Status)
	}

	// Resubmission restarts the chain from the first step
	request, err = approvals.Submit(ctx, request.ID, teacher, "budget added")
	if err != nil {
		t.Fatalf("resubmit failed: %v", err)
	}
	if request.CurrentStep != 0 {
		t.Errorf("resubmitted request step = %d, want 0", request.CurrentStep)
	}

	// Submit, return, resubmit: each recorded exactly once
	var transitionCount int64
	if err := db.Model(&model.ApprovalTransition{}).Where("request_id = ?", request.ID).Count(&transitionCount).Error; err != nil {
		t.Fatalf("Failed to count transitions: %v", err)
	}
	if transitionCount != 3 {
		t.Errorf("transition count = %d, want 3 (submit + return + resubmit)", transitionCount)
	}
}

func TestDelegatedApprovalAuthority(t *testing.T) {
	_, approvals, delegations, users, institutions := setupWorkflowTest(t)
	ctx := context.Background()

	teacher := users[model.RoleTeacher]
	sektorAdmin := users[model.RoleSektorAdmin]
	schoolAdmin := users[model.RoleSchoolAdmin]

	request, err := approvals.CreateDraft(ctx, teacher, CreateRequestInput{
		EntityType:    model.EntityDocumentShare,
		EntityID:      uint(time.Now().UnixNano() % 1_000_000_000),
		InstitutionID: institutions["school"],
		Title:         "Shared curriculum",
	})
	if err != nil {
		t.Fatalf("CreateDraft failed: %v", err)
	}
	if _, err := approvals.Submit(ctx, request.ID, teacher, ""); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if _, err := approvals.Approve(ctx, request.ID, schoolAdmin, "ok"); err != nil {
		t.Fatalf("school approval failed: %v", err)
	}

	// The teacher cannot act at the sector step without a delegation
	if _, err := approvals.Approve(ctx, request.ID, teacher, "no authority"); !errors.Is(err, ErrNotAuthorizedApprover) {
		t.Fatalf("undelegated approval: got %v, want ErrNotAuthorizedApprover", err)
	}

	// Sector admin delegates their authority over the sector subtree
	_, err = delegations.CreateDelegation(ctx, sektorAdmin, CreateDelegationInput{
		DelegateID:         teacher.ID,
		ScopeInstitutionID: institutions["sector"],
		ValidFrom:          time.Now().Add(-time.Minute),
		ValidUntil:         time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("CreateDelegation failed: %v", err)
	}

	request, err = approvals.Approve(ctx, request.ID, teacher, "acting for sector admin")
	if err != nil {
		t.Fatalf("delegated approval failed: %v", err)
	}
	if request.Status != model.StatusApproved {
		t.Errorf("status = %s, want approved after the two-level chain", request.Status)
	}
}

func TestConcurrentApprovalSingleWinner(t *testing.T) {
	_, approvals, _, users, institutions := setupWorkflowTest(t)
	ctx := context.Background()

	teacher := users[model.RoleTeacher]
	schoolAdmin := users[model.RoleSchoolAdmin]

	request, err := approvals.CreateDraft(ctx, teacher, CreateRequestInput{
		EntityType:    model.EntitySurveyResponse,
		EntityID:      uint(time.Now().UnixNano() % 1_000_000_000),
		InstitutionID: institutions["school"],
		Title:         "Raced survey",
	})
	if err != nil {
		t.Fatalf("CreateDraft failed: %v", err)
	}
	if _, err := approvals.Submit(ctx, request.ID, teacher, ""); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	// Two copies of the same decision race on one version of the request.
	// The version check in the update predicate must let exactly one
	// through and fail the other loudly instead of double-advancing.
	start := make(chan struct{})
	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := approvals.Approve(ctx, request.ID, schoolAdmin, "racing")
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	var succeeded, conflicted int
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrConcurrentModification):
			conflicted++
		default:
			t.Fatalf("unexpected error from racing approval: %v", err)
		}
	}
	if succeeded != 1 || conflicted != 1 {
		t.Fatalf("racing approvals: %d succeeded, %d conflicted, want exactly one of each", succeeded, conflicted)
	}

	if _, err := approvals.Submit(ctx, request.ID, teacher, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("resubmitting a pending request: got %v, want ErrInvalidTransition", err)
	}
}

func TestBulkApproveIdempotencyAndIsolation(t *testing.T) {
	db, approvals, _, users, institutions := setupWorkflowTest(t)
	ctx := context.Background()

	teacher := users[model.RoleTeacher]
	schoolAdmin := users[model.RoleSchoolAdmin]
	bulk := NewBulkService(db, approvals)

	base := uint(time.Now().UnixNano() % 1_000_000_000)
	chain := []string{model.RoleSchoolAdmin}

	var ids []uint
	for i := 0; i < 10; i++ {
		request, err := approvals.CreateDraft(ctx, teacher, CreateRequestInput{
			EntityType:    model.EntityTask,
			EntityID:      base + uint(i),
			InstitutionID: institutions["school"],
			Title:         fmt.Sprintf("Task %d", i),
			Chain:         chain,
		})
		if err != nil {
			t.Fatalf("CreateDraft %d failed: %v", i, err)
		}
		if _, err := approvals.Submit(ctx, request.ID, teacher, ""); err != nil {
			t.Fatalf("Submit %d failed: %v", i, err)
		}
		ids = append(ids, request.ID)
	}

	// Three items reach the target state ahead of the batch
	for _, id := range ids[:3] {
		if _, err := approvals.Approve(ctx, id, schoolAdmin, "early"); err != nil {
			t.Fatalf("pre-approval failed: %v", err)
		}
	}

	// One extra item stays in draft; it must fail on its own without
	// touching its siblings
	draft, err := approvals.CreateDraft(ctx, teacher, CreateRequestInput{
		EntityType:    model.EntityTask,
		EntityID:      base + 10,
		InstitutionID: institutions["school"],
		Title:         "Never submitted",
		Chain:         chain,
	})
	if err != nil {
		t.Fatalf("CreateDraft draft failed: %v", err)
	}

	batch := append(append([]uint{}, ids...), draft.ID)
	result, err := bulk.ApplyBulk(ctx, batch, model.ActionApprove, schoolAdmin, "")
	if err != nil {
		t.Fatalf("ApplyBulk failed: %v", err)
	}

	if result.SucceededCount() != 10 {
		t.Errorf("succeeded = %d, want 10", result.SucceededCount())
	}
	if result.FailedCount() != 1 {
		t.Fatalf("failed = %d, want 1", result.FailedCount())
	}
	if result.Failed[0].RequestID != draft.ID || result.Failed[0].Reason != "invalid transition" {
		t.Errorf("failed item = %+v, want draft %d with reason %q", result.Failed[0], draft.ID, "invalid transition")
	}

	var noOps int
	for _, item := range result.Succeeded {
		if item.NoOp {
			noOps++
		}
	}
	if noOps != 3 {
		t.Errorf("no-op count = %d, want 3 for the pre-approved items", noOps)
	}

	// Only the seven freshly decided items carry the operation id
	var tagged int64
	if err := db.Model(&model.ApprovalTransition{}).Where("bulk_operation_id = ?", result.OperationID).Count(&tagged).Error; err != nil {
		t.Fatalf("Failed to count tagged transitions: %v", err)
	}
	if tagged != 7 {
		t.Errorf("transitions tagged with operation id = %d, want 7", tagged)
	}

	// Retrying the whole batch after a timeout is safe: everything is
	// already approved and counts as a succeeded no-op
	retry, err := bulk.ApplyBulk(ctx, ids, model.ActionApprove, schoolAdmin, "")
	if err != nil {
		t.Fatalf("retried ApplyBulk failed: %v", err)
	}
	if retry.SucceededCount() != 10 || retry.FailedCount() != 0 {
		t.Fatalf("retried batch: %d succeeded, %d failed, want 10/0", retry.SucceededCount(), retry.FailedCount())
	}
	for _, item := range retry.Succeeded {
		if !item.NoOp {
			t.Errorf("retried item %d must be a no-op", item.RequestID)
		}
	}
}

func TestActorHistoryCrossScopeReadIsAudited(t *testing.T) {
	db, approvals, _, users, institutions := setupWorkflowTest(t)
	ctx := context.Background()

	teacher := users[model.RoleTeacher]
	schoolAdmin := users[model.RoleSchoolAdmin]

	request, err := approvals.CreateDraft(ctx, teacher, CreateRequestInput{
		EntityType:    model.EntityTask,
		EntityID:      uint(time.Now().UnixNano() % 1_000_000_000),
		InstitutionID: institutions["school"],
		Title:         "History source",
		Chain:         []string{model.RoleSchoolAdmin},
	})
	if err != nil {
		t.Fatalf("CreateDraft failed: %v", err)
	}
	if _, err := approvals.Submit(ctx, request.ID, teacher, ""); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if _, err := approvals.Approve(ctx, request.ID, schoolAdmin, "ok"); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}

	admin := &model.User{
		Email:        fmt.Sprintf("superadmin-%d@test.local", time.Now().UnixNano()),
		PasswordHash: "x",
		Name:         "superadmin",
		Role:         model.RoleSuperAdmin,
	}
	if err := db.Create(admin).Error; err != nil {
		t.Fatalf("Failed to seed superadmin: %v", err)
	}

	audit := NewAuditService(db, NewScopeFilter(db))

	// Scoped admins cannot pull another actor's full history
	scoped := NewScopeContext(schoolAdmin, ScopeResult{InstitutionIDs: []uint{institutions["school"]}})
	if _, _, err := audit.ActorHistory(ctx, schoolAdmin.ID, scoped, 50, 0); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("non-superadmin history read: got %v, want ErrAccessDenied", err)
	}

	sc := NewScopeContext(admin, ScopeResult{Unrestricted: true})
	transitions, total, err := audit.ActorHistory(ctx, schoolAdmin.ID, sc, 50, 0)
	if err != nil {
		t.Fatalf("ActorHistory failed: %v", err)
	}
	if total < 1 || len(transitions) < 1 {
		t.Fatalf("expected at least one transition for the school admin, got total=%d", total)
	}

	var bypasses int64
	if err := db.Model(&model.ScopeBypassLog{}).Where("user_id = ? AND resource = ?", admin.ID, "approval_transitions").Count(&bypasses).Error; err != nil {
		t.Fatalf("Failed to count bypass records: %v", err)
	}
	if bypasses < 1 {
		t.Error("cross-scope history read must land in the bypass log")
	}
}
