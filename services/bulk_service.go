package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/tahirov/eduadmin-api/model"
	"gorm.io/gorm"
)

const (
	// MaxBulkBatchSize is the hard upper bound on items per bulk call
	MaxBulkBatchSize = 500

	// bulkWorkers bounds concurrency; each item still runs its own
	// transaction, so per-request linearization comes from the version
	// check, not from here
	bulkWorkers = 8
)

// BulkItemResult reports the outcome of one item in a bulk call
type BulkItemResult struct {
	RequestID uint   `json:"request_id"`
	NoOp      bool   `json:"no_op,omitempty"`  // already in the target state
	Reason    string `json:"reason,omitempty"` // set on failure
}

// BulkResult is the aggregate outcome of a bulk call. Every input id
// appears exactly once in Succeeded or Failed.
type BulkResult struct {
	OperationID string           `json:"operation_id"`
	Succeeded   []BulkItemResult `json:"succeeded"`
	Failed      []BulkItemResult `json:"failed"`
}

// SucceededCount returns the number of successful items
func (r *BulkResult) SucceededCount() int { return len(r.Succeeded) }

// FailedCount returns the number of failed items
func (r *BulkResult) FailedCount() int { return len(r.Failed) }

// BulkService applies one approval action to a batch of requests with
// per-item isolation: items fail independently and never roll back or
// block their siblings.
type BulkService struct {
	db        *gorm.DB
	approvals *ApprovalService
}

// NewBulkService creates a new bulk service
func NewBulkService(db *gorm.DB, approvals *ApprovalService) *BulkService {
	return &BulkService{db: db, approvals: approvals}
}

// ApplyBulk runs the action over every request id. Items already in the
// action's target state count as succeeded no-ops, so retrying a bulk
// call after a timeout is safe.
func (s *BulkService) ApplyBulk(ctx context.Context, requestIDs []uint, action model.ApprovalActionType, actor *model.User, comments string) (*BulkResult, error) {
	if len(requestIDs) == 0 {
		return nil, fmt.Errorf("empty batch: %w", ErrValidation)
	}
	if len(requestIDs) > MaxBulkBatchSize {
		return nil, fmt.Errorf("batch of %d exceeds limit of %d: %w", len(requestIDs), MaxBulkBatchSize, ErrBatchTooLarge)
	}
	switch action {
	case model.ActionApprove, model.ActionReject, model.ActionReturnForRevision:
	default:
		return nil, fmt.Errorf("action %q not allowed in bulk: %w", action, ErrValidation)
	}
	if action != model.ActionApprove && strings.TrimSpace(comments) == "" {
		return nil, fmt.Errorf("comments are mandatory for bulk %s: %w", action, ErrValidation)
	}

	operationID := uuid.NewString()
	log.Printf("Bulk %s started: operation %s, %d items, actor %d", action, operationID, len(requestIDs), actor.ID)

	jobs := make(chan uint)
	results := make(chan BulkItemResult, len(requestIDs))

	var wg sync.WaitGroup
	workers := bulkWorkers
	if len(requestIDs) < workers {
		workers = len(requestIDs)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				results <- s.applyOne(ctx, id, action, actor, comments, operationID)
			}
		}()
	}

	for _, id := range requestIDs {
		jobs <- id
	}
	close(jobs)
	wg.Wait()
	close(results)

	byID := make(map[uint]BulkItemResult, len(requestIDs))
	for item := range results {
		byID[item.RequestID] = item
	}

	// Preserve input order in the aggregate result
	result := &BulkResult{OperationID: operationID}
	for _, id := range requestIDs {
		item := byID[id]
		if item.Reason == "" {
			result.Succeeded = append(result.Succeeded, item)
		} else {
			result.Failed = append(result.Failed, item)
		}
	}

	log.Printf("Bulk %s finished: operation %s, %d succeeded, %d failed",
		action, operationID, result.SucceededCount(), result.FailedCount())
	return result, nil
}

// applyOne processes a single batch item as an independent unit of work
func (s *BulkService) applyOne(ctx context.Context, requestID uint, action model.ApprovalActionType, actor *model.User, comments, operationID string) BulkItemResult {
	_, err := s.approvals.apply(ctx, requestID, action, actor, comments, operationID)
	if err == nil {
		return BulkItemResult{RequestID: requestID}
	}

	// Idempotency: an invalid transition on an item that already reached
	// the action's target state is a retried duplicate, not an error
	if errors.Is(err, ErrInvalidTransition) {
		var request model.ApprovalRequest
		lookupErr := s.db.WithContext(ctx).Select("status").First(&request, requestID).Error
		if lookupErr == nil && request.Status == targetStatus(action) {
			return BulkItemResult{RequestID: requestID, NoOp: true}
		}
	}

	return BulkItemResult{RequestID: requestID, Reason: bulkFailureReason(err)}
}

// bulkFailureReason flattens an item error into a stable caller-facing
// reason string
func bulkFailureReason(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not found"
	case errors.Is(err, ErrAccessDenied):
		return "outside access scope"
	case errors.Is(err, ErrNotAuthorizedApprover):
		return "not an authorized approver"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid transition"
	case errors.Is(err, ErrConcurrentModification):
		return "concurrent modification, retry"
	case errors.Is(err, ErrValidation):
		return "validation failed"
	default:
		return "internal error"
	}
}
