package services

import "errors"

// Core error taxonomy. Handlers map these to HTTP status codes with
// errors.Is; services wrap them with context via fmt.Errorf("...: %w").
var (
	// ErrUnresolvableScope means the actor's home institution does not
	// exist in the tree. Callers must treat this as deny-all.
	ErrUnresolvableScope = errors.New("access scope cannot be resolved")

	// ErrAccessDenied means a mutating operation targeted an entity
	// outside the actor's resolved scope.
	ErrAccessDenied = errors.New("access denied")

	// ErrNotAuthorizedApprover means the actor is not a valid approver
	// (nominal or delegated) for the request's current chain step.
	ErrNotAuthorizedApprover = errors.New("not an authorized approver for the current step")

	// ErrInvalidTransition means the requested state change is not legal
	// from the request's current status.
	ErrInvalidTransition = errors.New("invalid workflow transition")

	// ErrDelegationCycle means creating the delegation would let approval
	// authority flow back to the delegator within overlapping windows.
	ErrDelegationCycle = errors.New("delegation would create a cycle")

	// ErrConcurrentModification means the write targeted a stale version;
	// the caller should reload and retry.
	ErrConcurrentModification = errors.New("request was modified concurrently")

	// ErrBatchTooLarge means a bulk call exceeded the batch limit.
	ErrBatchTooLarge = errors.New("bulk batch exceeds the maximum size")

	// ErrValidation covers malformed input, such as a missing mandatory
	// rejection comment.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound covers entities that do not exist or are filtered out
	// of the actor's scope on a read path.
	ErrNotFound = errors.New("record not found")
)
