// Package approval defines the error taxonomy shared by the workflow core.
// Services wrap these sentinels with context; callers match with errors.Is
// and the HTTP layer maps them onto status codes.
package approval

import "errors"

var (
	// Configuration errors. Block request creation entirely; surfaced to the
	// initiating user and never retried automatically.
	ErrNoActiveWorkflow   = errors.New("no approval workflow configured")
	ErrWorkflowHasNoSteps = errors.New("workflow has no steps")

	// ErrStepNotFound means a request points at a step order that does not
	// exist in its template. The step-contiguity invariant makes this
	// unreachable; it is treated as a fatal configuration error, never
	// silently skipped.
	ErrStepNotFound = errors.New("current step not found in workflow template")

	// Authorization and validation errors.
	ErrUnauthorized           = errors.New("actor is not authorized for the current step")
	ErrCommentsRequired       = errors.New("comments are required when rejecting")
	ErrInvalidEntityReference = errors.New("referenced entity does not exist")

	// Lifecycle and concurrency conflicts. "Already handled" conditions are
	// distinguishable so clients refresh instead of retrying blindly.
	ErrRequestNotPending       = errors.New("approval request is no longer pending")
	ErrStepAlreadyAnswered     = errors.New("step has already been answered")
	ErrRequestNotCancellable   = errors.New("approval request can no longer be cancelled")
	ErrEntityAlreadyInApproval = errors.New("entity already has an open approval request")
)
