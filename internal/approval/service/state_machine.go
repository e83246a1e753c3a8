package service

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/OpenPMS/pms/internal/approval/model"
)

// AdvanceResult describes the request-level transition produced by one
// recorded response.
type AdvanceResult struct {
	NewStatus        model.RequestStatus
	NewStepOrder     int
	Completed        bool // terminal APPROVED or OVERRIDDEN
	Rejected         bool
	NextStep         *model.ApprovalStep // nil when terminal
}

// RequestStateMachine owns the request status graph:
//
//	PENDING -> IN_PROGRESS -> ... -> APPROVED | OVERRIDDEN
//	PENDING/IN_PROGRESS -> REJECTED | CANCELLED | EXPIRED
//
// Rejection at any step terminates the request immediately; remaining steps
// are never visited. A completed chain finishes as OVERRIDDEN instead of
// APPROVED when any response in it used override authority.
type RequestStateMachine struct {
	repo RequestRepository
}

func NewRequestStateMachine(repo RequestRepository) *RequestStateMachine {
	return &RequestStateMachine{repo: repo}
}

// Advance computes and persists the transition that follows a response to the
// request's current step. The persisted update is conditional on the request
// still being at (status, step) the caller observed under lock, so a racing
// responder loses with ErrStepAlreadyAnswered instead of double-applying.
func (sm *RequestStateMachine) Advance(
	ctx context.Context,
	tx *gorm.DB,
	req *model.ApprovalRequest,
	step *model.ApprovalStep,
	resp *model.ApprovalResponse,
) (*AdvanceResult, error) {
	if req == nil || step == nil || resp == nil {
		return nil, fmt.Errorf("request, step and response must all be non-nil")
	}
	if req.Status.IsTerminal() {
		return nil, fmt.Errorf("cannot advance request %s in terminal status %s", req.ID, req.Status)
	}

	result := &AdvanceResult{}

	switch {
	case resp.Status == model.ResponseStatusRejected:
		result.NewStatus = model.RequestStatusRejected
		result.NewStepOrder = req.CurrentStepOrder
		result.Rejected = true

	case step.StepOrder >= req.WorkflowTemplate.MaxStepOrder():
		// Final step approved. CurrentStepOrder moves one past the last step
		// at the same moment the status turns terminal.
		result.NewStatus = model.RequestStatusApproved
		if resp.IsOverride || req.HasOverrideResponse() {
			result.NewStatus = model.RequestStatusOverridden
		}
		result.NewStepOrder = step.StepOrder + 1
		result.Completed = true

	default:
		result.NewStatus = model.RequestStatusInProgress
		result.NewStepOrder = req.CurrentStepOrder + 1
		result.NextStep = req.WorkflowTemplate.StepAt(result.NewStepOrder)
	}

	err := sm.repo.TransitionInTx(ctx, tx, req.ID, req.Status, req.CurrentStepOrder, result.NewStatus, result.NewStepOrder)
	if err != nil {
		return nil, err
	}

	req.Status = result.NewStatus
	req.CurrentStepOrder = result.NewStepOrder
	return result, nil
}

// Terminate moves an open request into the given terminal status without
// touching the step pointer. Used for cancellation and expiry.
func (sm *RequestStateMachine) Terminate(
	ctx context.Context,
	tx *gorm.DB,
	req *model.ApprovalRequest,
	to model.RequestStatus,
) error {
	if !to.IsTerminal() {
		return fmt.Errorf("status %s is not terminal", to)
	}
	if req.Status.IsTerminal() {
		return fmt.Errorf("request %s is already in terminal status %s", req.ID, req.Status)
	}

	err := sm.repo.TransitionInTx(ctx, tx, req.ID, req.Status, req.CurrentStepOrder, to, req.CurrentStepOrder)
	if err != nil {
		return err
	}
	req.Status = to
	return nil
}
