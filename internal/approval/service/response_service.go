package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/OpenPMS/pms/internal/approval"
	"github.com/OpenPMS/pms/internal/approval/model"
	base "github.com/OpenPMS/pms/internal/model"
)

// ResponseService is the step response processor: it authorizes the actor
// against the current step, records the immutable response, advances the
// request and triggers entity synchronization, all in one transaction.
type ResponseService struct {
	db       *gorm.DB
	repo     RequestRepository
	sm       *RequestStateMachine
	registry *SyncRegistry
}

func NewResponseService(db *gorm.DB, repo RequestRepository, sm *RequestStateMachine, registry *SyncRegistry) *ResponseService {
	return &ResponseService{db: db, repo: repo, sm: sm, registry: registry}
}

// CanRespond is the single capability check every entry point uses. The actor
// may respond to the step when their role matches exactly, or when the step
// allows override and the actor's role level meets the threshold.
// Administrator roles bypass the check at every step. Always false once the
// request is terminal.
func (s *ResponseService) CanRespond(req *model.ApprovalRequest, step *model.ApprovalStep, actor base.Actor) bool {
	if req == nil || step == nil {
		return false
	}
	if req.Status != model.RequestStatusPending && req.Status != model.RequestStatusInProgress {
		return false
	}
	if actor.IsAdministrator {
		return true
	}
	if actor.RoleID == step.RoleID {
		return true
	}
	return step.CanOverride && actor.RoleLevel >= step.OverrideMinLevel
}

// Respond records the actor's decision against the request's current step.
// The request row is locked for the duration, so the authorization decision
// and the advancement read live state. Exactly one of two racing calls for
// the same step succeeds; the loser gets ErrStepAlreadyAnswered.
func (s *ResponseService) Respond(ctx context.Context, requestID uuid.UUID, actor base.Actor, respondReq *model.RespondDTO) (*model.RespondResult, error) {
	if respondReq == nil {
		return nil, fmt.Errorf("respond request cannot be nil")
	}

	decision := respondReq.Decision()
	if decision == model.ResponseStatusRejected && strings.TrimSpace(respondReq.Comments) == "" {
		return nil, approval.ErrCommentsRequired
	}

	var result *model.RespondResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		request, err := s.repo.GetRequestForUpdateInTx(ctx, tx, requestID)
		if err != nil {
			return err
		}

		if request.Status != model.RequestStatusPending && request.Status != model.RequestStatusInProgress {
			return fmt.Errorf("%w: request %s is %s", approval.ErrRequestNotPending, request.ID, request.Status)
		}

		step := request.WorkflowTemplate.StepAt(request.CurrentStepOrder)
		if step == nil {
			// The contiguity invariant makes this unreachable; refuse loudly
			// rather than skipping a step.
			return fmt.Errorf("%w: request %s at step %d of template %s",
				approval.ErrStepNotFound, request.ID, request.CurrentStepOrder, request.WorkflowTemplateID)
		}

		if !s.CanRespond(request, step, actor) {
			return fmt.Errorf("%w: role %s cannot answer step %d", approval.ErrUnauthorized, actor.RoleName, step.StepOrder)
		}

		answered, err := s.repo.HasResponseForStepInTx(ctx, tx, request.ID, step.ID)
		if err != nil {
			return err
		}
		if answered {
			return fmt.Errorf("%w: request %s step %d", approval.ErrStepAlreadyAnswered, request.ID, step.StepOrder)
		}

		// An actor answering a step bound to a different role is an override
		// by definition, whether they asked for one or not.
		isOverride := respondReq.Override || actor.RoleID != step.RoleID

		response := &model.ApprovalResponse{
			ApprovalRequestID: request.ID,
			ApprovalStepID:    step.ID,
			StepOrder:         step.StepOrder,
			RespondedByID:     actor.UserID,
			Status:            decision,
			Comments:          respondReq.Comments,
			IsOverride:        isOverride,
			RespondedAt:       time.Now().UTC(),
		}
		if err := s.repo.CreateResponseInTx(ctx, tx, response); err != nil {
			return err
		}

		advance, err := s.sm.Advance(ctx, tx, request, step, response)
		if err != nil {
			return err
		}

		if err := s.registry.NotifyStatus(ctx, tx, request, advance.NewStatus); err != nil {
			return err
		}

		result = &model.RespondResult{
			RequestID:        request.ID,
			NewStatus:        advance.NewStatus,
			CurrentStepOrder: advance.NewStepOrder,
		}
		if advance.NextStep != nil {
			result.NextApproverRole = advance.NextStep.Role.Name
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "approval response recorded",
		"request_id", requestID,
		"responded_by", actor.UserID,
		"decision", decision,
		"new_status", result.NewStatus,
	)
	return result, nil
}
