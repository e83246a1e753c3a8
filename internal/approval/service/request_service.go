package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/OpenPMS/pms/internal/approval"
	"github.com/OpenPMS/pms/internal/approval/model"
	base "github.com/OpenPMS/pms/internal/model"
)

// RequestService manages the approval request lifecycle: creation bound to a
// governed entity, cancellation, the external expiry sweep and read views.
type RequestService struct {
	db       *gorm.DB
	repo     RequestRepository
	sm       *RequestStateMachine
	registry *SyncRegistry
}

func NewRequestService(db *gorm.DB, repo RequestRepository, sm *RequestStateMachine, registry *SyncRegistry) *RequestService {
	return &RequestService{db: db, repo: repo, sm: sm, registry: registry}
}

// CreateRequestInTx creates a request against the given template inside the
// caller's transaction, which must also create the governed entity itself so
// the pair is all-or-nothing. The duplicate-open check runs under the same
// isolation as the insert.
//
// Returns the created request and the first step's role name, surfaced to the
// caller as "next approver" for display only.
func (s *RequestService) CreateRequestInTx(
	ctx context.Context,
	tx *gorm.DB,
	template *model.WorkflowTemplate,
	entityType model.EntityType,
	entityID uuid.UUID,
	propertyID *uuid.UUID,
	requestedByID uuid.UUID,
) (*model.ApprovalRequest, string, error) {
	if template == nil {
		return nil, "", approval.ErrNoActiveWorkflow
	}
	if len(template.Steps) == 0 {
		return nil, "", fmt.Errorf("%w: template %s", approval.ErrWorkflowHasNoSteps, template.ID)
	}

	openCount, err := s.repo.CountOpenByEntityInTx(ctx, tx, entityType, entityID)
	if err != nil {
		return nil, "", err
	}
	if openCount == 0 && propertyID != nil {
		openCount, err = s.repo.CountOpenByPropertyInTx(ctx, tx, *propertyID)
		if err != nil {
			return nil, "", err
		}
	}
	if openCount > 0 {
		return nil, "", approval.ErrEntityAlreadyInApproval
	}

	request := &model.ApprovalRequest{
		WorkflowTemplateID: template.ID,
		EntityType:         entityType,
		EntityID:           entityID,
		PropertyID:         propertyID,
		RequestedByID:      requestedByID,
		CurrentStepOrder:   1,
		Status:             model.RequestStatusPending,
	}
	if err := s.repo.CreateRequestInTx(ctx, tx, request); err != nil {
		return nil, "", err
	}
	request.WorkflowTemplate = *template

	if err := s.registry.NotifyCreated(ctx, tx, request); err != nil {
		return nil, "", err
	}

	firstStep := template.StepAt(1)
	nextApprover := ""
	if firstStep != nil {
		nextApprover = firstStep.Role.Name
	}

	slog.InfoContext(ctx, "approval request created",
		"request_id", request.ID,
		"entity_type", entityType,
		"entity_id", entityID,
		"template_id", template.ID,
	)

	return request, nextApprover, nil
}

// Cancel withdraws an open request. Only PENDING and IN_PROGRESS requests can
// be cancelled; the registered synchronizer reverts the governed entity in
// the same transaction.
func (s *RequestService) Cancel(ctx context.Context, requestID uuid.UUID, actor base.Actor) (model.RequestStatus, error) {
	var newStatus model.RequestStatus

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		request, err := s.repo.GetRequestForUpdateInTx(ctx, tx, requestID)
		if err != nil {
			return err
		}

		if request.Status != model.RequestStatusPending && request.Status != model.RequestStatusInProgress {
			return fmt.Errorf("%w: request %s is %s", approval.ErrRequestNotCancellable, request.ID, request.Status)
		}

		if err := s.sm.Terminate(ctx, tx, request, model.RequestStatusCancelled); err != nil {
			return err
		}
		newStatus = request.Status

		return s.registry.NotifyStatus(ctx, tx, request, model.RequestStatusCancelled)
	})
	if err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "approval request cancelled",
		"request_id", requestID,
		"cancelled_by", actor.UserID,
	)
	return newStatus, nil
}

// ExpireStale closes every open request created before now-olderThan. This is
// the external time-based trigger contract; the deployment owns the schedule
// (a cron invocation of cmd/sweeper), not this core. Each request expires in
// its own transaction so one failure does not hold up the sweep.
func (s *RequestService) ExpireStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	ids, err := s.repo.ListStaleOpenRequestIDs(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, id := range ids {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			request, err := s.repo.GetRequestForUpdateInTx(ctx, tx, id)
			if err != nil {
				return err
			}
			// Re-check under lock; a response may have landed since listing.
			if request.Status.IsTerminal() {
				return nil
			}
			if err := s.sm.Terminate(ctx, tx, request, model.RequestStatusExpired); err != nil {
				return err
			}
			expired++
			return s.registry.NotifyStatus(ctx, tx, request, model.RequestStatusExpired)
		})
		if err != nil {
			slog.ErrorContext(ctx, "failed to expire approval request", "request_id", id, "error", err)
		}
	}

	if expired > 0 {
		slog.InfoContext(ctx, "expired stale approval requests", "count", expired, "cutoff", cutoff)
	}
	return expired, nil
}

// GetWithHistory returns the request with its ordered step progress and
// response history, shaped for rendering.
func (s *RequestService) GetWithHistory(ctx context.Context, requestID uuid.UUID) (*model.RequestHistoryDTO, error) {
	request, err := s.repo.GetRequestWithHistory(ctx, requestID)
	if err != nil {
		return nil, err
	}

	responseByStep := make(map[uuid.UUID]*model.ApprovalResponse, len(request.Responses))
	for i := range request.Responses {
		responseByStep[request.Responses[i].ApprovalStepID] = &request.Responses[i]
	}

	steps := make([]model.StepProgressDTO, 0, len(request.WorkflowTemplate.Steps))
	for i := range request.WorkflowTemplate.Steps {
		step := &request.WorkflowTemplate.Steps[i]
		steps = append(steps, model.StepProgressDTO{
			StepOrder: step.StepOrder,
			StepName:  step.StepName,
			RoleName:  step.Role.Name,
			IsCurrent: !request.Status.IsTerminal() && step.StepOrder == request.CurrentStepOrder,
			Response:  responseByStep[step.ID],
		})
	}

	return &model.RequestHistoryDTO{Request: *request, Steps: steps}, nil
}

// List returns requests matching the filter with read-committed staleness.
func (s *RequestService) List(ctx context.Context, filter model.RequestFilter) ([]model.ApprovalRequest, error) {
	return s.repo.ListRequests(ctx, filter)
}
