package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/OpenPMS/pms/internal/approval"
	"github.com/OpenPMS/pms/internal/approval/model"
	base "github.com/OpenPMS/pms/internal/model"
)

func TestRequestService_CreateRequestInTx(t *testing.T) {
	mockRepo := new(MockRequestRepository)
	registry, sync := newTestRegistry()
	service := NewRequestService(nil, mockRepo, NewRequestStateMachine(mockRepo), registry)
	ctx := context.Background()

	template := newTwoStepTemplate()
	entityID := uuid.New()
	propertyID := uuid.New()
	requestedBy := uuid.New()

	mockRepo.On("CountOpenByEntityInTx", ctx, mock.Anything, model.EntityTypePropertyRelease, entityID).Return(int64(0), nil)
	mockRepo.On("CountOpenByPropertyInTx", ctx, mock.Anything, propertyID).Return(int64(0), nil)
	mockRepo.On("CreateRequestInTx", ctx, mock.Anything, mock.MatchedBy(func(req *model.ApprovalRequest) bool {
		return req.Status == model.RequestStatusPending &&
			req.CurrentStepOrder == 1 &&
			req.EntityID == entityID
	})).Return(nil)

	request, nextApprover, err := service.CreateRequestInTx(ctx, nil, template,
		model.EntityTypePropertyRelease, entityID, &propertyID, requestedBy)
	assert.NoError(t, err)
	assert.Equal(t, model.RequestStatusPending, request.Status)
	assert.Equal(t, 1, request.CurrentStepOrder)
	assert.Equal(t, "Supervisor", nextApprover)
	assert.Equal(t, 1, sync.created)
	mockRepo.AssertExpectations(t)
}

func TestRequestService_CreateRequestInTx_NilTemplate(t *testing.T) {
	service := NewRequestService(nil, new(MockRequestRepository), nil, NewSyncRegistry())

	_, _, err := service.CreateRequestInTx(context.Background(), nil, nil,
		model.EntityTypePropertyRelease, uuid.New(), nil, uuid.New())
	assert.ErrorIs(t, err, approval.ErrNoActiveWorkflow)
}

func TestRequestService_CreateRequestInTx_EmptyTemplate(t *testing.T) {
	service := NewRequestService(nil, new(MockRequestRepository), nil, NewSyncRegistry())
	template := &model.WorkflowTemplate{BaseModel: base.BaseModel{ID: uuid.New()}}

	_, _, err := service.CreateRequestInTx(context.Background(), nil, template,
		model.EntityTypePropertyRelease, uuid.New(), nil, uuid.New())
	assert.ErrorIs(t, err, approval.ErrWorkflowHasNoSteps)
}

func TestRequestService_CreateRequestInTx_DuplicateOpenRequest(t *testing.T) {
	mockRepo := new(MockRequestRepository)
	registry, _ := newTestRegistry()
	service := NewRequestService(nil, mockRepo, nil, registry)
	ctx := context.Background()

	template := newTwoStepTemplate()
	entityID := uuid.New()

	mockRepo.On("CountOpenByEntityInTx", ctx, mock.Anything, model.EntityTypePropertyRelease, entityID).Return(int64(1), nil)

	_, _, err := service.CreateRequestInTx(ctx, nil, template,
		model.EntityTypePropertyRelease, entityID, nil, uuid.New())
	assert.ErrorIs(t, err, approval.ErrEntityAlreadyInApproval)
	mockRepo.AssertNotCalled(t, "CreateRequestInTx")
}

func TestRequestService_CreateRequestInTx_PropertyBusyWithOtherTransaction(t *testing.T) {
	mockRepo := new(MockRequestRepository)
	registry, _ := newTestRegistry()
	service := NewRequestService(nil, mockRepo, nil, registry)
	ctx := context.Background()

	template := newTwoStepTemplate()
	entityID := uuid.New()
	propertyID := uuid.New()

	// No open request for this entity, but another transaction kind holds the
	// property
	mockRepo.On("CountOpenByEntityInTx", ctx, mock.Anything, model.EntityTypePropertyRelease, entityID).Return(int64(0), nil)
	mockRepo.On("CountOpenByPropertyInTx", ctx, mock.Anything, propertyID).Return(int64(1), nil)

	_, _, err := service.CreateRequestInTx(ctx, nil, template,
		model.EntityTypePropertyRelease, entityID, &propertyID, uuid.New())
	assert.ErrorIs(t, err, approval.ErrEntityAlreadyInApproval)
}

func TestRequestService_Cancel(t *testing.T) {
	db, sqlMock := setupTestDB(t)
	mockRepo := new(MockRequestRepository)
	registry, sync := newTestRegistry()
	service := NewRequestService(db, mockRepo, NewRequestStateMachine(mockRepo), registry)
	ctx := context.Background()

	template := newTwoStepTemplate()
	req := newRequestAt(template, model.RequestStatusInProgress, 2)
	actor := base.Actor{UserID: req.RequestedByID}

	sqlMock.ExpectBegin()
	mockRepo.On("GetRequestForUpdateInTx", ctx, mock.Anything, req.ID).Return(req, nil)
	mockRepo.On("TransitionInTx", ctx, mock.Anything, req.ID,
		model.RequestStatusInProgress, 2, model.RequestStatusCancelled, 2).Return(nil)
	sqlMock.ExpectCommit()

	status, err := service.Cancel(ctx, req.ID, actor)
	assert.NoError(t, err)
	assert.Equal(t, model.RequestStatusCancelled, status)
	assert.Equal(t, 1, sync.cancelled)
	mockRepo.AssertExpectations(t)
	assert.NoError(t, sqlMock.ExpectationsWereMet())
}

func TestRequestService_Cancel_TerminalRequestRefused(t *testing.T) {
	db, sqlMock := setupTestDB(t)
	mockRepo := new(MockRequestRepository)
	registry, _ := newTestRegistry()
	service := NewRequestService(db, mockRepo, NewRequestStateMachine(mockRepo), registry)
	ctx := context.Background()

	template := newTwoStepTemplate()
	req := newRequestAt(template, model.RequestStatusApproved, 3)

	sqlMock.ExpectBegin()
	mockRepo.On("GetRequestForUpdateInTx", ctx, mock.Anything, req.ID).Return(req, nil)
	sqlMock.ExpectRollback()

	_, err := service.Cancel(ctx, req.ID, base.Actor{UserID: uuid.New()})
	assert.ErrorIs(t, err, approval.ErrRequestNotCancellable)
}

func TestRequestService_ExpireStale(t *testing.T) {
	db, sqlMock := setupTestDB(t)
	mockRepo := new(MockRequestRepository)
	registry, sync := newTestRegistry()
	service := NewRequestService(db, mockRepo, NewRequestStateMachine(mockRepo), registry)
	ctx := context.Background()

	template := newTwoStepTemplate()
	stale := newRequestAt(template, model.RequestStatusPending, 1)
	answered := newRequestAt(template, model.RequestStatusApproved, 3)

	mockRepo.On("ListStaleOpenRequestIDs", ctx, mock.AnythingOfType("time.Time")).
		Return([]uuid.UUID{stale.ID, answered.ID}, nil)

	// First request expires
	sqlMock.ExpectBegin()
	mockRepo.On("GetRequestForUpdateInTx", ctx, mock.Anything, stale.ID).Return(stale, nil)
	mockRepo.On("TransitionInTx", ctx, mock.Anything, stale.ID,
		model.RequestStatusPending, 1, model.RequestStatusExpired, 1).Return(nil)
	sqlMock.ExpectCommit()

	// Second turned terminal between listing and locking; skipped
	sqlMock.ExpectBegin()
	mockRepo.On("GetRequestForUpdateInTx", ctx, mock.Anything, answered.ID).Return(answered, nil)
	sqlMock.ExpectCommit()

	expired, err := service.ExpireStale(ctx, 72*time.Hour)
	assert.NoError(t, err)
	assert.Equal(t, 1, expired)
	assert.Equal(t, 1, sync.expired)
	mockRepo.AssertExpectations(t)
	assert.NoError(t, sqlMock.ExpectationsWereMet())
}

func TestRequestService_GetWithHistory(t *testing.T) {
	mockRepo := new(MockRequestRepository)
	service := NewRequestService(nil, mockRepo, nil, NewSyncRegistry())
	ctx := context.Background()

	template := newTwoStepTemplate()
	req := newRequestAt(template, model.RequestStatusInProgress, 2)
	req.Responses = []model.ApprovalResponse{
		{
			ApprovalRequestID: req.ID,
			ApprovalStepID:    template.Steps[0].ID,
			StepOrder:         1,
			Status:            model.ResponseStatusApproved,
		},
	}

	mockRepo.On("GetRequestWithHistory", ctx, req.ID).Return(req, nil)

	history, err := service.GetWithHistory(ctx, req.ID)
	assert.NoError(t, err)
	assert.Len(t, history.Steps, 2)

	assert.Equal(t, "Supervisor Review", history.Steps[0].StepName)
	assert.False(t, history.Steps[0].IsCurrent)
	assert.NotNil(t, history.Steps[0].Response)

	assert.Equal(t, "Unit Head Approval", history.Steps[1].StepName)
	assert.True(t, history.Steps[1].IsCurrent)
	assert.Nil(t, history.Steps[1].Response)
}

func TestRequestService_GetWithHistory_TerminalHasNoCurrentStep(t *testing.T) {
	mockRepo := new(MockRequestRepository)
	service := NewRequestService(nil, mockRepo, nil, NewSyncRegistry())
	ctx := context.Background()

	template := newTwoStepTemplate()
	req := newRequestAt(template, model.RequestStatusRejected, 1)

	mockRepo.On("GetRequestWithHistory", ctx, req.ID).Return(req, nil)

	history, err := service.GetWithHistory(ctx, req.ID)
	assert.NoError(t, err)
	for _, step := range history.Steps {
		assert.False(t, step.IsCurrent)
	}
}
