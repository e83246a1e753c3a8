package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"

	"github.com/OpenPMS/pms/internal/approval"
	"github.com/OpenPMS/pms/internal/approval/model"
	base "github.com/OpenPMS/pms/internal/model"
)

// recordingSynchronizer records which lifecycle hooks fired.
type recordingSynchronizer struct {
	created   int
	approved  int
	rejected  int
	cancelled int
	expired   int
}

func (r *recordingSynchronizer) OnRequestCreated(ctx context.Context, tx *gorm.DB, req *model.ApprovalRequest) error {
	r.created++
	return nil
}

func (r *recordingSynchronizer) OnRequestApproved(ctx context.Context, tx *gorm.DB, req *model.ApprovalRequest) error {
	r.approved++
	return nil
}

func (r *recordingSynchronizer) OnRequestRejected(ctx context.Context, tx *gorm.DB, req *model.ApprovalRequest) error {
	r.rejected++
	return nil
}

func (r *recordingSynchronizer) OnRequestCancelled(ctx context.Context, tx *gorm.DB, req *model.ApprovalRequest) error {
	r.cancelled++
	return nil
}

func (r *recordingSynchronizer) OnRequestExpired(ctx context.Context, tx *gorm.DB, req *model.ApprovalRequest) error {
	r.expired++
	return nil
}

func newTestRegistry() (*SyncRegistry, *recordingSynchronizer) {
	registry := NewSyncRegistry()
	sync := &recordingSynchronizer{}
	registry.Register(model.EntityTypePropertyRelease, sync)
	return registry, sync
}

func supervisorActor(template *model.WorkflowTemplate) base.Actor {
	return base.Actor{
		UserID:    uuid.New(),
		RoleID:    template.Steps[0].RoleID,
		RoleName:  "Supervisor",
		RoleLevel: 2,
	}
}

func TestResponseService_Respond_RejectRequiresComments(t *testing.T) {
	db, _ := setupTestDB(t)
	mockRepo := new(MockRequestRepository)
	registry, _ := newTestRegistry()
	service := NewResponseService(db, mockRepo, NewRequestStateMachine(mockRepo), registry)

	template := newTwoStepTemplate()
	req := newRequestAt(template, model.RequestStatusPending, 1)

	_, err := service.Respond(context.Background(), req.ID, supervisorActor(template), &model.RespondDTO{
		Action:   "reject",
		Comments: "   ",
	})
	assert.ErrorIs(t, err, approval.ErrCommentsRequired)
	// Validation fails before any transaction is opened
	mockRepo.AssertNotCalled(t, "GetRequestForUpdateInTx")
}

func TestResponseService_Respond_ApproveAdvancesToNextStep(t *testing.T) {
	db, sqlMock := setupTestDB(t)
	mockRepo := new(MockRequestRepository)
	registry, sync := newTestRegistry()
	service := NewResponseService(db, mockRepo, NewRequestStateMachine(mockRepo), registry)
	ctx := context.Background()

	template := newTwoStepTemplate()
	req := newRequestAt(template, model.RequestStatusPending, 1)
	actor := supervisorActor(template)

	sqlMock.ExpectBegin()
	mockRepo.On("GetRequestForUpdateInTx", ctx, mock.Anything, req.ID).Return(req, nil)
	mockRepo.On("HasResponseForStepInTx", ctx, mock.Anything, req.ID, template.Steps[0].ID).Return(false, nil)
	mockRepo.On("CreateResponseInTx", ctx, mock.Anything, mock.MatchedBy(func(resp *model.ApprovalResponse) bool {
		return resp.StepOrder == 1 &&
			resp.Status == model.ResponseStatusApproved &&
			!resp.IsOverride
	})).Return(nil)
	mockRepo.On("TransitionInTx", ctx, mock.Anything, req.ID,
		model.RequestStatusPending, 1, model.RequestStatusInProgress, 2).Return(nil)
	sqlMock.ExpectCommit()

	result, err := service.Respond(ctx, req.ID, actor, &model.RespondDTO{Action: "approve"})
	assert.NoError(t, err)
	assert.Equal(t, model.RequestStatusInProgress, result.NewStatus)
	assert.Equal(t, 2, result.CurrentStepOrder)
	assert.Equal(t, "Unit Head", result.NextApproverRole)
	// Advancing to a non-terminal status touches no entity
	assert.Zero(t, sync.approved)
	mockRepo.AssertExpectations(t)
	assert.NoError(t, sqlMock.ExpectationsWereMet())
}

func TestResponseService_Respond_UnauthorizedRole(t *testing.T) {
	db, sqlMock := setupTestDB(t)
	mockRepo := new(MockRequestRepository)
	registry, _ := newTestRegistry()
	service := NewResponseService(db, mockRepo, NewRequestStateMachine(mockRepo), registry)
	ctx := context.Background()

	template := newTwoStepTemplate()
	req := newRequestAt(template, model.RequestStatusPending, 1)
	// Unrelated role, below the override threshold of every step
	actor := base.Actor{RoleID: uuid.New(), RoleName: "Clerk", RoleLevel: 1}

	sqlMock.ExpectBegin()
	mockRepo.On("GetRequestForUpdateInTx", ctx, mock.Anything, req.ID).Return(req, nil)
	sqlMock.ExpectRollback()

	_, err := service.Respond(ctx, req.ID, actor, &model.RespondDTO{Action: "approve"})
	assert.ErrorIs(t, err, approval.ErrUnauthorized)
	mockRepo.AssertNotCalled(t, "CreateResponseInTx")
	assert.NoError(t, sqlMock.ExpectationsWereMet())
}

func TestResponseService_Respond_TerminalRequestRefused(t *testing.T) {
	db, sqlMock := setupTestDB(t)
	mockRepo := new(MockRequestRepository)
	registry, _ := newTestRegistry()
	service := NewResponseService(db, mockRepo, NewRequestStateMachine(mockRepo), registry)
	ctx := context.Background()

	template := newTwoStepTemplate()
	req := newRequestAt(template, model.RequestStatusRejected, 1)

	sqlMock.ExpectBegin()
	mockRepo.On("GetRequestForUpdateInTx", ctx, mock.Anything, req.ID).Return(req, nil)
	sqlMock.ExpectRollback()

	_, err := service.Respond(ctx, req.ID, supervisorActor(template), &model.RespondDTO{Action: "approve"})
	assert.ErrorIs(t, err, approval.ErrRequestNotPending)
}

func TestResponseService_Respond_StepAlreadyAnswered(t *testing.T) {
	db, sqlMock := setupTestDB(t)
	mockRepo := new(MockRequestRepository)
	registry, _ := newTestRegistry()
	service := NewResponseService(db, mockRepo, NewRequestStateMachine(mockRepo), registry)
	ctx := context.Background()

	template := newTwoStepTemplate()
	req := newRequestAt(template, model.RequestStatusPending, 1)

	sqlMock.ExpectBegin()
	mockRepo.On("GetRequestForUpdateInTx", ctx, mock.Anything, req.ID).Return(req, nil)
	mockRepo.On("HasResponseForStepInTx", ctx, mock.Anything, req.ID, template.Steps[0].ID).Return(true, nil)
	sqlMock.ExpectRollback()

	_, err := service.Respond(ctx, req.ID, supervisorActor(template), &model.RespondDTO{Action: "approve"})
	assert.ErrorIs(t, err, approval.ErrStepAlreadyAnswered)
	mockRepo.AssertNotCalled(t, "CreateResponseInTx")
}

func TestResponseService_Respond_OverrideOnFinalStep(t *testing.T) {
	db, sqlMock := setupTestDB(t)
	mockRepo := new(MockRequestRepository)
	registry, sync := newTestRegistry()
	service := NewResponseService(db, mockRepo, NewRequestStateMachine(mockRepo), registry)
	ctx := context.Background()

	template := newTwoStepTemplate()
	req := newRequestAt(template, model.RequestStatusInProgress, 2)
	// Different role than the step's, but at the override threshold
	actor := base.Actor{RoleID: uuid.New(), RoleName: "Director", RoleLevel: 5}

	sqlMock.ExpectBegin()
	mockRepo.On("GetRequestForUpdateInTx", ctx, mock.Anything, req.ID).Return(req, nil)
	mockRepo.On("HasResponseForStepInTx", ctx, mock.Anything, req.ID, template.Steps[1].ID).Return(false, nil)
	mockRepo.On("CreateResponseInTx", ctx, mock.Anything, mock.MatchedBy(func(resp *model.ApprovalResponse) bool {
		// Answering another role's step is an override even without asking
		return resp.IsOverride
	})).Return(nil)
	mockRepo.On("TransitionInTx", ctx, mock.Anything, req.ID,
		model.RequestStatusInProgress, 2, model.RequestStatusOverridden, 3).Return(nil)
	sqlMock.ExpectCommit()

	result, err := service.Respond(ctx, req.ID, actor, &model.RespondDTO{Action: "approve"})
	assert.NoError(t, err)
	assert.Equal(t, model.RequestStatusOverridden, result.NewStatus)
	assert.Empty(t, result.NextApproverRole)
	// OVERRIDDEN completes the chain like APPROVED does
	assert.Equal(t, 1, sync.approved)
	mockRepo.AssertExpectations(t)
}

func TestResponseService_CanRespond(t *testing.T) {
	service := NewResponseService(nil, nil, nil, nil)
	template := newTwoStepTemplate()

	overrideStep := template.StepAt(2) // CanOverride, OverrideMinLevel 4
	plainStep := template.StepAt(1)
	otherRole := uuid.New()

	tests := []struct {
		name   string
		status model.RequestStatus
		step   *model.ApprovalStep
		actor  base.Actor
		want   bool
	}{
		{
			name:   "exact role match",
			status: model.RequestStatusPending,
			step:   plainStep,
			actor:  base.Actor{RoleID: plainStep.RoleID, RoleLevel: 2},
			want:   true,
		},
		{
			name:   "wrong role, no override on step",
			status: model.RequestStatusPending,
			step:   plainStep,
			actor:  base.Actor{RoleID: otherRole, RoleLevel: 9},
			want:   false,
		},
		{
			name:   "override role at threshold",
			status: model.RequestStatusInProgress,
			step:   overrideStep,
			actor:  base.Actor{RoleID: otherRole, RoleLevel: 4},
			want:   true,
		},
		{
			name:   "override role below threshold",
			status: model.RequestStatusInProgress,
			step:   overrideStep,
			actor:  base.Actor{RoleID: otherRole, RoleLevel: 3},
			want:   false,
		},
		{
			name:   "administrator bypasses role binding",
			status: model.RequestStatusPending,
			step:   plainStep,
			actor:  base.Actor{RoleID: otherRole, RoleLevel: 0, IsAdministrator: true},
			want:   true,
		},
		{
			name:   "terminal request always refuses",
			status: model.RequestStatusApproved,
			step:   plainStep,
			actor:  base.Actor{RoleID: plainStep.RoleID, RoleLevel: 2},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newRequestAt(template, tt.status, tt.step.StepOrder)
			assert.Equal(t, tt.want, service.CanRespond(req, tt.step, tt.actor))
		})
	}
}
