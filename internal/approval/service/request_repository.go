package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/OpenPMS/pms/internal/approval"
	"github.com/OpenPMS/pms/internal/approval/model"
	"github.com/OpenPMS/pms/utils"
)

// RequestRepository abstracts persistence for approval requests and their
// responses so the state machine and response processor can be tested with
// mocks.
type RequestRepository interface {
	CreateRequestInTx(ctx context.Context, tx *gorm.DB, req *model.ApprovalRequest) error
	CreateResponseInTx(ctx context.Context, tx *gorm.DB, resp *model.ApprovalResponse) error

	// GetRequestForUpdateInTx loads a request with its template, steps, step
	// roles and response history under a row-level lock. Authorization and
	// advancement decisions must read this locked row, never a stale copy.
	GetRequestForUpdateInTx(ctx context.Context, tx *gorm.DB, requestID uuid.UUID) (*model.ApprovalRequest, error)

	// TransitionInTx applies a conditional update on (status, current step):
	// the row is only written when it still carries the from-values, so only
	// one of two racing responders can win. Returns ErrStepAlreadyAnswered
	// when the guard matches no row.
	TransitionInTx(ctx context.Context, tx *gorm.DB, requestID uuid.UUID,
		fromStatus model.RequestStatus, fromStep int,
		toStatus model.RequestStatus, toStep int) error

	HasResponseForStepInTx(ctx context.Context, tx *gorm.DB, requestID, stepID uuid.UUID) (bool, error)
	CountOpenByPropertyInTx(ctx context.Context, tx *gorm.DB, propertyID uuid.UUID) (int64, error)
	CountOpenByEntityInTx(ctx context.Context, tx *gorm.DB, entityType model.EntityType, entityID uuid.UUID) (int64, error)

	GetRequestWithHistory(ctx context.Context, requestID uuid.UUID) (*model.ApprovalRequest, error)
	ListRequests(ctx context.Context, filter model.RequestFilter) ([]model.ApprovalRequest, error)
	ListStaleOpenRequestIDs(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)
}

// openStatuses are the request statuses that keep an entity "in approval".
// APPROVED and OVERRIDDEN stay open until the entity-specific completion call
// closes the transaction.
var openStatuses = []model.RequestStatus{
	model.RequestStatusPending,
	model.RequestStatusInProgress,
	model.RequestStatusApproved,
	model.RequestStatusOverridden,
}

type gormRequestRepository struct {
	db *gorm.DB
}

// NewRequestRepository creates the gorm-backed RequestRepository.
func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &gormRequestRepository{db: db}
}

func (r *gormRequestRepository) CreateRequestInTx(ctx context.Context, tx *gorm.DB, req *model.ApprovalRequest) error {
	if err := tx.WithContext(ctx).Create(req).Error; err != nil {
		return fmt.Errorf("failed to create approval request: %w", err)
	}
	return nil
}

func (r *gormRequestRepository) CreateResponseInTx(ctx context.Context, tx *gorm.DB, resp *model.ApprovalResponse) error {
	if err := tx.WithContext(ctx).Create(resp).Error; err != nil {
		// The unique index on (request, step) backs the duplicate check even
		// if two responders slip past the lookup.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return approval.ErrStepAlreadyAnswered
		}
		return fmt.Errorf("failed to create approval response: %w", err)
	}
	return nil
}

func (r *gormRequestRepository) GetRequestForUpdateInTx(ctx context.Context, tx *gorm.DB, requestID uuid.UUID) (*model.ApprovalRequest, error) {
	var req model.ApprovalRequest
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Table: clause.Table{Name: req.TableName()}}).
		Preload("WorkflowTemplate").
		Preload("WorkflowTemplate.Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("step_order ASC")
		}).
		Preload("WorkflowTemplate.Steps.Role").
		Preload("Responses").
		First(&req, "id = ?", requestID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("approval request %s not found: %w", requestID, err)
		}
		return nil, fmt.Errorf("failed to load approval request: %w", err)
	}
	return &req, nil
}

func (r *gormRequestRepository) TransitionInTx(ctx context.Context, tx *gorm.DB, requestID uuid.UUID,
	fromStatus model.RequestStatus, fromStep int,
	toStatus model.RequestStatus, toStep int) error {

	result := tx.WithContext(ctx).Model(&model.ApprovalRequest{}).
		Where("id = ? AND status = ? AND current_step_order = ?", requestID, fromStatus, fromStep).
		Updates(map[string]interface{}{
			"status":             toStatus,
			"current_step_order": toStep,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to transition approval request %s: %w", requestID, result.Error)
	}
	if result.RowsAffected == 0 {
		return approval.ErrStepAlreadyAnswered
	}
	return nil
}

func (r *gormRequestRepository) HasResponseForStepInTx(ctx context.Context, tx *gorm.DB, requestID, stepID uuid.UUID) (bool, error) {
	var count int64
	err := tx.WithContext(ctx).Model(&model.ApprovalResponse{}).
		Where("approval_request_id = ? AND approval_step_id = ?", requestID, stepID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to count responses for step: %w", err)
	}
	return count > 0, nil
}

func (r *gormRequestRepository) CountOpenByPropertyInTx(ctx context.Context, tx *gorm.DB, propertyID uuid.UUID) (int64, error) {
	var count int64
	err := tx.WithContext(ctx).Model(&model.ApprovalRequest{}).
		Where("property_id = ? AND status IN ?", propertyID, openStatuses).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count open requests for property: %w", err)
	}
	return count, nil
}

func (r *gormRequestRepository) CountOpenByEntityInTx(ctx context.Context, tx *gorm.DB, entityType model.EntityType, entityID uuid.UUID) (int64, error) {
	var count int64
	err := tx.WithContext(ctx).Model(&model.ApprovalRequest{}).
		Where("entity_type = ? AND entity_id = ? AND status IN ?", entityType, entityID, openStatuses).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count open requests for entity: %w", err)
	}
	return count, nil
}

func (r *gormRequestRepository) GetRequestWithHistory(ctx context.Context, requestID uuid.UUID) (*model.ApprovalRequest, error) {
	var req model.ApprovalRequest
	err := r.db.WithContext(ctx).
		Preload("WorkflowTemplate").
		Preload("WorkflowTemplate.Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("step_order ASC")
		}).
		Preload("WorkflowTemplate.Steps.Role").
		Preload("Responses", func(db *gorm.DB) *gorm.DB {
			return db.Order("step_order ASC")
		}).
		Preload("Responses.ApprovalStep").
		First(&req, "id = ?", requestID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("approval request %s not found: %w", requestID, err)
		}
		return nil, fmt.Errorf("failed to load approval request: %w", err)
	}
	return &req, nil
}

func (r *gormRequestRepository) ListRequests(ctx context.Context, filter model.RequestFilter) ([]model.ApprovalRequest, error) {
	query := r.db.WithContext(ctx).Model(&model.ApprovalRequest{})
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.EntityType != nil {
		query = query.Where("entity_type = ?", *filter.EntityType)
	}
	if filter.PropertyID != nil {
		query = query.Where("property_id = ?", *filter.PropertyID)
	}

	var requests []model.ApprovalRequest
	err := query.Order("created_at DESC").Scopes(utils.Paginate(filter.Offset, filter.Limit)).Find(&requests).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list approval requests: %w", err)
	}
	return requests, nil
}

func (r *gormRequestRepository) ListStaleOpenRequestIDs(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&model.ApprovalRequest{}).
		Where("status IN ? AND created_at < ?", []model.RequestStatus{model.RequestStatusPending, model.RequestStatusInProgress}, cutoff).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list stale approval requests: %w", err)
	}
	return ids, nil
}
