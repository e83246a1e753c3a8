package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	appmodel "github.com/OpenPMS/pms/internal/approval/model"
	apprsvc "github.com/OpenPMS/pms/internal/approval/service"
	base "github.com/OpenPMS/pms/internal/model"
	"github.com/OpenPMS/pms/internal/property/model"
)

// ReturnService manages property return transactions and their approval
// binding.
type ReturnService struct {
	deps *transactionDeps
}

func NewReturnService(db *gorm.DB, properties *PropertyService, movements *MovementService,
	templates *apprsvc.TemplateService, requests *apprsvc.RequestService) *ReturnService {
	return &ReturnService{deps: &transactionDeps{
		db:         db,
		properties: properties,
		movements:  movements,
		templates:  templates,
		requests:   requests,
	}}
}

// Synchronizer returns the adapter to register for PROPERTY_RETURN requests.
func (s *ReturnService) Synchronizer() apprsvc.EntitySynchronizer {
	return newTransactionSynchronizer(
		appmodel.EntityTypePropertyReturn,
		s.deps.properties,
		s.deps.movements,
		loadReturn,
	)
}

// CreateWithApproval creates a return and its approval request atomically.
// Only released or turned-over properties can be returned.
func (s *ReturnService) CreateWithApproval(ctx context.Context, createReq *model.CreateReturnDTO, actor base.Actor) (*model.CreateTransactionResult, error) {
	if createReq == nil {
		return nil, fmt.Errorf("create request cannot be nil")
	}

	return s.deps.createWithApproval(ctx, appmodel.EntityTypePropertyReturn, createReq.PropertyID, actor,
		func(tx *gorm.DB, property *model.Property) (model.GovernedTransaction, error) {
			if property.Status != model.PropertyStatusReleased && property.Status != model.PropertyStatusTurnedOver {
				return nil, fmt.Errorf("%w: property %s in status %s cannot be returned", ErrPropertyNotAvailable, property.ID, property.Status)
			}

			propertyReturn := &model.PropertyReturn{
				PropertyID:    property.ID,
				ReturnedByID:  actor.UserID,
				Condition:     createReq.Condition,
				Reason:        createReq.Reason,
				Status:        model.TransactionStatusPending,
				RequestedByID: actor.UserID,
			}
			if err := tx.Create(propertyReturn).Error; err != nil {
				return nil, fmt.Errorf("failed to create property return: %w", err)
			}
			return propertyReturn, nil
		})
}

// Complete finishes an approved return; the property re-enters ACTIVE status.
func (s *ReturnService) Complete(ctx context.Context, returnID uuid.UUID) error {
	return s.deps.complete(ctx, appmodel.EntityTypePropertyReturn, returnID, model.PropertyStatusActive, loadReturn, nil)
}

// GetByID returns a return transaction by its ID.
func (s *ReturnService) GetByID(ctx context.Context, returnID uuid.UUID) (*model.PropertyReturn, error) {
	entity, err := loadReturn(ctx, s.deps.db, returnID)
	if err != nil {
		return nil, err
	}
	return entity.(*model.PropertyReturn), nil
}

func loadReturn(ctx context.Context, tx *gorm.DB, id uuid.UUID) (model.GovernedTransaction, error) {
	var propertyReturn model.PropertyReturn
	err := tx.WithContext(ctx).First(&propertyReturn, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("property return %s not found", id)
		}
		return nil, fmt.Errorf("failed to query property return: %w", err)
	}
	return &propertyReturn, nil
}
