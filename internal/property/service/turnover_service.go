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

// TurnoverService manages custody turnover transactions and their approval
// binding.
type TurnoverService struct {
	deps *transactionDeps
}

func NewTurnoverService(db *gorm.DB, properties *PropertyService, movements *MovementService,
	templates *apprsvc.TemplateService, requests *apprsvc.RequestService) *TurnoverService {
	return &TurnoverService{deps: &transactionDeps{
		db:         db,
		properties: properties,
		movements:  movements,
		templates:  templates,
		requests:   requests,
	}}
}

// Synchronizer returns the adapter to register for PROPERTY_TURNOVER requests.
func (s *TurnoverService) Synchronizer() apprsvc.EntitySynchronizer {
	return newTransactionSynchronizer(
		appmodel.EntityTypePropertyTurnover,
		s.deps.properties,
		s.deps.movements,
		loadTurnover,
	)
}

// CreateWithApproval creates a turnover and its approval request atomically.
// The current custodian is taken from the property record; a property without
// a custodian cannot be turned over.
func (s *TurnoverService) CreateWithApproval(ctx context.Context, createReq *model.CreateTurnoverDTO, actor base.Actor) (*model.CreateTransactionResult, error) {
	if createReq == nil {
		return nil, fmt.Errorf("create request cannot be nil")
	}

	return s.deps.createWithApproval(ctx, appmodel.EntityTypePropertyTurnover, createReq.PropertyID, actor,
		func(tx *gorm.DB, property *model.Property) (model.GovernedTransaction, error) {
			if property.CustodianID == nil {
				return nil, fmt.Errorf("%w: property %s has no custodian to turn over from", ErrPropertyNotAvailable, property.ID)
			}
			if err := s.deps.userExists(ctx, tx, createReq.ToCustodianID); err != nil {
				return nil, err
			}

			turnover := &model.PropertyTurnover{
				PropertyID:      property.ID,
				FromCustodianID: *property.CustodianID,
				ToCustodianID:   createReq.ToCustodianID,
				Reason:          createReq.Reason,
				Status:          model.TransactionStatusPending,
				RequestedByID:   actor.UserID,
			}
			if err := tx.Create(turnover).Error; err != nil {
				return nil, fmt.Errorf("failed to create property turnover: %w", err)
			}
			return turnover, nil
		})
}

// Complete finishes an approved turnover: the property becomes TURNED_OVER
// and custody moves to the receiving custodian, all in one transaction.
func (s *TurnoverService) Complete(ctx context.Context, turnoverID uuid.UUID) error {
	return s.deps.complete(ctx, appmodel.EntityTypePropertyTurnover, turnoverID, model.PropertyStatusTurnedOver, loadTurnover,
		func(tx *gorm.DB, entity model.GovernedTransaction) error {
			turnover := entity.(*model.PropertyTurnover)
			return tx.Model(&model.Property{}).
				Where("id = ?", turnover.PropertyID).
				Update("custodian_id", turnover.ToCustodianID).Error
		})
}

// GetByID returns a turnover by its ID.
func (s *TurnoverService) GetByID(ctx context.Context, turnoverID uuid.UUID) (*model.PropertyTurnover, error) {
	entity, err := loadTurnover(ctx, s.deps.db, turnoverID)
	if err != nil {
		return nil, err
	}
	return entity.(*model.PropertyTurnover), nil
}

func loadTurnover(ctx context.Context, tx *gorm.DB, id uuid.UUID) (model.GovernedTransaction, error) {
	var turnover model.PropertyTurnover
	err := tx.WithContext(ctx).First(&turnover, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("property turnover %s not found", id)
		}
		return nil, fmt.Errorf("failed to query property turnover: %w", err)
	}
	return &turnover, nil
}
