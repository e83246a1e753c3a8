package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	appmodel "github.com/OpenPMS/pms/internal/approval/model"
	"github.com/OpenPMS/pms/internal/property/model"
)

// loadTransactionFunc loads one governed transaction of a specific kind
// inside an existing transaction.
type loadTransactionFunc func(ctx context.Context, tx *gorm.DB, id uuid.UUID) (model.GovernedTransaction, error)

// transactionSynchronizer implements the approval EntitySynchronizer contract
// for one governed transaction kind. Each kind registers its own instance;
// dispatch by entity type keeps the variants independent without a shared
// god-object entity model.
type transactionSynchronizer struct {
	entityType appmodel.EntityType
	properties *PropertyService
	movements  *MovementService
	load       loadTransactionFunc
}

func newTransactionSynchronizer(
	entityType appmodel.EntityType,
	properties *PropertyService,
	movements *MovementService,
	load loadTransactionFunc,
) *transactionSynchronizer {
	return &transactionSynchronizer{
		entityType: entityType,
		properties: properties,
		movements:  movements,
		load:       load,
	}
}

// OnRequestCreated moves the transaction and its property into UNDER_REVIEW
// and opens the movement ledger entry recording the pre-request status.
func (ts *transactionSynchronizer) OnRequestCreated(ctx context.Context, tx *gorm.DB, req *appmodel.ApprovalRequest) error {
	entity, err := ts.load(ctx, tx, req.EntityID)
	if err != nil {
		return err
	}

	property, err := ts.properties.GetForUpdateInTx(ctx, tx, entity.GetPropertyID())
	if err != nil {
		return err
	}
	priorStatus := property.Status

	entity.SetStatus(model.TransactionStatusUnderReview)
	if err := tx.WithContext(ctx).Save(entity).Error; err != nil {
		return fmt.Errorf("failed to update %s status: %w", ts.entityType, err)
	}

	if err := ts.properties.UpdateStatusInTx(ctx, tx, property.ID, model.PropertyStatusUnderReview); err != nil {
		return err
	}

	note := fmt.Sprintf("%s pending approval request %s", ts.entityType, req.ID)
	_, err = ts.movements.CreateInTx(ctx, tx, property.ID, ts.entityType, entity.GetID(), priorStatus, note)
	return err
}

// OnRequestApproved marks the transaction APPROVED. The property stays
// UNDER_REVIEW and the movement stays open until the transaction-specific
// completion call closes them.
func (ts *transactionSynchronizer) OnRequestApproved(ctx context.Context, tx *gorm.DB, req *appmodel.ApprovalRequest) error {
	return ts.setTransactionStatus(ctx, tx, req.EntityID, model.TransactionStatusApproved)
}

func (ts *transactionSynchronizer) OnRequestRejected(ctx context.Context, tx *gorm.DB, req *appmodel.ApprovalRequest) error {
	return ts.revert(ctx, tx, req.EntityID, model.TransactionStatusRejected)
}

func (ts *transactionSynchronizer) OnRequestCancelled(ctx context.Context, tx *gorm.DB, req *appmodel.ApprovalRequest) error {
	return ts.revert(ctx, tx, req.EntityID, model.TransactionStatusCancelled)
}

func (ts *transactionSynchronizer) OnRequestExpired(ctx context.Context, tx *gorm.DB, req *appmodel.ApprovalRequest) error {
	return ts.revert(ctx, tx, req.EntityID, model.TransactionStatusCancelled)
}

// revert terminates the transaction, closes the open movement and restores
// the property to its pre-request status.
func (ts *transactionSynchronizer) revert(ctx context.Context, tx *gorm.DB, entityID uuid.UUID, to model.TransactionStatus) error {
	if err := ts.setTransactionStatus(ctx, tx, entityID, to); err != nil {
		return err
	}

	movement, err := ts.movements.CloseOpenByReferenceInTx(ctx, tx, ts.entityType, entityID)
	if err != nil {
		return err
	}
	if movement == nil {
		return nil
	}
	return ts.properties.UpdateStatusInTx(ctx, tx, movement.PropertyID, movement.PriorPropertyStatus)
}

func (ts *transactionSynchronizer) setTransactionStatus(ctx context.Context, tx *gorm.DB, entityID uuid.UUID, to model.TransactionStatus) error {
	entity, err := ts.load(ctx, tx, entityID)
	if err != nil {
		return err
	}
	entity.SetStatus(to)
	if err := tx.WithContext(ctx).Save(entity).Error; err != nil {
		return fmt.Errorf("failed to update %s status: %w", ts.entityType, err)
	}
	return nil
}
