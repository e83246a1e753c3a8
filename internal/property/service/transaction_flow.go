package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/OpenPMS/pms/internal/approval"
	appmodel "github.com/OpenPMS/pms/internal/approval/model"
	apprsvc "github.com/OpenPMS/pms/internal/approval/service"
	base "github.com/OpenPMS/pms/internal/model"
	"github.com/OpenPMS/pms/internal/property/model"
)

// transactionDeps bundles the collaborators shared by the release, turnover
// and return services.
type transactionDeps struct {
	db         *gorm.DB
	properties *PropertyService
	movements  *MovementService
	templates  *apprsvc.TemplateService
	requests   *apprsvc.RequestService
}

// createWithApproval creates the governed transaction, looks up the active
// workflow and opens the approval request in one database transaction. The
// build closure inserts the transaction row; the
// property row lock taken first serializes competing creations for the same
// property.
func (d *transactionDeps) createWithApproval(
	ctx context.Context,
	entityType appmodel.EntityType,
	propertyID uuid.UUID,
	actor base.Actor,
	build func(tx *gorm.DB, property *model.Property) (model.GovernedTransaction, error),
) (*model.CreateTransactionResult, error) {
	var result *model.CreateTransactionResult

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		property, err := d.properties.GetForUpdateInTx(ctx, tx, propertyID)
		if err != nil {
			return err
		}

		template, err := d.templates.FindActiveTemplateInTx(ctx, tx, entityType)
		if err != nil {
			return err
		}

		entity, err := build(tx, property)
		if err != nil {
			return err
		}

		request, nextApprover, err := d.requests.CreateRequestInTx(
			ctx, tx, template, entityType, entity.GetID(), &propertyID, actor.UserID)
		if err != nil {
			return err
		}

		result = &model.CreateTransactionResult{
			EntityID:         entity.GetID(),
			RequestID:        request.ID,
			NextApproverRole: nextApprover,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "governed transaction created",
		"entity_type", entityType,
		"entity_id", result.EntityID,
		"request_id", result.RequestID,
		"requested_by", actor.UserID,
	)
	return result, nil
}

// complete finishes an APPROVED transaction: the transaction row moves to
// COMPLETED, the open movement closes and the property takes the
// transaction's completed status. This is the entity-specific step that ends
// the "still open" window of an APPROVED request.
func (d *transactionDeps) complete(
	ctx context.Context,
	entityType appmodel.EntityType,
	entityID uuid.UUID,
	completedStatus model.PropertyStatus,
	load loadTransactionFunc,
	afterComplete func(tx *gorm.DB, entity model.GovernedTransaction) error,
) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entity, err := load(ctx, tx, entityID)
		if err != nil {
			return err
		}
		if entity.GetStatus() != model.TransactionStatusApproved {
			return fmt.Errorf("%w: %s %s is %s", ErrTransactionNotApproved, entityType, entityID, entity.GetStatus())
		}

		entity.SetStatus(model.TransactionStatusCompleted)
		if err := tx.WithContext(ctx).Save(entity).Error; err != nil {
			return fmt.Errorf("failed to complete %s: %w", entityType, err)
		}

		if _, err := d.movements.CloseOpenByReferenceInTx(ctx, tx, entityType, entityID); err != nil {
			return err
		}

		if err := d.properties.UpdateStatusInTx(ctx, tx, entity.GetPropertyID(), completedStatus); err != nil {
			return err
		}

		if afterComplete != nil {
			return afterComplete(tx, entity)
		}
		return nil
	})
}

// userExists validates a user reference inside the creation transaction.
func (d *transactionDeps) userExists(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error {
	var count int64
	if err := tx.WithContext(ctx).Model(&base.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to validate user reference: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("%w: user %s", approval.ErrInvalidEntityReference, userID)
	}
	return nil
}
