package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	appmodel "github.com/OpenPMS/pms/internal/approval/model"
	"github.com/OpenPMS/pms/internal/property/model"
	"github.com/OpenPMS/pms/utils"
)

// MovementService maintains the property movement ledger.
type MovementService struct {
	db *gorm.DB
}

func NewMovementService(db *gorm.DB) *MovementService {
	return &MovementService{db: db}
}

// CreateInTx opens a ledger entry for a transaction entering approval,
// remembering the property status to revert to if the request fails.
func (s *MovementService) CreateInTx(
	ctx context.Context,
	tx *gorm.DB,
	propertyID uuid.UUID,
	referenceType appmodel.EntityType,
	referenceID uuid.UUID,
	priorStatus model.PropertyStatus,
	notes string,
) (*model.PropertyMovement, error) {
	movement := &model.PropertyMovement{
		PropertyID:          propertyID,
		ReferenceType:       referenceType,
		ReferenceID:         referenceID,
		Status:              model.MovementStatusOpen,
		PriorPropertyStatus: priorStatus,
		Notes:               notes,
	}
	if err := tx.WithContext(ctx).Create(movement).Error; err != nil {
		return nil, fmt.Errorf("failed to create property movement: %w", err)
	}
	return movement, nil
}

// CloseOpenByReferenceInTx closes the open ledger entry for a transaction and
// returns it so callers can read the prior property status. Returns nil when
// no entry is open.
func (s *MovementService) CloseOpenByReferenceInTx(
	ctx context.Context,
	tx *gorm.DB,
	referenceType appmodel.EntityType,
	referenceID uuid.UUID,
) (*model.PropertyMovement, error) {
	var movement model.PropertyMovement
	err := tx.WithContext(ctx).
		First(&movement, "reference_type = ? AND reference_id = ? AND status = ?",
			referenceType, referenceID, model.MovementStatusOpen).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query open property movement: %w", err)
	}

	movement.Status = model.MovementStatusClosed
	if err := tx.WithContext(ctx).Save(&movement).Error; err != nil {
		return nil, fmt.Errorf("failed to close property movement: %w", err)
	}
	return &movement, nil
}

// ListByProperty returns ledger entries for a property, newest first.
func (s *MovementService) ListByProperty(ctx context.Context, propertyID uuid.UUID, offset, limit *int) ([]model.PropertyMovement, error) {
	var movements []model.PropertyMovement
	err := s.db.WithContext(ctx).
		Where("property_id = ?", propertyID).
		Order("created_at DESC").
		Scopes(utils.Paginate(offset, limit)).
		Find(&movements).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list property movements: %w", err)
	}
	return movements, nil
}
