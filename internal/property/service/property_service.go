package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/OpenPMS/pms/internal/approval"
	base "github.com/OpenPMS/pms/internal/model"
	"github.com/OpenPMS/pms/internal/property/model"
	"github.com/OpenPMS/pms/utils"
)

// PropertyService provides property registry operations and the locked reads
// the transaction flows build on.
type PropertyService struct {
	db *gorm.DB
}

func NewPropertyService(db *gorm.DB) *PropertyService {
	return &PropertyService{db: db}
}

// Create registers a property in ACTIVE status after validating its business
// unit reference.
func (s *PropertyService) Create(ctx context.Context, createReq *model.CreatePropertyDTO) (*model.Property, error) {
	if createReq == nil {
		return nil, fmt.Errorf("create request cannot be nil")
	}

	var unitCount int64
	if err := s.db.WithContext(ctx).Model(&base.BusinessUnit{}).
		Where("id = ?", createReq.BusinessUnitID).Count(&unitCount).Error; err != nil {
		return nil, fmt.Errorf("failed to validate business unit: %w", err)
	}
	if unitCount == 0 {
		return nil, fmt.Errorf("%w: business unit %s", approval.ErrInvalidEntityReference, createReq.BusinessUnitID)
	}

	property := &model.Property{
		TagNumber:      createReq.TagNumber,
		Name:           createReq.Name,
		Description:    createReq.Description,
		Status:         model.PropertyStatusActive,
		BusinessUnitID: createReq.BusinessUnitID,
		CustodianID:    createReq.CustodianID,
	}
	if err := s.db.WithContext(ctx).Create(property).Error; err != nil {
		return nil, fmt.Errorf("failed to create property: %w", err)
	}
	return property, nil
}

// GetByID returns a property by its ID.
func (s *PropertyService) GetByID(ctx context.Context, propertyID uuid.UUID) (*model.Property, error) {
	var property model.Property
	err := s.db.WithContext(ctx).First(&property, "id = ?", propertyID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: property %s", approval.ErrInvalidEntityReference, propertyID)
		}
		return nil, fmt.Errorf("failed to query property: %w", err)
	}
	return &property, nil
}

// GetForUpdateInTx loads a property under a row lock. The transaction flows
// serialize on the property row so two concurrent movement creations for the
// same property cannot both pass the open-request check.
func (s *PropertyService) GetForUpdateInTx(ctx context.Context, tx *gorm.DB, propertyID uuid.UUID) (*model.Property, error) {
	var property model.Property
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&property, "id = ?", propertyID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: property %s", approval.ErrInvalidEntityReference, propertyID)
		}
		return nil, fmt.Errorf("failed to query property: %w", err)
	}
	return &property, nil
}

// UpdateStatusInTx sets a property's status within an existing transaction.
func (s *PropertyService) UpdateStatusInTx(ctx context.Context, tx *gorm.DB, propertyID uuid.UUID, status model.PropertyStatus) error {
	result := tx.WithContext(ctx).Model(&model.Property{}).
		Where("id = ?", propertyID).
		Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("failed to update property status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: property %s", approval.ErrInvalidEntityReference, propertyID)
	}
	return nil
}

// List returns properties matching the filter.
func (s *PropertyService) List(ctx context.Context, filter model.PropertyFilter) ([]model.Property, error) {
	query := s.db.WithContext(ctx).Model(&model.Property{})
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.BusinessUnitID != nil {
		query = query.Where("business_unit_id = ?", *filter.BusinessUnitID)
	}

	var properties []model.Property
	if err := query.Order("created_at DESC").Scopes(utils.Paginate(filter.Offset, filter.Limit)).Find(&properties).Error; err != nil {
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}
	return properties, nil
}
