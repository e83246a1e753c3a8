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

// ReleaseService manages property release transactions and their approval
// binding.
type ReleaseService struct {
	deps *transactionDeps
}

func NewReleaseService(db *gorm.DB, properties *PropertyService, movements *MovementService,
	templates *apprsvc.TemplateService, requests *apprsvc.RequestService) *ReleaseService {
	return &ReleaseService{deps: &transactionDeps{
		db:         db,
		properties: properties,
		movements:  movements,
		templates:  templates,
		requests:   requests,
	}}
}

// Synchronizer returns the adapter to register for PROPERTY_RELEASE requests.
func (s *ReleaseService) Synchronizer() apprsvc.EntitySynchronizer {
	return newTransactionSynchronizer(
		appmodel.EntityTypePropertyRelease,
		s.deps.properties,
		s.deps.movements,
		loadRelease,
	)
}

// CreateWithApproval creates a release and its approval request atomically.
func (s *ReleaseService) CreateWithApproval(ctx context.Context, createReq *model.CreateReleaseDTO, actor base.Actor) (*model.CreateTransactionResult, error) {
	if createReq == nil {
		return nil, fmt.Errorf("create request cannot be nil")
	}

	return s.deps.createWithApproval(ctx, appmodel.EntityTypePropertyRelease, createReq.PropertyID, actor,
		func(tx *gorm.DB, property *model.Property) (model.GovernedTransaction, error) {
			if err := s.deps.userExists(ctx, tx, createReq.ReleasedToID); err != nil {
				return nil, err
			}

			release := &model.PropertyRelease{
				PropertyID:    property.ID,
				ReleasedToID:  createReq.ReleasedToID,
				Purpose:       createReq.Purpose,
				Status:        model.TransactionStatusPending,
				RequestedByID: actor.UserID,
			}
			if err := tx.Create(release).Error; err != nil {
				return nil, fmt.Errorf("failed to create property release: %w", err)
			}
			return release, nil
		})
}

// Complete finishes an approved release; the property becomes RELEASED.
func (s *ReleaseService) Complete(ctx context.Context, releaseID uuid.UUID) error {
	return s.deps.complete(ctx, appmodel.EntityTypePropertyRelease, releaseID, model.PropertyStatusReleased, loadRelease, nil)
}

// GetByID returns a release by its ID.
func (s *ReleaseService) GetByID(ctx context.Context, releaseID uuid.UUID) (*model.PropertyRelease, error) {
	var release model.PropertyRelease
	err := s.deps.db.WithContext(ctx).First(&release, "id = ?", releaseID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("property release %s not found", releaseID)
		}
		return nil, fmt.Errorf("failed to query property release: %w", err)
	}
	return &release, nil
}

func loadRelease(ctx context.Context, tx *gorm.DB, id uuid.UUID) (model.GovernedTransaction, error) {
	var release model.PropertyRelease
	err := tx.WithContext(ctx).First(&release, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("property release %s not found", id)
		}
		return nil, fmt.Errorf("failed to query property release: %w", err)
	}
	return &release, nil
}
