package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	appmodel "github.com/OpenPMS/pms/internal/approval/model"
	"github.com/OpenPMS/pms/internal/property/model"
)

func TestMovementService_OpenAndCloseByReference(t *testing.T) {
	db := setupSQLiteDB(t)
	service := NewMovementService(db)
	ctx := context.Background()

	unit := seedBusinessUnit(t, db)
	property := seedProperty(t, db, unit, "CTO-2026-0100", model.PropertyStatusActive)
	releaseID := uuid.New()

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := service.CreateInTx(ctx, tx, property.ID,
			appmodel.EntityTypePropertyRelease, releaseID,
			model.PropertyStatusActive, "release to end user")
		return err
	})
	require.NoError(t, err)

	var closed *model.PropertyMovement
	err = db.Transaction(func(tx *gorm.DB) error {
		var err error
		closed, err = service.CloseOpenByReferenceInTx(ctx, tx, appmodel.EntityTypePropertyRelease, releaseID)
		return err
	})
	assert.NoError(t, err)
	require.NotNil(t, closed)
	assert.Equal(t, model.MovementStatusClosed, closed.Status)
	// The ledger remembers what to revert the property to
	assert.Equal(t, model.PropertyStatusActive, closed.PriorPropertyStatus)
}

func TestMovementService_CloseOpenByReference_NothingOpen(t *testing.T) {
	db := setupSQLiteDB(t)
	service := NewMovementService(db)

	err := db.Transaction(func(tx *gorm.DB) error {
		movement, err := service.CloseOpenByReferenceInTx(context.Background(), tx,
			appmodel.EntityTypePropertyReturn, uuid.New())
		assert.Nil(t, movement)
		return err
	})
	assert.NoError(t, err)
}

func TestMovementService_ListByProperty(t *testing.T) {
	db := setupSQLiteDB(t)
	service := NewMovementService(db)
	ctx := context.Background()

	unit := seedBusinessUnit(t, db)
	property := seedProperty(t, db, unit, "CTO-2026-0101", model.PropertyStatusActive)
	other := seedProperty(t, db, unit, "CTO-2026-0102", model.PropertyStatusActive)

	err := db.Transaction(func(tx *gorm.DB) error {
		for _, p := range []*model.Property{property, property, other} {
			if _, err := service.CreateInTx(ctx, tx, p.ID,
				appmodel.EntityTypePropertyRelease, uuid.New(),
				model.PropertyStatusActive, ""); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	movements, err := service.ListByProperty(ctx, property.ID, nil, nil)
	assert.NoError(t, err)
	assert.Len(t, movements, 2)

	limit := 1
	limited, err := service.ListByProperty(ctx, property.ID, nil, &limit)
	assert.NoError(t, err)
	assert.Len(t, limited, 1)
}
