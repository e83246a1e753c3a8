package service

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/OpenPMS/pms/internal/approval"
	"github.com/OpenPMS/pms/internal/approval/model"
)

// setupTestDB opens a gorm connection backed by sqlmock. TranslateError is on
// to match the production connection.
func setupTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	return db, sqlMock
}

func TestTemplateService_FindActiveTemplate_NoneConfigured(t *testing.T) {
	db, sqlMock := setupTestDB(t)
	service := NewTemplateService(db)

	sqlMock.ExpectQuery(`SELECT \* FROM "workflow_templates"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "entity_type", "is_active"}))

	_, err := service.FindActiveTemplate(context.Background(), model.EntityTypePropertyRelease)
	assert.ErrorIs(t, err, approval.ErrNoActiveWorkflow)
}

func TestTemplateService_FindActiveTemplate_EmptyTemplateRefused(t *testing.T) {
	db, sqlMock := setupTestDB(t)
	service := NewTemplateService(db)

	templateID := uuid.New()
	sqlMock.ExpectQuery(`SELECT \* FROM "workflow_templates"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "entity_type", "is_active"}).
			AddRow(templateID, "Release Approval", "PROPERTY_RELEASE", true))
	// Steps preload finds nothing
	sqlMock.ExpectQuery(`SELECT \* FROM "approval_steps"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "workflow_template_id", "step_order"}))

	_, err := service.FindActiveTemplate(context.Background(), model.EntityTypePropertyRelease)
	assert.ErrorIs(t, err, approval.ErrWorkflowHasNoSteps)
}

func TestTemplateService_CreateTemplate_Validation(t *testing.T) {
	service := NewTemplateService(nil)
	ctx := context.Background()

	_, err := service.CreateTemplate(ctx, nil)
	assert.Error(t, err)

	_, err = service.CreateTemplate(ctx, &model.CreateTemplateDTO{
		Name:       "Empty",
		EntityType: model.EntityTypePropertyRelease,
	})
	assert.ErrorIs(t, err, approval.ErrWorkflowHasNoSteps)

	_, err = service.CreateTemplate(ctx, &model.CreateTemplateDTO{
		Name:       "Bad Override",
		EntityType: model.EntityTypePropertyRelease,
		Steps: []model.CreateStepDTO{
			{StepOrder: 1, StepName: "Review", RoleID: uuid.New(), CanOverride: true},
		},
	})
	assert.ErrorContains(t, err, "override")
}

func TestNormalizeStepOrders(t *testing.T) {
	steps := []model.ApprovalStep{
		{StepName: "Third", StepOrder: 9},
		{StepName: "First", StepOrder: 1},
		{StepName: "Second", StepOrder: 4},
	}

	normalizeStepOrders(steps)

	assert.Equal(t, "First", steps[0].StepName)
	assert.Equal(t, "Second", steps[1].StepName)
	assert.Equal(t, "Third", steps[2].StepName)
	for i, step := range steps {
		assert.Equal(t, i+1, step.StepOrder)
	}
}

func TestNormalizeStepOrders_StableForTies(t *testing.T) {
	steps := []model.ApprovalStep{
		{StepName: "A", StepOrder: 2},
		{StepName: "B", StepOrder: 2},
		{StepName: "C", StepOrder: 1},
	}

	normalizeStepOrders(steps)

	assert.Equal(t, []string{"C", "A", "B"},
		[]string{steps[0].StepName, steps[1].StepName, steps[2].StepName})
}
