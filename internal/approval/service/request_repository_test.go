package service

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/OpenPMS/pms/internal/approval"
	"github.com/OpenPMS/pms/internal/approval/model"
)

func TestRequestRepository_TransitionInTx_GuardWins(t *testing.T) {
	db, sqlMock := setupTestDB(t)
	repo := NewRequestRepository(db)
	ctx := context.Background()

	requestID := uuid.New()
	sqlMock.ExpectBegin()
	tx := db.Begin()

	sqlMock.ExpectExec(`UPDATE "approval_requests" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.TransitionInTx(ctx, tx, requestID,
		model.RequestStatusPending, 1, model.RequestStatusInProgress, 2)
	assert.NoError(t, err)
}

func TestRequestRepository_TransitionInTx_GuardLoses(t *testing.T) {
	db, sqlMock := setupTestDB(t)
	repo := NewRequestRepository(db)
	ctx := context.Background()

	requestID := uuid.New()
	sqlMock.ExpectBegin()
	tx := db.Begin()

	// Another responder moved the request first; the conditional update
	// matches nothing
	sqlMock.ExpectExec(`UPDATE "approval_requests" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.TransitionInTx(ctx, tx, requestID,
		model.RequestStatusPending, 1, model.RequestStatusInProgress, 2)
	assert.ErrorIs(t, err, approval.ErrStepAlreadyAnswered)
}

func TestRequestRepository_HasResponseForStepInTx(t *testing.T) {
	db, sqlMock := setupTestDB(t)
	repo := NewRequestRepository(db)
	ctx := context.Background()

	sqlMock.ExpectBegin()
	tx := db.Begin()

	sqlMock.ExpectQuery(`SELECT count\(\*\) FROM "approval_responses"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	answered, err := repo.HasResponseForStepInTx(ctx, tx, uuid.New(), uuid.New())
	assert.NoError(t, err)
	assert.True(t, answered)
}

func TestRequestRepository_CountOpenByEntityInTx(t *testing.T) {
	db, sqlMock := setupTestDB(t)
	repo := NewRequestRepository(db)
	ctx := context.Background()

	sqlMock.ExpectBegin()
	tx := db.Begin()

	sqlMock.ExpectQuery(`SELECT count\(\*\) FROM "approval_requests"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	count, err := repo.CountOpenByEntityInTx(ctx, tx, model.EntityTypePropertyRelease, uuid.New())
	assert.NoError(t, err)
	assert.Zero(t, count)
}
