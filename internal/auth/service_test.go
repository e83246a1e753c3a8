package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/OpenPMS/pms/internal/model"
)

func setupAuthDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Role{}, &model.BusinessUnit{}, &model.User{}))
	return db
}

func TestAuthService_ResolveActor(t *testing.T) {
	db := setupAuthDB(t)
	service := NewAuthService(db)

	role := &model.Role{Name: "Supervisor", Level: 2}
	require.NoError(t, db.Create(role).Error)
	unit := &model.BusinessUnit{Name: "City Treasurer", Code: "CTO", IsActive: true}
	require.NoError(t, db.Create(unit).Error)
	user := &model.User{
		Email:          "supervisor@city.gov",
		FullName:       "Sam Supervisor",
		RoleID:         role.ID,
		BusinessUnitID: unit.ID,
		IsActive:       true,
	}
	require.NoError(t, db.Create(user).Error)

	actor, err := service.ResolveActor(context.Background(), user.ID)
	assert.NoError(t, err)
	assert.Equal(t, user.ID, actor.UserID)
	assert.Equal(t, role.ID, actor.RoleID)
	assert.Equal(t, "Supervisor", actor.RoleName)
	assert.Equal(t, 2, actor.RoleLevel)
	assert.False(t, actor.IsAdministrator)
	assert.Equal(t, unit.ID, actor.BusinessUnitID)
}

func TestAuthService_ResolveActor_InactiveUser(t *testing.T) {
	db := setupAuthDB(t)
	service := NewAuthService(db)

	role := &model.Role{Name: "Clerk", Level: 1}
	require.NoError(t, db.Create(role).Error)
	unit := &model.BusinessUnit{Name: "City Treasurer", Code: "CTO", IsActive: true}
	require.NoError(t, db.Create(unit).Error)
	user := &model.User{
		Email:          "former@city.gov",
		FullName:       "Former Employee",
		RoleID:         role.ID,
		BusinessUnitID: unit.ID,
		IsActive:       false,
	}
	require.NoError(t, db.Create(user).Error)

	_, err := service.ResolveActor(context.Background(), user.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestAuthService_ResolveActor_EmptyID(t *testing.T) {
	service := NewAuthService(nil)

	_, err := service.ResolveActor(context.Background(), uuid.Nil)
	assert.Error(t, err)
}
