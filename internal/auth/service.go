package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/OpenPMS/pms/internal/model"
)

// AuthService resolves authenticated users into the explicit Actor every core
// operation takes, so the workflow core never reaches into session state.
type AuthService struct {
	db *gorm.DB
}

func NewAuthService(db *gorm.DB) *AuthService {
	return &AuthService{db: db}
}

// ResolveActor loads the user with their role and builds the Actor. Returns
// gorm.ErrRecordNotFound for unknown or deactivated users so the middleware
// can reject the request as unauthorized.
func (as *AuthService) ResolveActor(ctx context.Context, userID uuid.UUID) (*model.Actor, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user ID is empty")
	}

	var user model.User
	err := as.db.WithContext(ctx).
		Preload("Role").
		First(&user, "id = ? AND is_active = ?", userID, true).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			slog.Debug("user not found or inactive", "user_id", userID)
			return nil, err
		}
		slog.Error("failed to fetch user from database",
			"user_id", userID,
			"error", err,
		)
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}

	actor := model.ActorForUser(&user)
	return &actor, nil
}
