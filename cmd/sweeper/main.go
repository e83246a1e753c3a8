// Command sweeper closes open approval requests that have outlived the
// configured TTL. Run it from cron or a scheduler; the server process never
// expires requests on its own.
package main

import (
	"context"
	"log"
	"log/slog"
	"time"

	approvalmodel "github.com/OpenPMS/pms/internal/approval/model"
	apprsvc "github.com/OpenPMS/pms/internal/approval/service"
	"github.com/OpenPMS/pms/internal/config"
	"github.com/OpenPMS/pms/internal/database"
	propsvc "github.com/OpenPMS/pms/internal/property/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer func() {
		if err := database.Close(db); err != nil {
			slog.Error("failed to close database", "error", err)
		}
	}()

	// The sweep carries the same synchronizers as the server: expiring a
	// request reverts its entity inside the same transaction.
	requestRepo := apprsvc.NewRequestRepository(db)
	stateMachine := apprsvc.NewRequestStateMachine(requestRepo)
	syncRegistry := apprsvc.NewSyncRegistry()
	templateService := apprsvc.NewTemplateService(db)
	requests := apprsvc.NewRequestService(db, requestRepo, stateMachine, syncRegistry)

	propertyService := propsvc.NewPropertyService(db)
	movementService := propsvc.NewMovementService(db)
	releaseService := propsvc.NewReleaseService(db, propertyService, movementService, templateService, requests)
	turnoverService := propsvc.NewTurnoverService(db, propertyService, movementService, templateService, requests)
	returnService := propsvc.NewReturnService(db, propertyService, movementService, templateService, requests)

	syncRegistry.Register(approvalmodel.EntityTypePropertyRelease, releaseService.Synchronizer())
	syncRegistry.Register(approvalmodel.EntityTypePropertyTurnover, turnoverService.Synchronizer())
	syncRegistry.Register(approvalmodel.EntityTypePropertyReturn, returnService.Synchronizer())

	ttl := time.Duration(cfg.Approval.RequestTTLHours) * time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	expired, err := requests.ExpireStale(ctx, ttl)
	if err != nil {
		log.Fatalf("expiry sweep failed: %v", err)
	}

	slog.Info("expiry sweep finished", "expired", expired, "ttl_hours", cfg.Approval.RequestTTLHours)
}
