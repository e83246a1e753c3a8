package service

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/OpenPMS/pms/internal/approval/model"
)

// EntitySynchronizer mirrors approval request lifecycle transitions onto the
// governed business entity. One implementation is registered per entity type;
// every hook runs inside the same transaction as the request mutation so the
// entity and the request can never be persisted out of sync.
type EntitySynchronizer interface {
	// OnRequestCreated puts the entity into its awaiting-approval status and
	// opens a movement record.
	OnRequestCreated(ctx context.Context, tx *gorm.DB, req *model.ApprovalRequest) error

	// OnRequestApproved moves the entity to its approved status. Also invoked
	// for OVERRIDDEN, which completes the chain the same way.
	OnRequestApproved(ctx context.Context, tx *gorm.DB, req *model.ApprovalRequest) error

	// OnRequestRejected reverts the entity to its pre-request status.
	OnRequestRejected(ctx context.Context, tx *gorm.DB, req *model.ApprovalRequest) error

	// OnRequestCancelled reverts the entity and closes the open movement.
	OnRequestCancelled(ctx context.Context, tx *gorm.DB, req *model.ApprovalRequest) error

	// OnRequestExpired reverts the entity after the external expiry sweep.
	OnRequestExpired(ctx context.Context, tx *gorm.DB, req *model.ApprovalRequest) error
}

// SyncRegistry dispatches lifecycle events to the synchronizer registered for
// the request's entity type.
type SyncRegistry struct {
	synchronizers map[model.EntityType]EntitySynchronizer
}

func NewSyncRegistry() *SyncRegistry {
	return &SyncRegistry{synchronizers: make(map[model.EntityType]EntitySynchronizer)}
}

// Register binds a synchronizer to an entity type. Later registrations for
// the same type replace earlier ones.
func (r *SyncRegistry) Register(entityType model.EntityType, sync EntitySynchronizer) {
	r.synchronizers[entityType] = sync
}

func (r *SyncRegistry) forRequest(req *model.ApprovalRequest) (EntitySynchronizer, error) {
	sync, ok := r.synchronizers[req.EntityType]
	if !ok {
		return nil, fmt.Errorf("no entity synchronizer registered for entity type %s", req.EntityType)
	}
	return sync, nil
}

// NotifyCreated dispatches the creation event.
func (r *SyncRegistry) NotifyCreated(ctx context.Context, tx *gorm.DB, req *model.ApprovalRequest) error {
	sync, err := r.forRequest(req)
	if err != nil {
		return err
	}
	return sync.OnRequestCreated(ctx, tx, req)
}

// NotifyStatus dispatches the event matching a newly persisted request
// status. Non-terminal statuses need no entity-side effect.
func (r *SyncRegistry) NotifyStatus(ctx context.Context, tx *gorm.DB, req *model.ApprovalRequest, status model.RequestStatus) error {
	sync, err := r.forRequest(req)
	if err != nil {
		return err
	}

	switch status {
	case model.RequestStatusApproved, model.RequestStatusOverridden:
		return sync.OnRequestApproved(ctx, tx, req)
	case model.RequestStatusRejected:
		return sync.OnRequestRejected(ctx, tx, req)
	case model.RequestStatusCancelled:
		return sync.OnRequestCancelled(ctx, tx, req)
	case model.RequestStatusExpired:
		return sync.OnRequestExpired(ctx, tx, req)
	case model.RequestStatusPending, model.RequestStatusInProgress:
		return nil
	default:
		return fmt.Errorf("unknown request status %s", status)
	}
}
