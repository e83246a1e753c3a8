package model

import (
	"github.com/google/uuid"
)

// CreatePropertyDTO is the payload for registering a property.
type CreatePropertyDTO struct {
	TagNumber      string     `json:"tagNumber" binding:"required"`
	Name           string     `json:"name" binding:"required"`
	Description    string     `json:"description"`
	BusinessUnitID uuid.UUID  `json:"businessUnitId" binding:"required"`
	CustodianID    *uuid.UUID `json:"custodianId"`
}

// CreateReleaseDTO opens a release transaction with its approval request.
type CreateReleaseDTO struct {
	PropertyID   uuid.UUID `json:"propertyId" binding:"required"`
	ReleasedToID uuid.UUID `json:"releasedToId" binding:"required"`
	Purpose      string    `json:"purpose"`
}

// CreateTurnoverDTO opens a turnover transaction with its approval request.
type CreateTurnoverDTO struct {
	PropertyID    uuid.UUID `json:"propertyId" binding:"required"`
	ToCustodianID uuid.UUID `json:"toCustodianId" binding:"required"`
	Reason        string    `json:"reason"`
}

// CreateReturnDTO opens a return transaction with its approval request.
type CreateReturnDTO struct {
	PropertyID uuid.UUID `json:"propertyId" binding:"required"`
	Condition  string    `json:"condition"`
	Reason     string    `json:"reason"`
}

// CreateTransactionResult is the composed outcome of creating a governed
// transaction together with its approval request.
type CreateTransactionResult struct {
	EntityID         uuid.UUID `json:"entityId"`
	RequestID        uuid.UUID `json:"requestId"`
	NextApproverRole string    `json:"nextApproverRole,omitempty"`
}

// PropertyFilter narrows property listings.
type PropertyFilter struct {
	Status         *PropertyStatus
	BusinessUnitID *uuid.UUID
	Offset         *int
	Limit          *int
}
