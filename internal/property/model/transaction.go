package model

import (
	"github.com/google/uuid"

	base "github.com/OpenPMS/pms/internal/model"
)

// TransactionStatus is the state machine of a property movement transaction.
// It is distinct from, but driven by, the bound approval request's status.
type TransactionStatus string

const (
	TransactionStatusPending     TransactionStatus = "PENDING"
	TransactionStatusUnderReview TransactionStatus = "UNDER_REVIEW"
	TransactionStatusApproved    TransactionStatus = "APPROVED"
	TransactionStatusCompleted   TransactionStatus = "COMPLETED"
	TransactionStatusRejected    TransactionStatus = "REJECTED"
	TransactionStatusCancelled   TransactionStatus = "CANCELLED"
)

// GovernedTransaction is the surface the approval synchronizer adapters need
// from the three movement transaction kinds.
type GovernedTransaction interface {
	GetID() uuid.UUID
	GetPropertyID() uuid.UUID
	GetStatus() TransactionStatus
	SetStatus(TransactionStatus)
}

// PropertyRelease records releasing a property to an end user.
type PropertyRelease struct {
	base.BaseModel
	PropertyID    uuid.UUID         `gorm:"type:uuid;column:property_id;not null;index" json:"propertyId"`
	ReleasedToID  uuid.UUID         `gorm:"type:uuid;column:released_to_id;not null" json:"releasedToId"`
	Purpose       string            `gorm:"type:text;column:purpose" json:"purpose"`
	Status        TransactionStatus `gorm:"type:varchar(20);column:status;not null" json:"status"`
	RequestedByID uuid.UUID         `gorm:"type:uuid;column:requested_by_id;not null" json:"requestedById"`

	// Relationships
	Property Property `gorm:"foreignKey:PropertyID;references:ID" json:"-"`
}

func (r *PropertyRelease) TableName() string { return "property_releases" }

func (r *PropertyRelease) GetID() uuid.UUID { return r.ID }
func (r *PropertyRelease) GetPropertyID() uuid.UUID { return r.PropertyID }
func (r *PropertyRelease) GetStatus() TransactionStatus { return r.Status }
func (r *PropertyRelease) SetStatus(s TransactionStatus) { r.Status = s }

// PropertyTurnover records transferring custody between custodians or units.
type PropertyTurnover struct {
	base.BaseModel
	PropertyID      uuid.UUID         `gorm:"type:uuid;column:property_id;not null;index" json:"propertyId"`
	FromCustodianID uuid.UUID         `gorm:"type:uuid;column:from_custodian_id;not null" json:"fromCustodianId"`
	ToCustodianID   uuid.UUID         `gorm:"type:uuid;column:to_custodian_id;not null" json:"toCustodianId"`
	Reason          string            `gorm:"type:text;column:reason" json:"reason"`
	Status          TransactionStatus `gorm:"type:varchar(20);column:status;not null" json:"status"`
	RequestedByID   uuid.UUID         `gorm:"type:uuid;column:requested_by_id;not null" json:"requestedById"`

	// Relationships
	Property Property `gorm:"foreignKey:PropertyID;references:ID" json:"-"`
}

func (t *PropertyTurnover) TableName() string { return "property_turnovers" }

func (t *PropertyTurnover) GetID() uuid.UUID { return t.ID }
func (t *PropertyTurnover) GetPropertyID() uuid.UUID { return t.PropertyID }
func (t *PropertyTurnover) GetStatus() TransactionStatus { return t.Status }
func (t *PropertyTurnover) SetStatus(s TransactionStatus) { t.Status = s }

// PropertyReturn records a released or turned-over property coming back into
// custody.
type PropertyReturn struct {
	base.BaseModel
	PropertyID    uuid.UUID         `gorm:"type:uuid;column:property_id;not null;index" json:"propertyId"`
	ReturnedByID  uuid.UUID         `gorm:"type:uuid;column:returned_by_id;not null" json:"returnedById"`
	Condition     string            `gorm:"type:varchar(255);column:condition" json:"condition"`
	Reason        string            `gorm:"type:text;column:reason" json:"reason"`
	Status        TransactionStatus `gorm:"type:varchar(20);column:status;not null" json:"status"`
	RequestedByID uuid.UUID         `gorm:"type:uuid;column:requested_by_id;not null" json:"requestedById"`

	// Relationships
	Property Property `gorm:"foreignKey:PropertyID;references:ID" json:"-"`
}

func (r *PropertyReturn) TableName() string { return "property_returns" }

func (r *PropertyReturn) GetID() uuid.UUID { return r.ID }
func (r *PropertyReturn) GetPropertyID() uuid.UUID { return r.PropertyID }
func (r *PropertyReturn) GetStatus() TransactionStatus { return r.Status }
func (r *PropertyReturn) SetStatus(s TransactionStatus) { r.Status = s }
