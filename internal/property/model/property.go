package model

import (
	"github.com/google/uuid"

	appmodel "github.com/OpenPMS/pms/internal/approval/model"
	base "github.com/OpenPMS/pms/internal/model"
)

// PropertyStatus is the asset-level state of a property record.
type PropertyStatus string

const (
	PropertyStatusActive      PropertyStatus = "ACTIVE"       // In custody, available for transactions
	PropertyStatusUnderReview PropertyStatus = "UNDER_REVIEW" // A movement transaction awaits approval
	PropertyStatusReleased    PropertyStatus = "RELEASED"     // Released to an end user
	PropertyStatusTurnedOver  PropertyStatus = "TURNED_OVER"  // Transferred to another custodian
	PropertyStatusDisposed    PropertyStatus = "DISPOSED"
)

// Property is a managed asset. Its status is driven by the approval outcome
// of the movement transactions opened against it.
type Property struct {
	base.BaseModel
	TagNumber      string         `gorm:"type:varchar(100);column:tag_number;not null;uniqueIndex" json:"tagNumber"`
	Name           string         `gorm:"type:varchar(255);column:name;not null" json:"name"`
	Description    string         `gorm:"type:text;column:description" json:"description"`
	Status         PropertyStatus `gorm:"type:varchar(20);column:status;not null" json:"status"`
	BusinessUnitID uuid.UUID      `gorm:"type:uuid;column:business_unit_id;not null;index" json:"businessUnitId"`
	CustodianID    *uuid.UUID     `gorm:"type:uuid;column:custodian_id" json:"custodianId,omitempty"`

	// Relationships
	BusinessUnit base.BusinessUnit `gorm:"foreignKey:BusinessUnitID;references:ID" json:"-"`
}

func (p *Property) TableName() string {
	return "properties"
}

// MovementStatus tracks whether a ledger entry is still in flight.
type MovementStatus string

const (
	MovementStatusOpen   MovementStatus = "OPEN"
	MovementStatusClosed MovementStatus = "CLOSED"
)

// PropertyMovement is one row of the movement ledger. A movement opens when a
// transaction enters approval and closes when the transaction completes or
// the request terminates; PriorPropertyStatus is what the property reverts to
// when the request fails.
type PropertyMovement struct {
	base.BaseModel
	PropertyID          uuid.UUID           `gorm:"type:uuid;column:property_id;not null;index" json:"propertyId"`
	ReferenceType       appmodel.EntityType `gorm:"type:varchar(50);column:reference_type;not null;index:idx_movement_ref" json:"referenceType"`
	ReferenceID         uuid.UUID           `gorm:"type:uuid;column:reference_id;not null;index:idx_movement_ref" json:"referenceId"`
	Status              MovementStatus      `gorm:"type:varchar(20);column:status;not null" json:"status"`
	PriorPropertyStatus PropertyStatus      `gorm:"type:varchar(20);column:prior_property_status;not null" json:"priorPropertyStatus"`
	Notes               string              `gorm:"type:text;column:notes" json:"notes"`
}

func (m *PropertyMovement) TableName() string {
	return "property_movements"
}
