package model

import (
	"time"

	"github.com/google/uuid"

	base "github.com/OpenPMS/pms/internal/model"
)

// RequestStatus is the request-level state of an approval request.
type RequestStatus string

const (
	RequestStatusPending    RequestStatus = "PENDING"     // Created, waiting on the first step
	RequestStatusInProgress RequestStatus = "IN_PROGRESS" // At least one step approved, more remain
	RequestStatusApproved   RequestStatus = "APPROVED"    // All steps approved
	RequestStatusRejected   RequestStatus = "REJECTED"    // Rejected at some step; remaining steps never visited
	RequestStatusCancelled  RequestStatus = "CANCELLED"   // Withdrawn by the requester while still open
	RequestStatusOverridden RequestStatus = "OVERRIDDEN"  // Completed, but at least one step was overridden
	RequestStatusExpired    RequestStatus = "EXPIRED"     // Closed by the external expiry sweep
)

// IsTerminal reports whether no further responses are accepted.
func (s RequestStatus) IsTerminal() bool {
	switch s {
	case RequestStatusApproved, RequestStatusRejected, RequestStatusCancelled,
		RequestStatusOverridden, RequestStatusExpired:
		return true
	}
	return false
}

// ResponseStatus is the decision recorded against a single step.
type ResponseStatus string

const (
	ResponseStatusApproved    ResponseStatus = "APPROVED"
	ResponseStatusRejected    ResponseStatus = "REJECTED"
	ResponseStatusUnderReview ResponseStatus = "UNDER_REVIEW"
	ResponseStatusSkipped     ResponseStatus = "SKIPPED"
	ResponseStatusExpired     ResponseStatus = "EXPIRED"
)

// ApprovalRequest is a live instance of a workflow template applied to one
// business entity, tracking progress through the template's steps via
// CurrentStepOrder. Requests are never deleted; cancellation and expiry are
// terminal statuses.
type ApprovalRequest struct {
	base.BaseModel
	WorkflowTemplateID uuid.UUID     `gorm:"type:uuid;column:workflow_template_id;not null" json:"workflowTemplateId"`
	EntityType         EntityType    `gorm:"type:varchar(50);column:entity_type;not null;index:idx_requests_entity" json:"entityType"`
	EntityID           uuid.UUID     `gorm:"type:uuid;column:entity_id;not null;index:idx_requests_entity" json:"entityId"`
	PropertyID         *uuid.UUID    `gorm:"type:uuid;column:property_id;index" json:"propertyId,omitempty"`
	RequestedByID      uuid.UUID     `gorm:"type:uuid;column:requested_by_id;not null" json:"requestedById"`
	CurrentStepOrder   int           `gorm:"column:current_step_order;not null" json:"currentStepOrder"`
	Status             RequestStatus `gorm:"type:varchar(20);column:status;not null;index" json:"status"`

	// Relationships
	WorkflowTemplate WorkflowTemplate   `gorm:"foreignKey:WorkflowTemplateID;references:ID" json:"workflowTemplate"`
	Responses        []ApprovalResponse `gorm:"foreignKey:ApprovalRequestID;references:ID" json:"responses"`
}

func (r *ApprovalRequest) TableName() string {
	return "approval_requests"
}

// HasOverrideResponse reports whether any recorded response used override
// authority. Used to decide between APPROVED and OVERRIDDEN on completion.
func (r *ApprovalRequest) HasOverrideResponse() bool {
	for i := range r.Responses {
		if r.Responses[i].IsOverride {
			return true
		}
	}
	return false
}

// ApprovalResponse is one immutable decision against one step of one request.
// The unique index on (request, step) guarantees at most one response per
// step even under racing responders.
type ApprovalResponse struct {
	base.BaseModel
	ApprovalRequestID uuid.UUID      `gorm:"type:uuid;column:approval_request_id;not null;uniqueIndex:idx_response_request_step" json:"approvalRequestId"`
	ApprovalStepID    uuid.UUID      `gorm:"type:uuid;column:approval_step_id;not null;uniqueIndex:idx_response_request_step" json:"approvalStepId"`
	StepOrder         int            `gorm:"column:step_order;not null" json:"stepOrder"`
	RespondedByID     uuid.UUID      `gorm:"type:uuid;column:responded_by_id;not null" json:"respondedById"`
	Status            ResponseStatus `gorm:"type:varchar(20);column:status;not null" json:"status"`
	Comments          string         `gorm:"type:text;column:comments" json:"comments"`
	IsOverride        bool           `gorm:"column:is_override;not null;default:false" json:"isOverride"`
	RespondedAt       time.Time      `gorm:"type:timestamptz;column:responded_at;not null" json:"respondedAt"`

	// Relationships
	ApprovalStep ApprovalStep `gorm:"foreignKey:ApprovalStepID;references:ID" json:"approvalStep"`
}

func (r *ApprovalResponse) TableName() string {
	return "approval_responses"
}
