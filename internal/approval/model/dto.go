package model

import (
	"github.com/google/uuid"
)

// CreateStepDTO describes one step when authoring a workflow template. The
// submitted order is only used for sorting; persisted step orders are always
// renumbered to a dense 1..N sequence.
type CreateStepDTO struct {
	StepOrder        int       `json:"stepOrder"`
	StepName         string    `json:"stepName" binding:"required"`
	RoleID           uuid.UUID `json:"roleId" binding:"required"`
	IsRequired       *bool     `json:"isRequired"`
	CanOverride      bool      `json:"canOverride"`
	OverrideMinLevel int       `json:"overrideMinLevel"`
}

// CreateTemplateDTO is the payload for creating a workflow template.
type CreateTemplateDTO struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	EntityType  EntityType      `json:"entityType" binding:"required"`
	IsActive    *bool           `json:"isActive"`
	Steps       []CreateStepDTO `json:"steps" binding:"required,min=1,dive"`
}

// UpdateTemplateDTO is the payload for updating template metadata.
type UpdateTemplateDTO struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"isActive"`
}

// RespondDTO is the payload for answering the current step of a request.
type RespondDTO struct {
	Action   string `json:"action" binding:"required,oneof=approve reject"`
	Comments string `json:"comments"`
	Override bool   `json:"override"`
}

// Decision maps the submitted action onto a response status.
func (d *RespondDTO) Decision() ResponseStatus {
	if d.Action == "reject" {
		return ResponseStatusRejected
	}
	return ResponseStatusApproved
}

// RespondResult is returned to the caller after a response is recorded.
type RespondResult struct {
	RequestID        uuid.UUID     `json:"requestId"`
	NewStatus        RequestStatus `json:"newStatus"`
	CurrentStepOrder int           `json:"currentStepOrder"`
	NextApproverRole string        `json:"nextApproverRole,omitempty"`
}

// StepProgressDTO is one row of the progress view rendered for a request.
type StepProgressDTO struct {
	StepOrder  int               `json:"stepOrder"`
	StepName   string            `json:"stepName"`
	RoleName   string            `json:"roleName"`
	IsCurrent  bool              `json:"isCurrent"`
	Response   *ApprovalResponse `json:"response,omitempty"`
}

// RequestHistoryDTO is the read model for a request with its ordered step
// progress and response history.
type RequestHistoryDTO struct {
	Request ApprovalRequest   `json:"request"`
	Steps   []StepProgressDTO `json:"steps"`
}

// RequestFilter narrows request listings. Staleness of a listing relative to
// concurrent writes is acceptable; listings run outside any transaction.
type RequestFilter struct {
	Status     *RequestStatus
	EntityType *EntityType
	PropertyID *uuid.UUID
	Offset     *int
	Limit      *int
}
