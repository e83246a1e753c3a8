package model

import (
	"github.com/google/uuid"

	base "github.com/OpenPMS/pms/internal/model"
)

// EntityType discriminates which kind of business transaction a workflow
// template governs.
type EntityType string

const (
	EntityTypePropertyRelease  EntityType = "PROPERTY_RELEASE"
	EntityTypePropertyTurnover EntityType = "PROPERTY_TURNOVER"
	EntityTypePropertyReturn   EntityType = "PROPERTY_RETURN"
	EntityTypeRPTPayment       EntityType = "RPT_PAYMENT"
	EntityTypeDocumentApproval EntityType = "DOCUMENT_APPROVAL"
	EntityTypeUserAssignment   EntityType = "USER_ASSIGNMENT"
)

// WorkflowTemplate is a named, ordered chain of approval steps for one entity
// type. At most one template per entity type is active at a time; in-flight
// requests reference the template they were created against and are not
// affected by later edits.
type WorkflowTemplate struct {
	base.BaseModel
	Name        string     `gorm:"type:varchar(100);column:name;not null" json:"name"`
	Description string     `gorm:"type:text;column:description" json:"description"`
	EntityType  EntityType `gorm:"type:varchar(50);column:entity_type;not null;index" json:"entityType"`
	IsActive    bool       `gorm:"column:is_active;not null;default:true" json:"isActive"`

	// Relationships
	Steps []ApprovalStep `gorm:"foreignKey:WorkflowTemplateID;references:ID" json:"steps"`
}

func (wt *WorkflowTemplate) TableName() string {
	return "workflow_templates"
}

// StepAt returns the step at the given 1-based order, or nil if no such step
// exists in the template.
func (wt *WorkflowTemplate) StepAt(order int) *ApprovalStep {
	for i := range wt.Steps {
		if wt.Steps[i].StepOrder == order {
			return &wt.Steps[i]
		}
	}
	return nil
}

// MaxStepOrder returns the highest step order in the template, 0 when the
// template has no steps.
func (wt *WorkflowTemplate) MaxStepOrder() int {
	max := 0
	for i := range wt.Steps {
		if wt.Steps[i].StepOrder > max {
			max = wt.Steps[i].StepOrder
		}
	}
	return max
}

// ApprovalStep is one position in a workflow template requiring sign-off from
// a specific role. StepOrder values within a template are unique and form a
// contiguous 1..N range; every template write renumbers them.
type ApprovalStep struct {
	base.BaseModel
	WorkflowTemplateID uuid.UUID `gorm:"type:uuid;column:workflow_template_id;not null;index" json:"workflowTemplateId"`
	StepOrder          int       `gorm:"column:step_order;not null" json:"stepOrder"`
	StepName           string    `gorm:"type:varchar(255);column:step_name;not null" json:"stepName"`
	RoleID             uuid.UUID `gorm:"type:uuid;column:role_id;not null" json:"roleId"`
	IsRequired         bool      `gorm:"column:is_required;not null;default:true" json:"isRequired"`
	CanOverride        bool      `gorm:"column:can_override;not null;default:false" json:"canOverride"`
	OverrideMinLevel   int       `gorm:"column:override_min_level;not null;default:0" json:"overrideMinLevel"`

	// Relationships
	Role base.Role `gorm:"foreignKey:RoleID;references:ID" json:"role"`
}

func (s *ApprovalStep) TableName() string {
	return "approval_steps"
}
