package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/OpenPMS/pms/internal/approval"
	"github.com/OpenPMS/pms/internal/approval/model"
)

// TemplateService is the workflow definition store. Templates are read-only
// at request-processing time; only the administrative operations here mutate
// them, and every write renumbers step orders to a dense 1..N sequence.
type TemplateService struct {
	db *gorm.DB
}

func NewTemplateService(db *gorm.DB) *TemplateService {
	return &TemplateService{db: db}
}

// FindActiveTemplate returns the unique active template for the entity type
// with its ordered steps and each step's role. Missing or empty templates are
// configuration errors that block request creation.
func (s *TemplateService) FindActiveTemplate(ctx context.Context, entityType model.EntityType) (*model.WorkflowTemplate, error) {
	return s.FindActiveTemplateInTx(ctx, s.db, entityType)
}

// FindActiveTemplateInTx is FindActiveTemplate inside an existing transaction.
func (s *TemplateService) FindActiveTemplateInTx(ctx context.Context, tx *gorm.DB, entityType model.EntityType) (*model.WorkflowTemplate, error) {
	var template model.WorkflowTemplate
	err := tx.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("step_order ASC")
		}).
		Preload("Steps.Role").
		First(&template, "entity_type = ? AND is_active = ?", entityType, true).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w for entity type %s", approval.ErrNoActiveWorkflow, entityType)
		}
		return nil, fmt.Errorf("failed to query workflow template: %w", err)
	}

	if len(template.Steps) == 0 {
		return nil, fmt.Errorf("%w: template %s", approval.ErrWorkflowHasNoSteps, template.ID)
	}

	return &template, nil
}

// GetTemplateByID returns a template with its ordered steps.
func (s *TemplateService) GetTemplateByID(ctx context.Context, templateID uuid.UUID) (*model.WorkflowTemplate, error) {
	var template model.WorkflowTemplate
	err := s.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("step_order ASC")
		}).
		Preload("Steps.Role").
		First(&template, "id = ?", templateID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("workflow template %s not found", templateID)
		}
		return nil, fmt.Errorf("failed to query workflow template: %w", err)
	}
	return &template, nil
}

// ListTemplates returns all templates, optionally narrowed to one entity type.
func (s *TemplateService) ListTemplates(ctx context.Context, entityType *model.EntityType) ([]model.WorkflowTemplate, error) {
	query := s.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("step_order ASC")
		})
	if entityType != nil {
		query = query.Where("entity_type = ?", *entityType)
	}

	var templates []model.WorkflowTemplate
	if err := query.Order("created_at DESC").Find(&templates).Error; err != nil {
		return nil, fmt.Errorf("failed to list workflow templates: %w", err)
	}
	return templates, nil
}

// CreateTemplate creates a template with its steps. When the new template is
// active, any previously active template for the same entity type is
// deactivated in the same transaction to keep the one-active-per-type
// invariant.
func (s *TemplateService) CreateTemplate(ctx context.Context, createReq *model.CreateTemplateDTO) (*model.WorkflowTemplate, error) {
	if createReq == nil {
		return nil, fmt.Errorf("create request cannot be nil")
	}
	if len(createReq.Steps) == 0 {
		return nil, approval.ErrWorkflowHasNoSteps
	}
	for i, step := range createReq.Steps {
		if step.CanOverride && step.OverrideMinLevel <= 0 {
			return nil, fmt.Errorf("step %d allows override but has no override minimum level", i+1)
		}
	}

	isActive := true
	if createReq.IsActive != nil {
		isActive = *createReq.IsActive
	}

	template := &model.WorkflowTemplate{
		Name:        createReq.Name,
		Description: createReq.Description,
		EntityType:  createReq.EntityType,
		IsActive:    isActive,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if isActive {
			if err := s.deactivateOthersInTx(ctx, tx, createReq.EntityType, uuid.Nil); err != nil {
				return err
			}
		}

		if err := tx.Create(template).Error; err != nil {
			return fmt.Errorf("failed to create workflow template: %w", err)
		}

		steps := make([]model.ApprovalStep, 0, len(createReq.Steps))
		for _, stepDTO := range createReq.Steps {
			isRequired := true
			if stepDTO.IsRequired != nil {
				isRequired = *stepDTO.IsRequired
			}
			steps = append(steps, model.ApprovalStep{
				WorkflowTemplateID: template.ID,
				StepOrder:          stepDTO.StepOrder,
				StepName:           stepDTO.StepName,
				RoleID:             stepDTO.RoleID,
				IsRequired:         isRequired,
				CanOverride:        stepDTO.CanOverride,
				OverrideMinLevel:   stepDTO.OverrideMinLevel,
			})
		}
		normalizeStepOrders(steps)

		if err := tx.Create(&steps).Error; err != nil {
			return fmt.Errorf("failed to create approval steps: %w", err)
		}
		template.Steps = steps
		return nil
	})
	if err != nil {
		return nil, err
	}

	return template, nil
}

// UpdateTemplate updates template metadata. Activating a template deactivates
// the other templates of its entity type.
func (s *TemplateService) UpdateTemplate(ctx context.Context, templateID uuid.UUID, updateReq *model.UpdateTemplateDTO) (*model.WorkflowTemplate, error) {
	if updateReq == nil {
		return nil, fmt.Errorf("update request cannot be nil")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var template model.WorkflowTemplate
		if err := tx.First(&template, "id = ?", templateID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("workflow template %s not found", templateID)
			}
			return fmt.Errorf("failed to query workflow template: %w", err)
		}

		if updateReq.Name != nil {
			template.Name = *updateReq.Name
		}
		if updateReq.Description != nil {
			template.Description = *updateReq.Description
		}
		if updateReq.IsActive != nil {
			template.IsActive = *updateReq.IsActive
			if template.IsActive {
				if err := s.deactivateOthersInTx(ctx, tx, template.EntityType, template.ID); err != nil {
					return err
				}
			}
		}

		if err := tx.Save(&template).Error; err != nil {
			return fmt.Errorf("failed to update workflow template: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetTemplateByID(ctx, templateID)
}

// AddStep appends or inserts a step, then renumbers all steps.
func (s *TemplateService) AddStep(ctx context.Context, templateID uuid.UUID, stepDTO *model.CreateStepDTO) (*model.WorkflowTemplate, error) {
	if stepDTO == nil {
		return nil, fmt.Errorf("step cannot be nil")
	}
	if stepDTO.CanOverride && stepDTO.OverrideMinLevel <= 0 {
		return nil, fmt.Errorf("step allows override but has no override minimum level")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		steps, err := s.loadStepsInTx(ctx, tx, templateID)
		if err != nil {
			return err
		}

		isRequired := true
		if stepDTO.IsRequired != nil {
			isRequired = *stepDTO.IsRequired
		}
		order := stepDTO.StepOrder
		if order <= 0 {
			order = len(steps) + 1
		}
		newStep := model.ApprovalStep{
			WorkflowTemplateID: templateID,
			// Half-order so an insert at position k lands before the existing
			// step k after renumbering.
			StepOrder:        order*2 - 1,
			StepName:         stepDTO.StepName,
			RoleID:           stepDTO.RoleID,
			IsRequired:       isRequired,
			CanOverride:      stepDTO.CanOverride,
			OverrideMinLevel: stepDTO.OverrideMinLevel,
		}
		for i := range steps {
			steps[i].StepOrder = steps[i].StepOrder * 2
		}
		if err := tx.Create(&newStep).Error; err != nil {
			return fmt.Errorf("failed to create approval step: %w", err)
		}
		steps = append(steps, newStep)
		normalizeStepOrders(steps)
		return s.saveStepsInTx(ctx, tx, steps)
	})
	if err != nil {
		return nil, err
	}

	return s.GetTemplateByID(ctx, templateID)
}

// RemoveStep deletes a step and renumbers the remainder. The last step of a
// template cannot be removed; an active template must keep at least one step.
func (s *TemplateService) RemoveStep(ctx context.Context, templateID, stepID uuid.UUID) (*model.WorkflowTemplate, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		steps, err := s.loadStepsInTx(ctx, tx, templateID)
		if err != nil {
			return err
		}
		if len(steps) <= 1 {
			return fmt.Errorf("cannot remove the last step of a workflow template")
		}

		remaining := make([]model.ApprovalStep, 0, len(steps)-1)
		found := false
		for _, step := range steps {
			if step.ID == stepID {
				found = true
				continue
			}
			remaining = append(remaining, step)
		}
		if !found {
			return fmt.Errorf("approval step %s not found in template %s", stepID, templateID)
		}

		if err := tx.Delete(&model.ApprovalStep{}, "id = ?", stepID).Error; err != nil {
			return fmt.Errorf("failed to delete approval step: %w", err)
		}
		normalizeStepOrders(remaining)
		return s.saveStepsInTx(ctx, tx, remaining)
	})
	if err != nil {
		return nil, err
	}

	return s.GetTemplateByID(ctx, templateID)
}

// ReorderSteps rewrites the step sequence to match the given step ID order.
func (s *TemplateService) ReorderSteps(ctx context.Context, templateID uuid.UUID, orderedStepIDs []uuid.UUID) (*model.WorkflowTemplate, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		steps, err := s.loadStepsInTx(ctx, tx, templateID)
		if err != nil {
			return err
		}
		if len(orderedStepIDs) != len(steps) {
			return fmt.Errorf("reorder must list all %d steps of the template", len(steps))
		}

		position := make(map[uuid.UUID]int, len(orderedStepIDs))
		for i, id := range orderedStepIDs {
			position[id] = i + 1
		}
		for i := range steps {
			pos, ok := position[steps[i].ID]
			if !ok {
				return fmt.Errorf("approval step %s not found in template %s", steps[i].ID, templateID)
			}
			steps[i].StepOrder = pos
		}
		normalizeStepOrders(steps)
		return s.saveStepsInTx(ctx, tx, steps)
	})
	if err != nil {
		return nil, err
	}

	return s.GetTemplateByID(ctx, templateID)
}

func (s *TemplateService) deactivateOthersInTx(ctx context.Context, tx *gorm.DB, entityType model.EntityType, exceptID uuid.UUID) error {
	err := tx.WithContext(ctx).Model(&model.WorkflowTemplate{}).
		Where("entity_type = ? AND is_active = ? AND id <> ?", entityType, true, exceptID).
		Update("is_active", false).Error
	if err != nil {
		return fmt.Errorf("failed to deactivate existing workflow templates: %w", err)
	}
	return nil
}

func (s *TemplateService) loadStepsInTx(ctx context.Context, tx *gorm.DB, templateID uuid.UUID) ([]model.ApprovalStep, error) {
	var template model.WorkflowTemplate
	if err := tx.WithContext(ctx).First(&template, "id = ?", templateID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("workflow template %s not found", templateID)
		}
		return nil, fmt.Errorf("failed to query workflow template: %w", err)
	}

	var steps []model.ApprovalStep
	err := tx.WithContext(ctx).
		Where("workflow_template_id = ?", templateID).
		Order("step_order ASC").
		Find(&steps).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load approval steps: %w", err)
	}
	return steps, nil
}

func (s *TemplateService) saveStepsInTx(ctx context.Context, tx *gorm.DB, steps []model.ApprovalStep) error {
	for i := range steps {
		if err := tx.WithContext(ctx).Save(&steps[i]).Error; err != nil {
			return fmt.Errorf("failed to update approval step %s: %w", steps[i].ID, err)
		}
	}
	return nil
}

// normalizeStepOrders sorts steps by their current order and rewrites the
// orders to a dense 1..N sequence, preserving relative order.
func normalizeStepOrders(steps []model.ApprovalStep) {
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].StepOrder < steps[j].StepOrder
	})
	for i := range steps {
		steps[i].StepOrder = i + 1
	}
}
