package domain

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"quoteflow/common"
)

type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusReady     StepStatus = "ready"
	StepStatusCompleted StepStatus = "completed"
	StepStatusOverdue   StepStatus = "overdue"
)

var AllStepStatuses = []StepStatus{
	StepStatusPending,
	StepStatusReady,
	StepStatusCompleted,
	StepStatusOverdue,
}

func StringToStepStatus(s string) (StepStatus, error) {
	status := StepStatus(s)
	if !slices.Contains(AllStepStatuses, status) {
		return "", fmt.Errorf("invalid StepStatus: \"%s\"", s)
	}
	return status, nil
}

// Persona is the organizational role responsible for a step.
type Persona string

const (
	PersonaAE       Persona = "ae"
	PersonaDealDesk Persona = "deal-desk"
	PersonaCRO      Persona = "cro"
	PersonaLegal    Persona = "legal"
	PersonaFinance  Persona = "finance"
	PersonaCustomer Persona = "customer"
)

var AllPersonas = []Persona{
	PersonaAE,
	PersonaDealDesk,
	PersonaCRO,
	PersonaLegal,
	PersonaFinance,
	PersonaCustomer,
}

func StringToPersona(s string) (Persona, error) {
	persona := Persona(s)
	if !slices.Contains(AllPersonas, persona) {
		return "", fmt.Errorf("invalid Persona: \"%s\"", s)
	}
	return persona, nil
}

// WorkflowStep is one approval step. Steps sharing a LayerIndex run in
// parallel; PositionInLayer ranks them within the layer and is kept dense
// (0..N-1) per layer.
type WorkflowStep struct {
	Id              string     `json:"id"`
	WorkflowId      string     `json:"workflow_id"`
	Title           string     `json:"title"`
	Assignee        string     `json:"assignee"`
	AssigneeAvatar  *string    `json:"assignee_avatar,omitempty"`
	Status          StepStatus `json:"status"`
	DueDate         *string    `json:"due_date,omitempty"`
	CompletedDate   *string    `json:"completed_date,omitempty"`
	Description     *string    `json:"description,omitempty"`
	LayerIndex      int        `json:"layer_index"`
	PositionInLayer int        `json:"position_in_layer"`
	Persona         *Persona   `json:"persona,omitempty"`
	Created         time.Time  `json:"created_at"`
	Updated         time.Time  `json:"updated_at"`
}

// StepFields are the user supplied fields of a new step.
type StepFields struct {
	Title           string     `json:"title"`
	Assignee        string     `json:"assignee"`
	AssigneeAvatar  *string    `json:"assignee_avatar,omitempty"`
	Status          StepStatus `json:"status"`
	DueDate         *string    `json:"due_date,omitempty"`
	CompletedDate   *string    `json:"completed_date,omitempty"`
	Description     *string    `json:"description,omitempty"`
	LayerIndex      int        `json:"layer_index"`
	PositionInLayer int        `json:"position_in_layer"`
	Persona         *Persona   `json:"persona,omitempty"`
}

func (f StepFields) Validate() error {
	missing := []string{}
	if f.Title == "" {
		missing = append(missing, "title")
	}
	if f.Assignee == "" {
		missing = append(missing, "assignee")
	}
	if f.Status == "" {
		missing = append(missing, "status")
	}
	if len(missing) > 0 {
		return common.NewValidationError(strings.Join(missing, ", "), "required")
	}
	if _, err := StringToStepStatus(string(f.Status)); err != nil {
		return common.NewValidationError("status", err.Error())
	}
	if f.Persona != nil {
		if _, err := StringToPersona(string(*f.Persona)); err != nil {
			return common.NewValidationError("persona", err.Error())
		}
	}
	if err := validateIndices(f.LayerIndex, f.PositionInLayer); err != nil {
		return err
	}
	if err := validateDate("due_date", f.DueDate); err != nil {
		return err
	}
	return validateDate("completed_date", f.CompletedDate)
}

// NewWorkflowStep builds a step from validated fields.
func NewWorkflowStep(id, workflowId string, fields StepFields, now time.Time) WorkflowStep {
	return WorkflowStep{
		Id:              id,
		WorkflowId:      workflowId,
		Title:           fields.Title,
		Assignee:        fields.Assignee,
		AssigneeAvatar:  fields.AssigneeAvatar,
		Status:          fields.Status,
		DueDate:         fields.DueDate,
		CompletedDate:   fields.CompletedDate,
		Description:     fields.Description,
		LayerIndex:      fields.LayerIndex,
		PositionInLayer: fields.PositionInLayer,
		Persona:         fields.Persona,
		Created:         now,
		Updated:         now,
	}
}

// StepPosition places one step; a reorder is a batch of these.
type StepPosition struct {
	Id              string `json:"id"`
	LayerIndex      int    `json:"layer_index"`
	PositionInLayer int    `json:"position_in_layer"`
}

func ValidateStepPositions(positions []StepPosition) error {
	seen := make(map[string]bool, len(positions))
	for i, p := range positions {
		if p.Id == "" {
			return common.NewValidationError(fmt.Sprintf("stepUpdates[%d].id", i), "required")
		}
		if seen[p.Id] {
			return common.NewValidationError(fmt.Sprintf("stepUpdates[%d].id", i), fmt.Sprintf("duplicate step id %s", p.Id))
		}
		seen[p.Id] = true
		if err := validateIndices(p.LayerIndex, p.PositionInLayer); err != nil {
			return err
		}
	}
	return nil
}

func validateIndices(layerIndex, positionInLayer int) error {
	if layerIndex < 0 {
		return common.NewValidationError("layer_index", "must be >= 0")
	}
	if positionInLayer < 0 {
		return common.NewValidationError("position_in_layer", "must be >= 0")
	}
	return nil
}

func validateDate(field string, value *string) error {
	if value == nil {
		return nil
	}
	if _, err := time.Parse(time.DateOnly, *value); err == nil {
		return nil
	}
	if _, err := time.Parse(time.RFC3339, *value); err == nil {
		return nil
	}
	return common.NewValidationError(field, fmt.Sprintf("invalid date \"%s\"", *value))
}

type WorkflowStepStorage interface {
	// PersistWorkflowStep inserts a new step.
	PersistWorkflowStep(ctx context.Context, step WorkflowStep) error
	// UpdateWorkflowStep applies the update to the stored step and returns
	// the result. Fails with common.ErrNotFound once the step is deleted.
	UpdateWorkflowStep(ctx context.Context, workflowId, stepId string, update StepUpdate) (WorkflowStep, error)
	GetWorkflowStep(ctx context.Context, workflowId, stepId string) (WorkflowStep, error)
	// GetWorkflowSteps returns steps ordered by layer_index, then
	// position_in_layer.
	GetWorkflowSteps(ctx context.Context, workflowId string) ([]WorkflowStep, error)
	DeleteWorkflowStep(ctx context.Context, workflowId, stepId string) error
	// ReorderWorkflowSteps applies all positions or none of them. Fails with
	// common.ErrNotFound if any step is not part of the workflow.
	ReorderWorkflowSteps(ctx context.Context, workflowId string, positions []StepPosition) error
}
