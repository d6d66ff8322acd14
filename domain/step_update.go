package domain

import (
	"time"

	"quoteflow/common"
)

// StepUpdate is a partial update of a step. Only these fields may be changed
// after creation.
type StepUpdate struct {
	Title           Optional[string]     `json:"title,omitzero"`
	Assignee        Optional[string]     `json:"assignee,omitzero"`
	AssigneeAvatar  Optional[string]     `json:"assignee_avatar,omitzero"`
	Status          Optional[StepStatus] `json:"status,omitzero"`
	DueDate         Optional[string]     `json:"due_date,omitzero"`
	CompletedDate   Optional[string]     `json:"completed_date,omitzero"`
	Description     Optional[string]     `json:"description,omitzero"`
	LayerIndex      Optional[int]        `json:"layer_index,omitzero"`
	PositionInLayer Optional[int]        `json:"position_in_layer,omitzero"`
	Persona         Optional[Persona]    `json:"persona,omitzero"`
}

func (u StepUpdate) IsEmpty() bool {
	return !u.Title.Set && !u.Assignee.Set && !u.AssigneeAvatar.Set && !u.Status.Set &&
		!u.DueDate.Set && !u.CompletedDate.Set && !u.Description.Set &&
		!u.LayerIndex.Set && !u.PositionInLayer.Set && !u.Persona.Set
}

func (u StepUpdate) Validate() error {
	if u.IsEmpty() {
		return common.NewValidationError("", "no valid fields to update")
	}

	notNullable := []struct {
		field  string
		isNull bool
	}{
		{"title", u.Title.IsNull()},
		{"assignee", u.Assignee.IsNull()},
		{"status", u.Status.IsNull()},
		{"layer_index", u.LayerIndex.IsNull()},
		{"position_in_layer", u.PositionInLayer.IsNull()},
	}
	for _, f := range notNullable {
		if f.isNull {
			return common.NewValidationError(f.field, "must not be null")
		}
	}

	if u.Status.Value != nil {
		if _, err := StringToStepStatus(string(*u.Status.Value)); err != nil {
			return common.NewValidationError("status", err.Error())
		}
	}
	if u.Persona.Value != nil {
		if _, err := StringToPersona(string(*u.Persona.Value)); err != nil {
			return common.NewValidationError("persona", err.Error())
		}
	}
	if u.LayerIndex.Value != nil && *u.LayerIndex.Value < 0 {
		return common.NewValidationError("layer_index", "must be >= 0")
	}
	if u.PositionInLayer.Value != nil && *u.PositionInLayer.Value < 0 {
		return common.NewValidationError("position_in_layer", "must be >= 0")
	}
	if err := validateDate("due_date", u.DueDate.Value); err != nil {
		return err
	}
	return validateDate("completed_date", u.CompletedDate.Value)
}

// Apply returns a copy of the step with the update merged in. The receiver is
// left untouched.
func (s WorkflowStep) Apply(u StepUpdate, now time.Time) WorkflowStep {
	if u.Title.Value != nil {
		s.Title = *u.Title.Value
	}
	if u.Assignee.Value != nil {
		s.Assignee = *u.Assignee.Value
	}
	if u.AssigneeAvatar.Set {
		s.AssigneeAvatar = u.AssigneeAvatar.Value
	}
	if u.Status.Value != nil {
		s.Status = *u.Status.Value
	}
	if u.DueDate.Set {
		s.DueDate = u.DueDate.Value
	}
	if u.CompletedDate.Set {
		s.CompletedDate = u.CompletedDate.Value
	}
	if u.Description.Set {
		s.Description = u.Description.Value
	}
	if u.LayerIndex.Value != nil {
		s.LayerIndex = *u.LayerIndex.Value
	}
	if u.PositionInLayer.Value != nil {
		s.PositionInLayer = *u.PositionInLayer.Value
	}
	if u.Persona.Set {
		s.Persona = u.Persona.Value
	}
	s.Updated = now
	return s
}

// StepTextField names the free text fields that are edited keystroke by
// keystroke.
type StepTextField string

const (
	StepTextFieldTitle       StepTextField = "title"
	StepTextFieldAssignee    StepTextField = "assignee"
	StepTextFieldDescription StepTextField = "description"
)

func StringToStepTextField(s string) (StepTextField, error) {
	switch s {
	case "title":
		return StepTextFieldTitle, nil
	case "assignee":
		return StepTextFieldAssignee, nil
	case "description":
		return StepTextFieldDescription, nil
	default:
		return "", common.NewValidationError("field", "not an editable text field: "+s)
	}
}

// TextFieldUpdate builds the partial update setting a text field.
func TextFieldUpdate(field StepTextField, value string) StepUpdate {
	switch field {
	case StepTextFieldTitle:
		return StepUpdate{Title: Some(value)}
	case StepTextFieldAssignee:
		return StepUpdate{Assignee: Some(value)}
	case StepTextFieldDescription:
		return StepUpdate{Description: Some(value)}
	}
	return StepUpdate{}
}

// TextFieldValue reads a text field of the step. A missing description reads
// as the empty string.
func (s WorkflowStep) TextFieldValue(field StepTextField) string {
	switch field {
	case StepTextFieldTitle:
		return s.Title
	case StepTextFieldAssignee:
		return s.Assignee
	case StepTextFieldDescription:
		if s.Description != nil {
			return *s.Description
		}
	}
	return ""
}

// TextFieldSnapshot returns the update that would put the field back to its
// current value.
func (s WorkflowStep) TextFieldSnapshot(field StepTextField) StepUpdate {
	if field == StepTextFieldDescription && s.Description == nil {
		return StepUpdate{Description: Null[string]()}
	}
	return TextFieldUpdate(field, s.TextFieldValue(field))
}
