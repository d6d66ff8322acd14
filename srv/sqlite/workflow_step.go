package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"quoteflow/common"
	"quoteflow/domain"

	"go.opentelemetry.io/otel/attribute"
)

var _ domain.WorkflowStepStorage = (*Storage)(nil)

const workflowStepColumns = `id, workflow_id, title, assignee, assignee_avatar, status, due_date,
	completed_date, description, layer_index, position_in_layer, persona, created_at, updated_at`

func scanWorkflowStep(row rowScanner) (domain.WorkflowStep, error) {
	var step domain.WorkflowStep
	var avatar, dueDate, completedDate, description, persona sql.NullString
	err := row.Scan(
		&step.Id, &step.WorkflowId, &step.Title, &step.Assignee, &avatar, &step.Status, &dueDate,
		&completedDate, &description, &step.LayerIndex, &step.PositionInLayer, &persona,
		&step.Created, &step.Updated,
	)
	if err != nil {
		return domain.WorkflowStep{}, err
	}
	step.AssigneeAvatar = nullableString(avatar)
	step.DueDate = nullableString(dueDate)
	step.CompletedDate = nullableString(completedDate)
	step.Description = nullableString(description)
	if persona.Valid {
		p := domain.Persona(persona.String)
		step.Persona = &p
	}
	return step, nil
}

// PersistWorkflowStep inserts a new step. An existing id fails with
// common.ErrConflict.
func (s *Storage) PersistWorkflowStep(ctx context.Context, step domain.WorkflowStep) error {
	ctx, span := startSpan(ctx, "Storage.PersistWorkflowStep", "INSERT",
		attribute.String("workflow_id", step.WorkflowId),
		attribute.String("step_id", step.Id),
	)
	defer span.End()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workflow_steps (
			id, workflow_id, title, assignee, assignee_avatar, status, due_date,
			completed_date, description, layer_index, position_in_layer, persona,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		step.Id, step.WorkflowId, step.Title, step.Assignee, step.AssigneeAvatar, step.Status, step.DueDate,
		step.CompletedDate, step.Description, step.LayerIndex, step.PositionInLayer, step.Persona,
		step.Created.UTC(), step.Updated.UTC(),
	)
	if isUniqueViolation(err) {
		return recordError(span, fmt.Errorf("step %s: %w", step.Id, common.ErrConflict))
	}
	if err != nil {
		return recordError(span, fmt.Errorf("failed to persist workflow step: %w", err))
	}
	return nil
}

// UpdateWorkflowStep applies the update to the stored step in one
// transaction. A step deleted before the write fails with common.ErrNotFound
// instead of being written back.
func (s *Storage) UpdateWorkflowStep(ctx context.Context, workflowId, stepId string, update domain.StepUpdate) (domain.WorkflowStep, error) {
	ctx, span := startSpan(ctx, "Storage.UpdateWorkflowStep", "UPDATE",
		attribute.String("workflow_id", workflowId),
		attribute.String("step_id", stepId),
	)
	defer span.End()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.WorkflowStep{}, recordError(span, fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, "SELECT "+workflowStepColumns+" FROM workflow_steps WHERE workflow_id = ? AND id = ?", workflowId, stepId)
	step, err := scanWorkflowStep(row)
	if err != nil {
		return domain.WorkflowStep{}, recordError(span, notFoundOr(err, "get workflow step"))
	}

	step = step.Apply(update, time.Now().UTC())
	result, err := tx.ExecContext(ctx, `
		UPDATE workflow_steps SET
			title = ?, assignee = ?, assignee_avatar = ?, status = ?, due_date = ?,
			completed_date = ?, description = ?, layer_index = ?, position_in_layer = ?,
			persona = ?, updated_at = ?
		WHERE workflow_id = ? AND id = ?`,
		step.Title, step.Assignee, step.AssigneeAvatar, step.Status, step.DueDate,
		step.CompletedDate, step.Description, step.LayerIndex, step.PositionInLayer,
		step.Persona, step.Updated.UTC(), workflowId, stepId,
	)
	if err != nil {
		return domain.WorkflowStep{}, recordError(span, fmt.Errorf("failed to update workflow step: %w", err))
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return domain.WorkflowStep{}, recordError(span, fmt.Errorf("failed to get rows affected: %w", err))
	}
	if rowsAffected == 0 {
		return domain.WorkflowStep{}, recordError(span, common.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return domain.WorkflowStep{}, recordError(span, fmt.Errorf("failed to commit transaction: %w", err))
	}
	return step, nil
}

func (s *Storage) GetWorkflowStep(ctx context.Context, workflowId, stepId string) (domain.WorkflowStep, error) {
	ctx, span := startSpan(ctx, "Storage.GetWorkflowStep", "SELECT",
		attribute.String("workflow_id", workflowId),
		attribute.String("step_id", stepId),
	)
	defer span.End()

	row := s.db.QueryRowContext(ctx, "SELECT "+workflowStepColumns+" FROM workflow_steps WHERE workflow_id = ? AND id = ?", workflowId, stepId)
	step, err := scanWorkflowStep(row)
	if err != nil {
		return domain.WorkflowStep{}, recordError(span, notFoundOr(err, "get workflow step"))
	}
	return step, nil
}

func (s *Storage) GetWorkflowSteps(ctx context.Context, workflowId string) ([]domain.WorkflowStep, error) {
	ctx, span := startSpan(ctx, "Storage.GetWorkflowSteps", "SELECT", attribute.String("workflow_id", workflowId))
	defer span.End()

	rows, err := s.db.QueryContext(ctx, "SELECT "+workflowStepColumns+`
		FROM workflow_steps WHERE workflow_id = ?
		ORDER BY layer_index, position_in_layer, created_at, id`, workflowId)
	if err != nil {
		return nil, recordError(span, fmt.Errorf("failed to query workflow steps: %w", err))
	}
	defer rows.Close()

	steps := []domain.WorkflowStep{}
	for rows.Next() {
		step, err := scanWorkflowStep(rows)
		if err != nil {
			return nil, recordError(span, fmt.Errorf("failed to scan workflow step: %w", err))
		}
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, recordError(span, fmt.Errorf("error iterating workflow steps: %w", err))
	}
	return steps, nil
}

func (s *Storage) DeleteWorkflowStep(ctx context.Context, workflowId, stepId string) error {
	ctx, span := startSpan(ctx, "Storage.DeleteWorkflowStep", "DELETE",
		attribute.String("workflow_id", workflowId),
		attribute.String("step_id", stepId),
	)
	defer span.End()

	result, err := s.db.ExecContext(ctx, "DELETE FROM workflow_steps WHERE workflow_id = ? AND id = ?", workflowId, stepId)
	if err != nil {
		return recordError(span, fmt.Errorf("failed to delete workflow step: %w", err))
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return recordError(span, fmt.Errorf("failed to get rows affected: %w", err))
	}
	if rowsAffected == 0 {
		return recordError(span, common.ErrNotFound)
	}
	return nil
}

func (s *Storage) ReorderWorkflowSteps(ctx context.Context, workflowId string, positions []domain.StepPosition) error {
	ctx, span := startSpan(ctx, "Storage.ReorderWorkflowSteps", "UPDATE",
		attribute.String("workflow_id", workflowId),
		attribute.Int("step_count", len(positions)),
	)
	defer span.End()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return recordError(span, fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE workflow_steps SET layer_index = ?, position_in_layer = ?, updated_at = ?
		WHERE workflow_id = ? AND id = ?`)
	if err != nil {
		return recordError(span, fmt.Errorf("failed to prepare statement: %w", err))
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, position := range positions {
		result, err := stmt.ExecContext(ctx, position.LayerIndex, position.PositionInLayer, now, workflowId, position.Id)
		if err != nil {
			return recordError(span, fmt.Errorf("failed to reorder step %s: %w", position.Id, err))
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return recordError(span, fmt.Errorf("failed to get rows affected: %w", err))
		}
		if rowsAffected == 0 {
			return recordError(span, fmt.Errorf("%w: step %s", common.ErrNotFound, position.Id))
		}
	}

	if err := tx.Commit(); err != nil {
		return recordError(span, fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}
