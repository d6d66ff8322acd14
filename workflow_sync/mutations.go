package workflow_sync

import (
	"context"
	"fmt"
	"slices"

	"quoteflow/common"
	"quoteflow/domain"
)

// CreateStep appends a temporary step, creates it remotely and swaps in the
// server's record. It returns nil, nil when no workflow is loaded.
func (s *Session) CreateStep(ctx context.Context, fields domain.StepFields) (*domain.WorkflowStep, error) {
	if err := fields.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.workflow == nil {
		s.mu.Unlock()
		return nil, nil
	}
	workflowId := s.workflow.Id
	gen := s.generation
	temp := domain.NewWorkflowStep(newTempId(), workflowId, fields, s.clock.Now().UTC())
	s.steps = append(slices.Clone(s.steps), temp)
	s.mu.Unlock()

	step, err := s.remote.CreateWorkflowStep(ctx, s.user, workflowId, fields)

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return &step, nil
	}
	if err != nil {
		s.steps = removeStep(s.steps, temp.Id)
		s.mu.Unlock()
		return nil, s.fail(gen, "create step", err)
	}
	s.steps = replaceStep(s.steps, temp.Id, step)
	s.mu.Unlock()
	return &step, nil
}

// UpdateStep merges update into the local record, then replaces it with the
// server's. On failure the record is restored exactly as it was.
func (s *Session) UpdateStep(ctx context.Context, id string, update domain.StepUpdate) (*domain.WorkflowStep, error) {
	if err := update.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.workflow == nil {
		s.mu.Unlock()
		return nil, nil
	}
	idx := indexOfStep(s.steps, id)
	if idx < 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("step %s: %w", id, common.ErrNotFound)
	}
	workflowId := s.workflow.Id
	gen := s.generation
	original := s.steps[idx]
	s.steps = replaceStep(s.steps, id, original.Apply(update, s.clock.Now().UTC()))
	s.mu.Unlock()

	step, err := s.remote.UpdateWorkflowStep(ctx, s.user, workflowId, id, update)

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return &step, nil
	}
	if err != nil {
		s.steps = replaceStep(s.steps, id, original)
		s.mu.Unlock()
		return nil, s.fail(gen, "update step", err)
	}
	s.steps = replaceStep(s.steps, id, step)
	s.mu.Unlock()
	return &step, nil
}

// DeleteStep removes the step and moves its later siblings up by one. The
// siblings' new positions are synced in the background whether or not the
// delete succeeds; a failed delete restores the whole collection.
func (s *Session) DeleteStep(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.workflow == nil {
		s.mu.Unlock()
		return nil
	}
	idx := indexOfStep(s.steps, id)
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("step %s: %w", id, common.ErrNotFound)
	}
	workflowId := s.workflow.Id
	gen := s.generation
	snapshot := s.steps
	remaining, shifted := RenumberAfterDelete(s.steps, s.steps[idx])
	s.steps = remaining
	s.mu.Unlock()

	if len(shifted) > 0 {
		s.enqueuePositionSync(gen, workflowId, shifted)
	}

	if err := s.remote.DeleteWorkflowStep(ctx, s.user, workflowId, id); err != nil {
		s.mu.Lock()
		stale := gen != s.generation
		if !stale {
			s.steps = snapshot
		}
		s.mu.Unlock()
		if stale {
			return err
		}
		return s.fail(gen, "delete step", err)
	}
	return nil
}

func (s *Session) enqueuePositionSync(gen uint64, workflowId string, positions []domain.StepPosition) {
	s.queue.Enqueue("sync step positions", func(ctx context.Context) error {
		err := s.remote.ReorderWorkflowSteps(ctx, s.user, workflowId, positions)
		if err != nil {
			s.fail(gen, "sync step positions", err)
		}
		return err
	})
}

// ReorderSteps applies a batch of positions locally and remotely in one go.
// Steps are left in their optimistic place on success since the server does
// not return records for a reorder.
func (s *Session) ReorderSteps(ctx context.Context, positions []domain.StepPosition) error {
	if err := domain.ValidateStepPositions(positions); err != nil {
		return err
	}
	if len(positions) == 0 {
		return nil
	}

	s.mu.Lock()
	if s.workflow == nil {
		s.mu.Unlock()
		return nil
	}
	for _, p := range positions {
		if indexOfStep(s.steps, p.Id) < 0 {
			s.mu.Unlock()
			return fmt.Errorf("step %s: %w", p.Id, common.ErrNotFound)
		}
	}
	workflowId := s.workflow.Id
	gen := s.generation
	snapshot := s.steps
	s.steps = ApplyPositions(s.steps, positions, s.clock.Now().UTC())
	s.mu.Unlock()

	if err := s.remote.ReorderWorkflowSteps(ctx, s.user, workflowId, positions); err != nil {
		s.mu.Lock()
		stale := gen != s.generation
		if !stale {
			s.steps = snapshot
		}
		s.mu.Unlock()
		if stale {
			return err
		}
		return s.fail(gen, "reorder steps", err)
	}
	return nil
}

// UpdateCurrentStage marks the step the quote is at and mirrors it to the
// quote in the background. A failed mirror is reported but the marker stays.
func (s *Session) UpdateCurrentStage(stepId *string) {
	s.mu.Lock()
	quoteId := s.quoteId
	gen := s.generation
	s.currentStepId = cloneString(stepId)
	s.mu.Unlock()
	if quoteId == 0 {
		return
	}

	stepId = cloneString(stepId)
	s.queue.Enqueue("update current stage", func(ctx context.Context) error {
		err := s.remote.UpdateQuoteCurrentStage(ctx, s.user, quoteId, stepId)
		if err != nil {
			s.fail(gen, "update current stage", err)
		}
		return err
	})
}
