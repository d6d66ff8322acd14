package workflow_sync

import (
	"context"
	"fmt"

	"quoteflow/common"
	"quoteflow/domain"
)

// pendingEdit is a burst of keystrokes on one text field of one step. origin
// restores the field to what it was before the burst started.
type pendingEdit struct {
	stepId string
	field  domain.StepTextField
	value  string
	origin domain.StepUpdate
}

func editKey(stepId string, field domain.StepTextField) string {
	return stepId + "/" + string(field)
}

// EditStepField updates a text field locally right away and sends it once
// the field has been quiet for the edit debounce. If the send fails, the
// field goes back to its value before the burst.
func (s *Session) EditStepField(stepId string, field domain.StepTextField, value string) error {
	if _, err := domain.StringToStepTextField(string(field)); err != nil {
		return err
	}

	s.mu.Lock()
	if s.workflow == nil {
		s.mu.Unlock()
		return nil
	}
	idx := indexOfStep(s.steps, stepId)
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("step %s: %w", stepId, common.ErrNotFound)
	}

	key := editKey(stepId, field)
	edit, ok := s.edits[key]
	if !ok {
		edit = &pendingEdit{stepId: stepId, field: field, origin: s.steps[idx].TextFieldSnapshot(field)}
		s.edits[key] = edit
	}
	edit.value = value
	s.steps = replaceStep(s.steps, stepId, s.steps[idx].Apply(domain.TextFieldUpdate(field, value), s.clock.Now().UTC()))
	workflowId := s.workflow.Id
	gen := s.generation
	s.mu.Unlock()

	s.debouncer.Schedule(key, func() { s.sendEdit(gen, workflowId, key) })
	return nil
}

// sendEdit closes the burst for key and queues its remote update. Keystrokes
// arriving after this start a new burst.
func (s *Session) sendEdit(gen uint64, workflowId, key string) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	edit, ok := s.edits[key]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.edits, key)
	s.mu.Unlock()

	s.queue.Enqueue("edit step "+key, func(ctx context.Context) error {
		return s.commitEdit(ctx, gen, workflowId, key, edit)
	})
}

func (s *Session) commitEdit(ctx context.Context, gen uint64, workflowId, key string, edit *pendingEdit) error {
	step, err := s.remote.UpdateWorkflowStep(ctx, s.user, workflowId, edit.stepId, domain.TextFieldUpdate(edit.field, edit.value))

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return err
	}
	if err != nil {
		if newer, ok := s.edits[key]; ok {
			// the newer burst now owns the revert
			newer.origin = edit.origin
		} else if idx := indexOfStep(s.steps, edit.stepId); idx >= 0 {
			s.steps = replaceStep(s.steps, edit.stepId, s.steps[idx].Apply(edit.origin, s.clock.Now().UTC()))
		}
		s.mu.Unlock()
		return s.fail(gen, "edit step", err)
	}

	if indexOfStep(s.steps, edit.stepId) >= 0 {
		now := s.clock.Now().UTC()
		for _, pending := range s.edits {
			if pending.stepId == edit.stepId {
				step = step.Apply(domain.TextFieldUpdate(pending.field, pending.value), now)
			}
		}
		s.steps = replaceStep(s.steps, edit.stepId, step)
	}
	s.mu.Unlock()
	return nil
}
