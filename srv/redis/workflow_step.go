package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"quoteflow/common"
	"quoteflow/domain"

	"github.com/redis/go-redis/v9"
)

var _ domain.WorkflowStepStorage = (*Storage)(nil)

const maxTxRetries = 5

func stepKey(workflowId, stepId string) string {
	return fmt.Sprintf("workflow:%s:step:%s", workflowId, stepId)
}

func workflowStepsKey(workflowId string) string {
	return fmt.Sprintf("workflow:%s:steps", workflowId)
}

// PersistWorkflowStep inserts a new step. An existing id fails with
// common.ErrConflict.
func (s Storage) PersistWorkflowStep(ctx context.Context, step domain.WorkflowStep) error {
	exists, err := s.Client.Exists(ctx, workflowKey(step.WorkflowId)).Result()
	if err != nil {
		return fmt.Errorf("failed to check workflow: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("failed to persist workflow step: workflow %s: %w", step.WorkflowId, common.ErrNotFound)
	}

	record, err := marshal(step)
	if err != nil {
		return err
	}

	key := stepKey(step.WorkflowId, step.Id)
	created, err := s.Client.SetNX(ctx, key, record, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to persist workflow step: %w", err)
	}
	if !created {
		return fmt.Errorf("step %s: %w", step.Id, common.ErrConflict)
	}
	if err := s.Client.SAdd(ctx, workflowStepsKey(step.WorkflowId), step.Id).Err(); err != nil {
		return fmt.Errorf("failed to index workflow step: %w", err)
	}
	return nil
}

// UpdateWorkflowStep rewrites the step under WATCH, so a delete landing
// between the read and the write fails the update instead of being undone.
func (s Storage) UpdateWorkflowStep(ctx context.Context, workflowId, stepId string, update domain.StepUpdate) (domain.WorkflowStep, error) {
	key := stepKey(workflowId, stepId)
	var updated domain.WorkflowStep

	txf := func(tx *redis.Tx) error {
		record, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return common.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get workflow step: %w", err)
		}

		var step domain.WorkflowStep
		if err := json.Unmarshal([]byte(record), &step); err != nil {
			return fmt.Errorf("failed to unmarshal %s: %w", key, err)
		}
		updated = step.Apply(update, time.Now().UTC())
		data, err := marshal(updated)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.Client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return domain.WorkflowStep{}, err
		}
		return updated, nil
	}
	return domain.WorkflowStep{}, fmt.Errorf("failed to update workflow step: too much contention")
}

func (s Storage) GetWorkflowStep(ctx context.Context, workflowId, stepId string) (domain.WorkflowStep, error) {
	var step domain.WorkflowStep
	if err := s.getJSON(ctx, stepKey(workflowId, stepId), &step); err != nil {
		return domain.WorkflowStep{}, err
	}
	return step, nil
}

func (s Storage) GetWorkflowSteps(ctx context.Context, workflowId string) ([]domain.WorkflowStep, error) {
	stepIds, err := s.Client.SMembers(ctx, workflowStepsKey(workflowId)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow step ids: %w", err)
	}

	steps := []domain.WorkflowStep{}
	if len(stepIds) == 0 {
		return steps, nil
	}

	keys := make([]string, len(stepIds))
	for i, stepId := range stepIds {
		keys[i] = stepKey(workflowId, stepId)
	}
	records, err := s.Client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow steps: %w", err)
	}

	for i, record := range records {
		if record == nil {
			continue
		}
		var step domain.WorkflowStep
		if err := json.Unmarshal([]byte(record.(string)), &step); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", keys[i], err)
		}
		steps = append(steps, step)
	}

	sort.Slice(steps, func(i, j int) bool {
		a, b := steps[i], steps[j]
		if a.LayerIndex != b.LayerIndex {
			return a.LayerIndex < b.LayerIndex
		}
		if a.PositionInLayer != b.PositionInLayer {
			return a.PositionInLayer < b.PositionInLayer
		}
		if !a.Created.Equal(b.Created) {
			return a.Created.Before(b.Created)
		}
		return a.Id < b.Id
	})
	return steps, nil
}

func (s Storage) DeleteWorkflowStep(ctx context.Context, workflowId, stepId string) error {
	pipe := s.Client.TxPipeline()
	deleted := pipe.Del(ctx, stepKey(workflowId, stepId))
	pipe.SRem(ctx, workflowStepsKey(workflowId), stepId)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete workflow step: %w", err)
	}
	if deleted.Val() == 0 {
		return common.ErrNotFound
	}
	return nil
}

// ReorderWorkflowSteps rewrites every step in one MULTI/EXEC under WATCH, so
// a concurrent write to any of them retries the whole batch.
func (s Storage) ReorderWorkflowSteps(ctx context.Context, workflowId string, positions []domain.StepPosition) error {
	if len(positions) == 0 {
		return nil
	}

	keys := make([]string, len(positions))
	for i, position := range positions {
		keys[i] = stepKey(workflowId, position.Id)
	}

	txf := func(tx *redis.Tx) error {
		records, err := tx.MGet(ctx, keys...).Result()
		if err != nil {
			return fmt.Errorf("failed to get workflow steps: %w", err)
		}

		steps := make([]domain.WorkflowStep, len(records))
		for i, record := range records {
			if record == nil {
				return fmt.Errorf("%w: step %s", common.ErrNotFound, positions[i].Id)
			}
			if err := json.Unmarshal([]byte(record.(string)), &steps[i]); err != nil {
				return fmt.Errorf("failed to unmarshal %s: %w", keys[i], err)
			}
		}

		now := time.Now().UTC()
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for i, step := range steps {
				step.LayerIndex = positions[i].LayerIndex
				step.PositionInLayer = positions[i].PositionInLayer
				step.Updated = now
				record, err := marshal(step)
				if err != nil {
					return err
				}
				pipe.Set(ctx, keys[i], record, 0)
			}
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.Client.Watch(ctx, txf, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("failed to reorder workflow steps: too much contention")
}
