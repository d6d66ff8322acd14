package redis

import (
	"context"
	"errors"
	"fmt"

	"quoteflow/common"
	"quoteflow/domain"

	"github.com/redis/go-redis/v9"
)

var _ domain.WorkflowStorage = (*Storage)(nil)

func workflowKey(workflowId string) string {
	return fmt.Sprintf("workflow:%s", workflowId)
}

func quoteWorkflowKey(quoteId int64) string {
	return fmt.Sprintf("quote:%d:workflow", quoteId)
}

// CreateWorkflow claims the quote's workflow slot with SETNX, which is what
// makes workflows unique per quote.
func (s Storage) CreateWorkflow(ctx context.Context, workflow domain.Workflow) error {
	claimed, err := s.Client.SetNX(ctx, quoteWorkflowKey(workflow.QuoteId), workflow.Id, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to claim workflow for quote: %w", err)
	}
	if !claimed {
		return fmt.Errorf("%w: quote %d already has a workflow", common.ErrConflict, workflow.QuoteId)
	}

	record, err := marshal(workflow)
	if err != nil {
		return err
	}
	if err := s.Client.Set(ctx, workflowKey(workflow.Id), record, 0).Err(); err != nil {
		s.Client.Del(ctx, quoteWorkflowKey(workflow.QuoteId))
		return fmt.Errorf("failed to persist workflow: %w", err)
	}
	return nil
}

func (s Storage) GetWorkflow(ctx context.Context, workflowId string) (domain.Workflow, error) {
	var workflow domain.Workflow
	if err := s.getJSON(ctx, workflowKey(workflowId), &workflow); err != nil {
		return domain.Workflow{}, err
	}
	return workflow, nil
}

func (s Storage) GetWorkflowByQuoteId(ctx context.Context, quoteId int64) (domain.Workflow, error) {
	workflowId, err := s.Client.Get(ctx, quoteWorkflowKey(quoteId)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Workflow{}, common.ErrNotFound
		}
		return domain.Workflow{}, fmt.Errorf("failed to get workflow id for quote: %w", err)
	}
	return s.GetWorkflow(ctx, workflowId)
}

func (s Storage) GetQuoteIdsWithoutWorkflow(ctx context.Context, userId string) ([]int64, error) {
	quoteIds, err := s.userQuoteIds(ctx, userId)
	if err != nil {
		return nil, err
	}

	missing := []int64{}
	for _, quoteId := range quoteIds {
		exists, err := s.Client.Exists(ctx, quoteWorkflowKey(quoteId)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to check workflow for quote %d: %w", quoteId, err)
		}
		if exists == 0 {
			missing = append(missing, quoteId)
		}
	}
	return missing, nil
}
