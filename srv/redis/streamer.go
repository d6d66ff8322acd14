package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"quoteflow/domain"
	"quoteflow/srv"

	"github.com/redis/go-redis/v9"
)

var _ srv.Streamer = (*Streamer)(nil)

// Streamer appends step changes to one redis stream per workflow. Each
// message carries the change as JSON in its "change" field.
type Streamer struct {
	Client *redis.Client
}

func NewStreamer() *Streamer {
	return &Streamer{Client: setupClient()}
}

func stepChangesKey(workflowId string) string {
	return fmt.Sprintf("workflow:%s:step_changes", workflowId)
}

func (s Streamer) AddWorkflowStepChange(ctx context.Context, change domain.WorkflowStepChange) error {
	data, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("AddWorkflowStepChange - failed to marshal change: %w", err)
	}

	err = s.Client.XAdd(ctx, &redis.XAddArgs{
		Stream: stepChangesKey(change.WorkflowId),
		Values: map[string]interface{}{"change": string(data)},
	}).Err()
	if err != nil {
		return fmt.Errorf("AddWorkflowStepChange - failed to append to changes stream: %w", err)
	}
	return nil
}

func (s Streamer) GetWorkflowStepChanges(ctx context.Context, workflowId, streamMessageStartId string, maxCount int64, blockDuration time.Duration) ([]domain.WorkflowStepChange, string, error) {
	streamKey := stepChangesKey(workflowId)
	if streamMessageStartId == "" {
		streamMessageStartId = "0"
	}
	if maxCount == 0 {
		maxCount = 100
	}

	// "$" is only meaningful for the first read, resolve it to a concrete id
	// so the caller can continue from what we return.
	if streamMessageStartId == "$" {
		last, err := s.Client.XRevRangeN(ctx, streamKey, "+", "-", 1).Result()
		if err != nil {
			return nil, "", fmt.Errorf("failed to get last stream id: %w", err)
		}
		streamMessageStartId = "0"
		if len(last) > 0 {
			streamMessageStartId = last[0].ID
		}
	}

	block := blockDuration
	if block <= 0 {
		block = -1
	}
	streams, err := s.Client.XRead(ctx, &redis.XReadArgs{
		Streams: []string{streamKey, streamMessageStartId},
		Count:   maxCount,
		Block:   block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, streamMessageStartId, nil
		}
		return nil, "", err
	}
	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, streamMessageStartId, nil
	}

	changes := make([]domain.WorkflowStepChange, 0, len(streams[0].Messages))
	for _, message := range streams[0].Messages {
		raw, ok := message.Values["change"].(string)
		if !ok {
			return nil, "", fmt.Errorf("stream message %s has no change", message.ID)
		}
		var change domain.WorkflowStepChange
		if err := json.Unmarshal([]byte(raw), &change); err != nil {
			return nil, "", fmt.Errorf("failed to unmarshal stream message %s: %w", message.ID, err)
		}
		change.StreamId = message.ID
		changes = append(changes, change)
	}

	lastMessageId := streams[0].Messages[len(streams[0].Messages)-1].ID
	return changes, lastMessageId, nil
}

func (s Streamer) StreamWorkflowStepChanges(ctx context.Context, workflowId, streamMessageStartId string) (<-chan domain.WorkflowStepChange, <-chan error) {
	changeCh := make(chan domain.WorkflowStepChange)
	errCh := make(chan error, 1)

	go func() {
		defer close(changeCh)
		defer close(errCh)

		continueMessageId := streamMessageStartId
		for {
			select {
			case <-ctx.Done():
				return
			default:
				changes, latestContinueMessageId, err := s.GetWorkflowStepChanges(ctx, workflowId, continueMessageId, 100, 250*time.Millisecond)
				if err != nil {
					if ctx.Err() == nil {
						errCh <- err
					}
					return
				}

				for _, change := range changes {
					select {
					case <-ctx.Done():
						return
					case changeCh <- change:
					}
				}

				continueMessageId = latestContinueMessageId
			}
		}
	}()

	return changeCh, errCh
}
