package jetstream

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"quoteflow/domain"
	"quoteflow/srv"

	"github.com/nats-io/nats.go/jetstream"
)

var _ srv.Streamer = (*Streamer)(nil)

func stepChangesSubject(workflowId string) string {
	return fmt.Sprintf("workflow_steps.changes.%s", workflowId)
}

func (s *Streamer) AddWorkflowStepChange(ctx context.Context, change domain.WorkflowStepChange) error {
	data, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow step change: %w", err)
	}

	_, err = s.js.Publish(ctx, stepChangesSubject(change.WorkflowId), data)
	if err != nil {
		return fmt.Errorf("failed to publish workflow step change: %w", err)
	}
	return nil
}

// lastSeenSequence turns a stream message id into the stream sequence the
// reader has already seen; reading resumes after it. "" and "0" read from
// the beginning, "$" after the current end.
func (s *Streamer) lastSeenSequence(ctx context.Context, streamMessageStartId string) (uint64, error) {
	switch streamMessageStartId {
	case "", "0":
		return 0, nil
	case "$":
		stream, err := s.js.Stream(ctx, PersistentStreamName)
		if err != nil {
			return 0, fmt.Errorf("failed to get stream: %w", err)
		}
		info, err := stream.Info(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to get stream info: %w", err)
		}
		return info.State.LastSeq, nil
	}

	seq, err := strconv.ParseUint(streamMessageStartId, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid stream message start id: %w", err)
	}
	return seq, nil
}

func (s *Streamer) createConsumer(ctx context.Context, workflowId string, lastSeen uint64) (jetstream.Consumer, error) {
	consumer, err := s.js.OrderedConsumer(ctx, PersistentStreamName, jetstream.OrderedConsumerConfig{
		FilterSubjects:    []string{stepChangesSubject(workflowId)},
		InactiveThreshold: 5 * time.Minute,
		DeliverPolicy:     jetstream.DeliverByStartSequencePolicy,
		OptStartSeq:       lastSeen + 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}
	return consumer, nil
}

func decodeChange(msg jetstream.Msg) (domain.WorkflowStepChange, uint64, error) {
	var change domain.WorkflowStepChange
	if err := json.Unmarshal(msg.Data(), &change); err != nil {
		return change, 0, fmt.Errorf("failed to unmarshal workflow step change: %w", err)
	}
	meta, err := msg.Metadata()
	if err != nil {
		return change, 0, fmt.Errorf("failed to get message metadata: %w", err)
	}
	change.StreamId = strconv.FormatUint(meta.Sequence.Stream, 10)
	return change, meta.Sequence.Stream, nil
}

// GetWorkflowStepChanges returns the sequence of the last returned change as
// the id to continue from.
func (s *Streamer) GetWorkflowStepChanges(ctx context.Context, workflowId, streamMessageStartId string, maxCount int64, blockDuration time.Duration) ([]domain.WorkflowStepChange, string, error) {
	if maxCount == 0 {
		maxCount = 100
	}

	lastSeen, err := s.lastSeenSequence(ctx, streamMessageStartId)
	if err != nil {
		return nil, "", err
	}
	continueId := strconv.FormatUint(lastSeen, 10)

	consumer, err := s.createConsumer(ctx, workflowId, lastSeen)
	if err != nil {
		return nil, "", err
	}

	var msgs jetstream.MessageBatch
	if blockDuration == 0 {
		msgs, err = consumer.FetchNoWait(int(maxCount))
	} else {
		msgs, err = consumer.Fetch(int(maxCount), jetstream.FetchMaxWait(blockDuration))
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch messages: %w", err)
	}

	changes := []domain.WorkflowStepChange{}
	for msg := range msgs.Messages() {
		change, seq, err := decodeChange(msg)
		if err != nil {
			return nil, "", err
		}
		changes = append(changes, change)
		continueId = strconv.FormatUint(seq, 10)
	}

	return changes, continueId, nil
}

func (s *Streamer) StreamWorkflowStepChanges(ctx context.Context, workflowId, streamMessageStartId string) (<-chan domain.WorkflowStepChange, <-chan error) {
	changeCh := make(chan domain.WorkflowStepChange)
	errCh := make(chan error, 1)

	go func() {
		defer close(changeCh)
		defer close(errCh)

		lastSeen, err := s.lastSeenSequence(ctx, streamMessageStartId)
		if err != nil {
			errCh <- err
			return
		}
		consumer, err := s.createConsumer(ctx, workflowId, lastSeen)
		if err != nil {
			errCh <- err
			return
		}

		msgCh := make(chan jetstream.Msg)
		consContext, err := consumer.Consume(func(msg jetstream.Msg) {
			select {
			case msgCh <- msg:
			case <-ctx.Done():
			}
		})
		if err != nil {
			errCh <- fmt.Errorf("failed to consume messages: %w", err)
			return
		}
		defer consContext.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-consContext.Closed():
				return
			case msg := <-msgCh:
				change, _, err := decodeChange(msg)
				if err != nil {
					errCh <- err
					return
				}
				select {
				case changeCh <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return changeCh, errCh
}
