package srv

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"quoteflow/domain"
)

// MemoryStreamer keeps step changes in process memory. Stream ids are the
// 1-based sequence number of a change within its workflow.
type MemoryStreamer struct {
	mu      sync.Mutex
	changes map[string][]domain.WorkflowStepChange
	// notify is closed and replaced every time a change is added
	notify chan struct{}
}

var _ Streamer = (*MemoryStreamer)(nil)

func NewMemoryStreamer() *MemoryStreamer {
	return &MemoryStreamer{
		changes: make(map[string][]domain.WorkflowStepChange),
		notify:  make(chan struct{}),
	}
}

func (m *MemoryStreamer) AddWorkflowStepChange(ctx context.Context, change domain.WorkflowStepChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	change.StreamId = strconv.Itoa(len(m.changes[change.WorkflowId]) + 1)
	m.changes[change.WorkflowId] = append(m.changes[change.WorkflowId], change)
	close(m.notify)
	m.notify = make(chan struct{})
	return nil
}

// startOffset returns how many changes to skip. "" and "0" read from the
// beginning, "$" only reads changes added after the call.
func (m *MemoryStreamer) startOffset(workflowId, streamMessageStartId string) (int, error) {
	switch streamMessageStartId {
	case "", "0":
		return 0, nil
	case "$":
		return len(m.changes[workflowId]), nil
	}
	offset, err := strconv.Atoi(streamMessageStartId)
	if err != nil || offset < 0 {
		return 0, fmt.Errorf("invalid stream message start id: %s", streamMessageStartId)
	}
	return offset, nil
}

func (m *MemoryStreamer) GetWorkflowStepChanges(ctx context.Context, workflowId, streamMessageStartId string, maxCount int64, blockDuration time.Duration) ([]domain.WorkflowStepChange, string, error) {
	m.mu.Lock()
	offset, err := m.startOffset(workflowId, streamMessageStartId)
	m.mu.Unlock()
	if err != nil {
		return nil, "", err
	}

	var timeout <-chan time.Time
	if blockDuration > 0 {
		timer := time.NewTimer(blockDuration)
		defer timer.Stop()
		timeout = timer.C
	}

	for {
		m.mu.Lock()
		all := m.changes[workflowId]
		notify := m.notify
		if offset < len(all) {
			end := len(all)
			if maxCount > 0 && int64(end-offset) > maxCount {
				end = offset + int(maxCount)
			}
			changes := make([]domain.WorkflowStepChange, end-offset)
			copy(changes, all[offset:end])
			m.mu.Unlock()
			return changes, strconv.Itoa(end), nil
		}
		m.mu.Unlock()

		if timeout == nil {
			return nil, strconv.Itoa(offset), nil
		}
		select {
		case <-ctx.Done():
			return nil, strconv.Itoa(offset), ctx.Err()
		case <-timeout:
			return nil, strconv.Itoa(offset), nil
		case <-notify:
		}
	}
}

func (m *MemoryStreamer) StreamWorkflowStepChanges(ctx context.Context, workflowId, streamMessageStartId string) (<-chan domain.WorkflowStepChange, <-chan error) {
	changeCh := make(chan domain.WorkflowStepChange)
	errCh := make(chan error, 1)

	m.mu.Lock()
	offset, err := m.startOffset(workflowId, streamMessageStartId)
	m.mu.Unlock()

	go func() {
		defer close(changeCh)
		defer close(errCh)

		if err != nil {
			errCh <- err
			return
		}

		continueId := strconv.Itoa(offset)
		for {
			changes, nextId, err := m.GetWorkflowStepChanges(ctx, workflowId, continueId, 100, 250*time.Millisecond)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				errCh <- err
				return
			}
			for _, change := range changes {
				select {
				case <-ctx.Done():
					return
				case changeCh <- change:
				}
			}
			continueId = nextId
		}
	}()

	return changeCh, errCh
}
