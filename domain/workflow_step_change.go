package domain

import (
	"context"
	"time"
)

type WorkflowStepChangeKind string

const (
	WorkflowStepChangeCreated   WorkflowStepChangeKind = "created"
	WorkflowStepChangeUpdated   WorkflowStepChangeKind = "updated"
	WorkflowStepChangeDeleted   WorkflowStepChangeKind = "deleted"
	WorkflowStepChangeReordered WorkflowStepChangeKind = "reordered"
)

// WorkflowStepChange is an entry of a workflow's step change feed. Step is set
// for created and updated changes, StepId for deletes and Positions for
// reorders.
type WorkflowStepChange struct {
	WorkflowId string                 `json:"workflow_id"`
	Kind       WorkflowStepChangeKind `json:"kind"`
	Step       *WorkflowStep          `json:"step,omitempty"`
	StepId     string                 `json:"step_id,omitempty"`
	Positions  []StepPosition         `json:"positions,omitempty"`
	StreamId   string                 `json:"stream_id,omitempty"`
}

// WorkflowStepStreamer defines the interface for step change stream operations
type WorkflowStepStreamer interface {
	AddWorkflowStepChange(ctx context.Context, change WorkflowStepChange) error
	GetWorkflowStepChanges(ctx context.Context, workflowId, streamMessageStartId string, maxCount int64, blockDuration time.Duration) ([]WorkflowStepChange, string, error)
	StreamWorkflowStepChanges(ctx context.Context, workflowId, streamMessageStartId string) (<-chan WorkflowStepChange, <-chan error)
}
