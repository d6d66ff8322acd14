package workflow_sync

import (
	"context"
	"fmt"

	"quoteflow/common"
	"quoteflow/domain"

	"github.com/rs/zerolog/log"
)

// NewLayer asks AddStep to open a stage after the last one.
const NewLayer = -1

type Placement string

const (
	PlacementAbove Placement = "above"
	PlacementBelow Placement = "below"
)

func StringToPlacement(s string) (Placement, error) {
	switch s {
	case "above":
		return PlacementAbove, nil
	case "below":
		return PlacementBelow, nil
	default:
		return "", common.NewValidationError("placement", fmt.Sprintf("invalid placement \"%s\"", s))
	}
}

// AddStep appends a step at the end of a layer, or in a new last layer when
// layerIndex is NewLayer.
func (s *Session) AddStep(ctx context.Context, layerIndex int, fields domain.StepFields) (*domain.WorkflowStep, error) {
	if layerIndex < NewLayer {
		return nil, common.NewValidationError("layer_index", "must be >= 0")
	}
	steps := s.Steps()
	if layerIndex == NewLayer {
		layerIndex = NextLayerIndex(steps)
	}
	fields.LayerIndex = layerIndex
	fields.PositionInLayer = len(LayerSteps(steps, layerIndex))
	return s.CreateStep(ctx, fields)
}

// AddParallelStep creates a step in the same layer as relativeToId, directly
// above or below it. Siblings from the insertion point on move down by one
// first.
func (s *Session) AddParallelStep(ctx context.Context, relativeToId string, placement Placement, fields domain.StepFields) (*domain.WorkflowStep, error) {
	if _, err := StringToPlacement(string(placement)); err != nil {
		return nil, err
	}
	if s.Workflow() == nil {
		return nil, nil
	}
	ref, ok := s.Step(relativeToId)
	if !ok {
		return nil, fmt.Errorf("step %s: %w", relativeToId, common.ErrNotFound)
	}

	at := ref.PositionInLayer
	if placement == PlacementBelow {
		at++
	}
	fields.LayerIndex = ref.LayerIndex
	fields.PositionInLayer = at
	if err := fields.Validate(); err != nil {
		return nil, err
	}

	steps := s.Steps()
	shift := InsertShift(steps, ref.LayerIndex, at)
	if len(shift) > 0 {
		if err := s.ReorderSteps(ctx, shift); err != nil {
			return nil, err
		}
	}

	step, err := s.CreateStep(ctx, fields)
	if err != nil && len(shift) > 0 {
		s.undoShift(ctx, steps, shift)
	}
	return step, err
}

// undoShift moves the shifted siblings back to where they were before a
// parallel insert whose create failed. Siblings deleted meanwhile are skipped.
func (s *Session) undoShift(ctx context.Context, before []domain.WorkflowStep, shift []domain.StepPosition) {
	current := s.Steps()
	inverse := make([]domain.StepPosition, 0, len(shift))
	for _, p := range shift {
		if indexOfStep(current, p.Id) < 0 {
			continue
		}
		inverse = append(inverse, positionOf(before[indexOfStep(before, p.Id)]))
	}
	if err := s.ReorderSteps(ctx, inverse); err != nil {
		log.Warn().Err(err).Int("steps", len(inverse)).Msg("Failed to undo sibling shift")
	}
}

// MoveStep moves a step to toPosition within toLayer, renumbering the layer
// it leaves and the one it joins in a single reorder.
func (s *Session) MoveStep(ctx context.Context, stepId string, toLayer, toPosition int) error {
	if toLayer < 0 || toPosition < 0 {
		return common.NewValidationError("position", "layer and position must be >= 0")
	}
	steps := s.Steps()
	if indexOfStep(steps, stepId) < 0 {
		return fmt.Errorf("step %s: %w", stepId, common.ErrNotFound)
	}
	return s.ReorderSteps(ctx, MovePositions(steps, stepId, toLayer, toPosition))
}

// SwapLayers exchanges two stages.
func (s *Session) SwapLayers(ctx context.Context, a, b int) error {
	if a < 0 || b < 0 {
		return common.NewValidationError("layer_index", "must be >= 0")
	}
	return s.ReorderSteps(ctx, SwapLayerPositions(s.Steps(), a, b))
}
