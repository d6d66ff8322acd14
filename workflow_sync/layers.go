package workflow_sync

import (
	"slices"
	"time"

	"quoteflow/domain"
)

// Layer is one approval stage: the steps sharing a layer index, ordered by
// position.
type Layer struct {
	Index int
	Steps []domain.WorkflowStep
}

func compareSteps(a, b domain.WorkflowStep) int {
	if a.LayerIndex != b.LayerIndex {
		return a.LayerIndex - b.LayerIndex
	}
	if a.PositionInLayer != b.PositionInLayer {
		return a.PositionInLayer - b.PositionInLayer
	}
	if a.Id < b.Id {
		return -1
	}
	if a.Id > b.Id {
		return 1
	}
	return 0
}

// SortSteps returns a copy ordered by layer, then position, then id.
func SortSteps(steps []domain.WorkflowStep) []domain.WorkflowStep {
	sorted := slices.Clone(steps)
	slices.SortStableFunc(sorted, compareSteps)
	return sorted
}

// GroupByLayer derives the stages from the flat step list, ascending by layer
// index. Layer indices may have gaps.
func GroupByLayer(steps []domain.WorkflowStep) []Layer {
	layers := []Layer{}
	for _, step := range SortSteps(steps) {
		if n := len(layers); n > 0 && layers[n-1].Index == step.LayerIndex {
			layers[n-1].Steps = append(layers[n-1].Steps, step)
			continue
		}
		layers = append(layers, Layer{Index: step.LayerIndex, Steps: []domain.WorkflowStep{step}})
	}
	return layers
}

func LayerIndices(steps []domain.WorkflowStep) []int {
	indices := []int{}
	for _, layer := range GroupByLayer(steps) {
		indices = append(indices, layer.Index)
	}
	return indices
}

// LayerSteps returns the members of one layer in position order.
func LayerSteps(steps []domain.WorkflowStep, layerIndex int) []domain.WorkflowStep {
	members := []domain.WorkflowStep{}
	for _, step := range steps {
		if step.LayerIndex == layerIndex {
			members = append(members, step)
		}
	}
	slices.SortStableFunc(members, compareSteps)
	return members
}

// NextLayerIndex is the index of a new stage after the last one.
func NextLayerIndex(steps []domain.WorkflowStep) int {
	next := 0
	for _, step := range steps {
		if step.LayerIndex >= next {
			next = step.LayerIndex + 1
		}
	}
	return next
}

// IsDense reports whether every layer's positions are exactly 0..N-1.
func IsDense(steps []domain.WorkflowStep) bool {
	for _, layer := range GroupByLayer(steps) {
		for i, step := range layer.Steps {
			if step.PositionInLayer != i {
				return false
			}
		}
	}
	return true
}

// ApplyPositions returns a copy of steps with the positions applied. Steps
// not named keep their place.
func ApplyPositions(steps []domain.WorkflowStep, positions []domain.StepPosition, now time.Time) []domain.WorkflowStep {
	byId := make(map[string]domain.StepPosition, len(positions))
	for _, p := range positions {
		byId[p.Id] = p
	}

	result := make([]domain.WorkflowStep, len(steps))
	for i, step := range steps {
		if p, ok := byId[step.Id]; ok && (step.LayerIndex != p.LayerIndex || step.PositionInLayer != p.PositionInLayer) {
			step.LayerIndex = p.LayerIndex
			step.PositionInLayer = p.PositionInLayer
			step.Updated = now
		}
		result[i] = step
	}
	return result
}

// RenumberAfterDelete removes the step and closes the gap it leaves: every
// sibling after it in the same layer moves up by one. The moved siblings are
// returned as positions.
func RenumberAfterDelete(steps []domain.WorkflowStep, deleted domain.WorkflowStep) ([]domain.WorkflowStep, []domain.StepPosition) {
	remaining := make([]domain.WorkflowStep, 0, len(steps))
	shifted := []domain.StepPosition{}
	for _, step := range steps {
		if step.Id == deleted.Id {
			continue
		}
		if step.LayerIndex == deleted.LayerIndex && step.PositionInLayer > deleted.PositionInLayer {
			step.PositionInLayer--
			shifted = append(shifted, positionOf(step))
		}
		remaining = append(remaining, step)
	}
	return remaining, shifted
}

// InsertShift frees position at in the layer: every member at or after it
// moves down by one.
func InsertShift(steps []domain.WorkflowStep, layerIndex, at int) []domain.StepPosition {
	shifted := []domain.StepPosition{}
	for _, step := range LayerSteps(steps, layerIndex) {
		if step.PositionInLayer >= at {
			step.PositionInLayer++
			shifted = append(shifted, positionOf(step))
		}
	}
	return shifted
}

// MovePositions computes the reorder batch that moves one step to toPosition
// of toLayer, renumbering both the layer it leaves and the one it joins.
// toPosition is clamped to the destination layer. Only steps whose place
// changes are returned.
func MovePositions(steps []domain.WorkflowStep, stepId string, toLayer, toPosition int) []domain.StepPosition {
	idx := slices.IndexFunc(steps, func(s domain.WorkflowStep) bool { return s.Id == stepId })
	if idx < 0 {
		return nil
	}
	moved := steps[idx]

	others := slices.DeleteFunc(slices.Clone(steps), func(s domain.WorkflowStep) bool { return s.Id == stepId })
	dest := LayerSteps(others, toLayer)
	toPosition = max(0, min(toPosition, len(dest)))
	moved.LayerIndex = toLayer
	dest = slices.Insert(dest, toPosition, moved)

	target := make(map[string]domain.StepPosition)
	for i, step := range dest {
		target[step.Id] = domain.StepPosition{Id: step.Id, LayerIndex: toLayer, PositionInLayer: i}
	}
	if steps[idx].LayerIndex != toLayer {
		for i, step := range LayerSteps(others, steps[idx].LayerIndex) {
			target[step.Id] = domain.StepPosition{Id: step.Id, LayerIndex: step.LayerIndex, PositionInLayer: i}
		}
	}

	return changedPositions(steps, target)
}

// SwapLayerPositions exchanges two stages by swapping the layer index of
// every member of each.
func SwapLayerPositions(steps []domain.WorkflowStep, a, b int) []domain.StepPosition {
	if a == b {
		return nil
	}
	positions := []domain.StepPosition{}
	for _, step := range SortSteps(steps) {
		switch step.LayerIndex {
		case a:
			positions = append(positions, domain.StepPosition{Id: step.Id, LayerIndex: b, PositionInLayer: step.PositionInLayer})
		case b:
			positions = append(positions, domain.StepPosition{Id: step.Id, LayerIndex: a, PositionInLayer: step.PositionInLayer})
		}
	}
	return positions
}

func changedPositions(steps []domain.WorkflowStep, target map[string]domain.StepPosition) []domain.StepPosition {
	changed := []domain.StepPosition{}
	for _, step := range SortSteps(steps) {
		p, ok := target[step.Id]
		if ok && (p.LayerIndex != step.LayerIndex || p.PositionInLayer != step.PositionInLayer) {
			changed = append(changed, p)
		}
	}
	return changed
}

func positionOf(step domain.WorkflowStep) domain.StepPosition {
	return domain.StepPosition{Id: step.Id, LayerIndex: step.LayerIndex, PositionInLayer: step.PositionInLayer}
}
