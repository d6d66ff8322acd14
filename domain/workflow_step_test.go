package domain

import (
	"testing"

	"quoteflow/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepFields_Validate(t *testing.T) {
	t.Parallel()

	valid := StepFields{Title: "Finance approval", Assignee: "Riley", Status: StepStatusPending}
	assert.NoError(t, valid.Validate())

	missing := StepFields{Status: StepStatusPending}
	err := missing.Validate()
	var validationErr *common.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "title, assignee", validationErr.Field)

	badStatus := valid
	badStatus.Status = "archived"
	assert.ErrorIs(t, badStatus.Validate(), common.ErrValidation)

	badPersona := valid
	persona := Persona("vp")
	badPersona.Persona = &persona
	assert.ErrorIs(t, badPersona.Validate(), common.ErrValidation)

	negative := valid
	negative.PositionInLayer = -1
	assert.ErrorIs(t, negative.Validate(), common.ErrValidation)
}

func TestValidateStepPositions(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateStepPositions([]StepPosition{
		{Id: "a", LayerIndex: 0, PositionInLayer: 0},
		{Id: "b", LayerIndex: 3, PositionInLayer: 1},
	}))
	assert.ErrorIs(t, ValidateStepPositions([]StepPosition{{LayerIndex: 0}}), common.ErrValidation)
	assert.ErrorIs(t, ValidateStepPositions([]StepPosition{{Id: "a"}, {Id: "a", PositionInLayer: 1}}), common.ErrValidation)
	assert.ErrorIs(t, ValidateStepPositions([]StepPosition{{Id: "a", LayerIndex: -2}}), common.ErrValidation)
}

func TestStringToEnums(t *testing.T) {
	t.Parallel()

	for _, status := range AllStepStatuses {
		parsed, err := StringToStepStatus(string(status))
		require.NoError(t, err)
		assert.Equal(t, status, parsed)
	}
	for _, persona := range AllPersonas {
		parsed, err := StringToPersona(string(persona))
		require.NoError(t, err)
		assert.Equal(t, persona, parsed)
	}
	_, err := StringToWorkflowStatus("paused")
	assert.Error(t, err)
}
