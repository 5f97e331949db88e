package defaults

import (
	"testing"

	"github.com/evofitmeals/evoflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflows_AreValid(t *testing.T) {
	seen := make(map[string]bool)

	for _, workflow := range Workflows() {
		require.NoError(t, workflow.Validate(), workflow.ID)
		assert.False(t, seen[workflow.ID], "duplicate id %s", workflow.ID)
		seen[workflow.ID] = true
	}

	assert.Len(t, seen, 7)
}

func TestWorkflows_NestedTargetExists(t *testing.T) {
	ids := make(map[string]bool)
	for _, workflow := range Workflows() {
		ids[workflow.ID] = true
	}

	for _, workflow := range Workflows() {
		for _, action := range workflow.Actions {
			if action.Type != models.ActionTypeWorkflow {
				continue
			}

			var config models.WorkflowConfig
			require.NoError(t, models.DecodeConfig(action.Config, &config))
			assert.True(t, ids[config.WorkflowID], "%s targets unknown workflow %s", workflow.ID, config.WorkflowID)
		}
	}
}

func TestWorkflows_ReturnsFreshCopies(t *testing.T) {
	first := Workflows()
	first[0].Name = "changed"

	assert.NotEqual(t, "changed", Workflows()[0].Name)
}
