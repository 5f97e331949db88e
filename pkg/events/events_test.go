package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicFor(t *testing.T) {
	assert.Equal(t, TriggerTopic, TopicFor(TriggerFiredEvent))
	assert.Equal(t, Topic, TopicFor(ExecutionCompletedEvent))
	assert.Equal(t, Topic, TopicFor(ActionInvokedEvent))
}

func TestNewBaseEvent(t *testing.T) {
	a := NewBaseEvent(ExecutionStartedEvent, "welcome-new-customer")
	b := NewBaseEvent(ExecutionStartedEvent, "welcome-new-customer")

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, ExecutionStartedEvent, a.Type)
	assert.Equal(t, "welcome-new-customer", a.WorkflowID)
	assert.False(t, a.Timestamp.IsZero())
}

func TestTriggerFired_JSON(t *testing.T) {
	event := NewTriggerFired("user.registered", map[string]any{"userId": "u-42"})

	data, err := json.Marshal(event)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"trigger.fired"`)
	assert.Contains(t, string(data), `"event":"user.registered"`)
	assert.NotContains(t, string(data), `"workflow_id"`)

	var decoded TriggerFired
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "u-42", decoded.Payload["userId"])
	assert.Equal(t, TriggerFiredEvent, decoded.GetType())
}
