package publish_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/evofitmeals/evoflow/pkg/actions/publish"
	"github.com/evofitmeals/evoflow/pkg/channels/gochannel"
	"github.com/evofitmeals/evoflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactories(t *testing.T) {
	channel := gochannel.CreateChannel(watermill.NopLogger{})
	defer channel.Close()

	ids := make([]string, 0)
	for _, factory := range publish.Factories(channel) {
		ids = append(ids, factory.ID())
	}

	assert.Equal(t, []string{"email", "notification", "assignTask", "createContent", "analytics"}, ids)
	assert.Equal(t, "evoflow.actions.email", publish.Topic(models.ActionTypeEmail))
}

func TestActionFactory_CreateValidatesConfig(t *testing.T) {
	channel := gochannel.CreateChannel(watermill.NopLogger{})
	defer channel.Close()

	factory := publish.NewActionFactory(models.ActionTypeNotification, channel)

	_, err := factory.Create(map[string]any{"recipient": "u-1"})
	require.Error(t, err)

	_, err = factory.Create(map[string]any{"recipient": "u-1", "message": "hi", "channel": "carrier-pigeon"})
	require.Error(t, err)

	_, err = factory.Create(map[string]any{"recipient": "u-1", "message": "hi", "channel": "push"})
	require.NoError(t, err)

	_, err = publish.NewActionFactory(models.ActionTypeWorkflow, channel).Create(map[string]any{})
	require.Error(t, err)
}

func TestAction_PublishesCommand(t *testing.T) {
	channel := gochannel.CreateChannel(watermill.NopLogger{})
	defer channel.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	messages, err := channel.Subscribe(ctx, publish.Topic(models.ActionTypeEmail))
	require.NoError(t, err)

	action, err := publish.NewActionFactory(models.ActionTypeEmail, channel).Create(map[string]any{
		"to":       "ana@example.com",
		"template": "customer_welcome",
	})
	require.NoError(t, err)

	input := map[string]any{"user": map[string]any{"id": "u-1"}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	result, err := action.Execute(ctx, input, logger)
	require.NoError(t, err)

	output, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "evoflow.actions.email", output["topic"])

	select {
	case msg := <-messages:
		msg.Ack()

		assert.Equal(t, output["command_id"], msg.UUID)
		assert.Equal(t, "email", msg.Metadata.Get(publish.ActionTypeMetadataKey))

		var command struct {
			ActionType string             `json:"action_type"`
			Config     models.EmailConfig `json:"config"`
			Input      map[string]any     `json:"input"`
		}
		require.NoError(t, json.Unmarshal(msg.Payload, &command))

		assert.Equal(t, "email", command.ActionType)
		assert.Equal(t, "ana@example.com", command.Config.To)
		assert.Equal(t, "customer_welcome", command.Config.Template)
		assert.Equal(t, input, command.Input)
	case <-ctx.Done():
		t.Fatal("command was not published")
	}
}

func TestAction_PublishFailure(t *testing.T) {
	channel := gochannel.CreateChannel(watermill.NopLogger{})

	action, err := publish.NewActionFactory(models.ActionTypeAnalytics, channel).Create(map[string]any{"event": "signup"})
	require.NoError(t, err)

	require.NoError(t, channel.Close())

	_, err = action.Execute(context.Background(), nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
}
