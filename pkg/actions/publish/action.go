// Package publish serves message-style actions by publishing a command for
// a downstream service to carry out.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/evofitmeals/evoflow/pkg/models"
	"github.com/evofitmeals/evoflow/pkg/protocol"
)

// TopicPrefix is prepended to the action type to form the command topic.
const TopicPrefix = "evoflow.actions."

const ActionTypeMetadataKey = "action_type"

// ActionTypes are the action types served by publishing a command.
var ActionTypes = []models.ActionType{
	models.ActionTypeEmail,
	models.ActionTypeNotification,
	models.ActionTypeAssignTask,
	models.ActionTypeCreateContent,
	models.ActionTypeAnalytics,
}

// Topic returns the command topic for an action type.
func Topic(actionType models.ActionType) string {
	return TopicPrefix + string(actionType)
}

// Command is the message body consumers receive.
type Command struct {
	ID         string            `json:"id"`
	ActionType models.ActionType `json:"action_type"`
	Config     any               `json:"config"`
	Input      map[string]any    `json:"input,omitempty"`
	IssuedAt   time.Time         `json:"issued_at"`
}

type Action struct {
	actionType models.ActionType
	config     any
	publisher  message.Publisher
}

// Execute publishes the command and reports where it went. The action is
// complete once the transport accepted the message.
func (a *Action) Execute(ctx context.Context, input map[string]any, logger *slog.Logger) (any, error) {
	command := Command{
		ID:         watermill.NewULID(),
		ActionType: a.actionType,
		Config:     a.config,
		Input:      input,
		IssuedAt:   time.Now().UTC(),
	}

	payload, err := json.Marshal(command)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s command: %w", a.actionType, err)
	}

	topic := Topic(a.actionType)

	msg := message.NewMessage(command.ID, payload)
	msg.SetContext(ctx)
	msg.Metadata.Set(ActionTypeMetadataKey, string(a.actionType))

	err = a.publisher.Publish(topic, msg)
	if err != nil {
		return nil, fmt.Errorf("failed to publish %s command: %w", a.actionType, err)
	}

	logger.DebugContext(ctx, "Published action command", "topic", topic, "command_id", command.ID)

	return map[string]any{
		"command_id": command.ID,
		"topic":      topic,
	}, nil
}

// ActionFactory decodes the typed config of one action type.
type ActionFactory struct {
	actionType models.ActionType
	publisher  message.Publisher
}

func NewActionFactory(actionType models.ActionType, publisher message.Publisher) *ActionFactory {
	return &ActionFactory{actionType: actionType, publisher: publisher}
}

// Factories returns a factory for every type in ActionTypes.
func Factories(publisher message.Publisher) []protocol.ActionFactory {
	factories := make([]protocol.ActionFactory, 0, len(ActionTypes))
	for _, actionType := range ActionTypes {
		factories = append(factories, NewActionFactory(actionType, publisher))
	}

	return factories
}

func (f *ActionFactory) ID() string {
	return string(f.actionType)
}

func (f *ActionFactory) Create(config map[string]any) (protocol.Action, error) {
	typed, ok := models.ConfigFor(f.actionType)
	if !ok {
		return nil, fmt.Errorf("no config schema for action type %s", f.actionType)
	}

	err := models.DecodeConfig(config, typed)
	if err != nil {
		return nil, err
	}

	return &Action{actionType: f.actionType, config: typed, publisher: f.publisher}, nil
}
