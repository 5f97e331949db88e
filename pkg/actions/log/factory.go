package log

import (
	"strings"

	"github.com/evofitmeals/evoflow/pkg/models"
	"github.com/evofitmeals/evoflow/pkg/protocol"
)

// ActionFactory creates dry-run actions for one action type.
type ActionFactory struct {
	actionType models.ActionType
	level      string
}

// NewActionFactory creates a dry-run factory for actionType that logs at level.
func NewActionFactory(actionType models.ActionType, level string) *ActionFactory {
	level = strings.ToLower(level)
	if level == "" {
		level = "info"
	}

	return &ActionFactory{actionType: actionType, level: level}
}

// Factories returns a dry-run factory for every dispatchable action type.
func Factories(level string) []protocol.ActionFactory {
	factories := make([]protocol.ActionFactory, 0, len(models.ActionTypes()))

	for _, actionType := range models.ActionTypes() {
		if actionType == models.ActionTypeWorkflow {
			continue
		}

		factories = append(factories, NewActionFactory(actionType, level))
	}

	return factories
}

// ID returns the action type served.
func (f *ActionFactory) ID() string {
	return string(f.actionType)
}

// Create validates config against the typed config of the action type.
func (f *ActionFactory) Create(config map[string]any) (protocol.Action, error) {
	if config == nil {
		config = map[string]any{}
	}

	if typed, ok := models.ConfigFor(f.actionType); ok {
		err := models.DecodeConfig(config, typed)
		if err != nil {
			return nil, err
		}
	}

	return NewLogAction(f.actionType, config, f.level), nil
}
