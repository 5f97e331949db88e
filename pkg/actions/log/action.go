// Package log provides dry-run actions that only log what they would do.
package log

import (
	"context"
	"log/slog"

	"github.com/evofitmeals/evoflow/pkg/models"
)

type LogAction struct {
	ActionType models.ActionType
	Config     map[string]any
	Level      string
}

func NewLogAction(actionType models.ActionType, config map[string]any, level string) *LogAction {
	return &LogAction{ActionType: actionType, Config: config, Level: level}
}

// Execute logs the action and returns what was logged.
func (a *LogAction) Execute(ctx context.Context, input map[string]any, logger *slog.Logger) (any, error) {
	logger.Log(ctx, levelFor(a.Level), "Dry run action",
		"action_type", a.ActionType, "config", a.Config, "input_keys", len(input))

	return map[string]any{
		"dry_run":     true,
		"action_type": string(a.ActionType),
		"config":      a.Config,
		"level":       a.Level,
	}, nil
}

// levelFor picks the record level for a dry-run dispatch. Only debug is
// honoured; a dispatch is never logged above info, so raising the process
// level hides dry runs instead of reporting them as errors.
func levelFor(level string) slog.Level {
	if level == "debug" {
		return slog.LevelDebug
	}

	return slog.LevelInfo
}
