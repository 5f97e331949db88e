// Package protocol declares the contracts between the engine and its collaborators.
package protocol

import (
	"context"
	"log/slog"
)

// Action is one configured call to an external collaborator. The input is the
// run input; the returned value becomes the step output.
type Action interface {
	Execute(ctx context.Context, input map[string]any, logger *slog.Logger) (any, error)
}

// ActionFactory decodes an opaque action config into a ready to run Action.
// ID is the action type the factory serves.
type ActionFactory interface {
	Create(config map[string]any) (Action, error)
	ID() string
}

// ActionFunc adapts a plain function to Action.
type ActionFunc func(ctx context.Context, input map[string]any, logger *slog.Logger) (any, error)

func (f ActionFunc) Execute(ctx context.Context, input map[string]any, logger *slog.Logger) (any, error) {
	return f(ctx, input, logger)
}
