package protocol

import (
	"context"
)

// Lifecycle is implemented by components that own background work such as
// timers or subscriptions.
type Lifecycle interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// FactCallback is invoked with the facts that matched a registered expression.
type FactCallback func(ctx context.Context, workflowID string, facts map[string]any)

// FactMatcher evaluates facts against per-workflow expressions. Match only
// reports the matching workflow ids; Assert also invokes every callback
// registered with OnMatch.
type FactMatcher interface {
	Register(workflowID string, expression map[string]any) error
	Unregister(workflowID string)
	Match(facts map[string]any) ([]string, error)
	Assert(ctx context.Context, facts map[string]any) ([]string, error)
	OnMatch(callback FactCallback)
}
