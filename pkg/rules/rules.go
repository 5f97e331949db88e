// Package rules matches asserted facts against JSON Schema expressions.
package rules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/evofitmeals/evoflow/pkg/protocol"
	"github.com/xeipuuv/gojsonschema"
)

var ErrInvalidExpression = errors.New("invalid fact expression")

// Engine holds one compiled schema per workflow. Facts that satisfy a schema
// are a match for that workflow.
type Engine struct {
	logger *slog.Logger

	mu        sync.RWMutex
	schemas   map[string]*gojsonschema.Schema
	callbacks []protocol.FactCallback
}

var _ protocol.FactMatcher = (*Engine)(nil)

func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{
		logger:  logger.With("component", "rules"),
		schemas: make(map[string]*gojsonschema.Schema),
	}
}

func (e *Engine) Register(workflowID string, expression map[string]any) error {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(expression))
	if err != nil {
		return fmt.Errorf("%w for workflow %s: %w", ErrInvalidExpression, workflowID, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.schemas[workflowID] = schema

	return nil
}

func (e *Engine) Unregister(workflowID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.schemas, workflowID)
}

func (e *Engine) OnMatch(callback protocol.FactCallback) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.callbacks = append(e.callbacks, callback)
}

// Match returns the ids of workflows whose expression the facts satisfy, in
// sorted order.
func (e *Engine) Match(facts map[string]any) ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	matched := make([]string, 0)

	for workflowID, schema := range e.schemas {
		result, err := schema.Validate(gojsonschema.NewGoLoader(facts))
		if err != nil {
			return nil, fmt.Errorf("evaluate facts for workflow %s: %w", workflowID, err)
		}

		if result.Valid() {
			matched = append(matched, workflowID)
		}
	}

	slices.Sort(matched)

	return matched, nil
}

// Assert matches facts and calls back once per matched workflow.
func (e *Engine) Assert(ctx context.Context, facts map[string]any) ([]string, error) {
	matched, err := e.Match(facts)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	callbacks := slices.Clone(e.callbacks)
	e.mu.RUnlock()

	e.logger.DebugContext(ctx, "Asserted facts", "matched", matched)

	for _, workflowID := range matched {
		for _, callback := range callbacks {
			callback(ctx, workflowID, facts)
		}
	}

	return matched, nil
}

// Validate checks data against a JSON Schema document and joins every
// violation into one error.
func Validate(schema map[string]any, data any) error {
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(data))
	if err != nil {
		return err
	}

	if !result.Valid() {
		var violations []string
		for _, desc := range result.Errors() {
			violations = append(violations, desc.String())
		}

		return fmt.Errorf("validation errors: %s", strings.Join(violations, "; "))
	}

	return nil
}
