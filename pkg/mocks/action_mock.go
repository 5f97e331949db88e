package mocks

import (
	"context"
	"log/slog"

	"github.com/evofitmeals/evoflow/pkg/protocol"
	"github.com/stretchr/testify/mock"
)

// MockActionFactory serves one action type. Each Create returns an action
// that records its Execute call on the factory mock, so expectations read
// as m.On("Execute", config, input).
type MockActionFactory struct {
	mock.Mock

	ActionType string
}

func NewMockActionFactory(actionType string) *MockActionFactory {
	return &MockActionFactory{ActionType: actionType}
}

func (m *MockActionFactory) ID() string {
	return m.ActionType
}

func (m *MockActionFactory) Create(config map[string]any) (protocol.Action, error) {
	return protocol.ActionFunc(func(ctx context.Context, input map[string]any, _ *slog.Logger) (any, error) {
		args := m.MethodCalled("Execute", config, input)

		return args.Get(0), args.Error(1)
	}), nil
}
