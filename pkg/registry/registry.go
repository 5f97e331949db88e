// Package registry maps action types to the factories that serve them.
package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"plugin"
	"slices"
	"strings"

	"github.com/evofitmeals/evoflow/pkg/protocol"
)

var ErrActionNotRegistered = errors.New("action type not registered")

type Registry struct {
	logger          *slog.Logger
	actionFactories map[string]protocol.ActionFactory
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:          log,
		actionFactories: make(map[string]protocol.ActionFactory),
	}
}

// LoadActionPlugins opens every shared object under <pluginsPath>/actions and
// looks up its exported Action symbol.
func (r *Registry) LoadActionPlugins(pluginsPath string) ([]protocol.ActionFactory, error) {
	return loadPlugin[protocol.ActionFactory](r.logger, pluginsPath, "Action")
}

func (r *Registry) RegisterAction(actionFactory protocol.ActionFactory) {
	r.RegisterActionAs(actionFactory.ID(), actionFactory)
}

// RegisterActionAs serves actionType with a factory whose own ID may differ,
// as the dry-run log action does for every type.
func (r *Registry) RegisterActionAs(actionType string, actionFactory protocol.ActionFactory) {
	r.actionFactories[actionType] = actionFactory
}

func (r *Registry) CreateAction(actionType string, config map[string]any) (protocol.Action, error) {
	factory, ok := r.actionFactories[actionType]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrActionNotRegistered, actionType)
	}

	return factory.Create(config)
}

func (r *Registry) HasAction(actionType string) bool {
	_, ok := r.actionFactories[actionType]

	return ok
}

// ActionTypes returns the registered action types in sorted order.
func (r *Registry) ActionTypes() []string {
	types := make([]string, 0, len(r.actionFactories))
	for actionType := range r.actionFactories {
		types = append(types, actionType)
	}

	slices.Sort(types)

	return types
}

func loadPlugin[T any](logger *slog.Logger, pluginsPath string, symbolName string) ([]T, error) {
	rootPath := pluginsPath + "/" + strings.ToLower(symbolName) + "s"

	pluginPathList, err := fs.Glob(os.DirFS(rootPath), "*.so")
	if err != nil {
		return nil, err
	}

	l := logger.With(slog.String("path", pluginsPath), slog.String("type", symbolName))
	l.Info("Loading plugins")

	pluginList := make([]T, 0, len(pluginPathList))

	for _, p := range pluginPathList {
		plg, err := plugin.Open(rootPath + "/" + p)
		if err != nil {
			return nil, fmt.Errorf("open plugin %s: %w", p, err)
		}

		v, err := plg.Lookup(symbolName)
		if err != nil {
			return nil, fmt.Errorf("lookup %s in plugin %s: %w", symbolName, p, err)
		}

		castV, ok := v.(T)
		if !ok {
			return nil, fmt.Errorf("plugin %s: symbol %s has unexpected type %T", p, symbolName, v)
		}

		pluginList = append(pluginList, castV)

		l.Info("Loaded plugin", slog.String("plugin", p))
	}

	return pluginList, nil
}
