// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"log/slog"
	"net/http"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/evofitmeals/evoflow/pkg/actions/datastore"
	"github.com/evofitmeals/evoflow/pkg/actions/httprequest"
	logaction "github.com/evofitmeals/evoflow/pkg/actions/log"
	"github.com/evofitmeals/evoflow/pkg/actions/publish"
	"github.com/evofitmeals/evoflow/pkg/registry"
)

// RegistryConfig selects the action handlers. In dry-run mode every action
// type is served by the log action. Otherwise messaging actions publish on
// Publisher, updateData writes to Store and apiCall uses HTTPClient. A nil
// Publisher or Store leaves those types on the log action.
type RegistryConfig struct {
	DryRun      bool
	LogLevel    string
	Publisher   message.Publisher
	Store       datastore.HashWriter
	HTTPClient  *http.Client
	PluginsPath string
}

func registerActionPlugins(reg *registry.Registry, pluginsPath string) error {
	actionPlugins, err := reg.LoadActionPlugins(pluginsPath)
	if err != nil {
		return err
	}

	for _, plugin := range actionPlugins {
		reg.RegisterAction(plugin)
	}

	return nil
}

func registerNativeActions(reg *registry.Registry, config RegistryConfig) {
	for _, factory := range logaction.Factories(config.LogLevel) {
		reg.RegisterAction(factory)
	}

	if config.DryRun {
		return
	}

	if config.Publisher != nil {
		for _, factory := range publish.Factories(config.Publisher) {
			reg.RegisterAction(factory)
		}
	}

	if config.Store != nil {
		reg.RegisterAction(datastore.NewActionFactory(config.Store))
	}

	reg.RegisterAction(httprequest.NewActionFactory(config.HTTPClient))
}

// NewRegistry builds the action registry. Plugins are registered last and
// replace native handlers of the same type.
func NewRegistry(log *slog.Logger, config RegistryConfig) (*registry.Registry, error) {
	reg := registry.NewRegistry(log)

	registerNativeActions(reg, config)

	if config.PluginsPath != "" && !config.DryRun {
		err := registerActionPlugins(reg, config.PluginsPath)
		if err != nil {
			return nil, err
		}
	}

	return reg, nil
}
