package httprequest

import (
	"net/http"

	"github.com/evofitmeals/evoflow/pkg/models"
	"github.com/evofitmeals/evoflow/pkg/protocol"
)

// ActionFactory creates apiCall actions that share one HTTP client.
type ActionFactory struct {
	client *http.Client
}

// NewActionFactory creates a factory. A nil client uses http.DefaultClient.
func NewActionFactory(client *http.Client) *ActionFactory {
	return &ActionFactory{client: client}
}

// Create decodes and validates the config.
func (f *ActionFactory) Create(config map[string]any) (protocol.Action, error) {
	return NewAction(config, f.client)
}

// ID returns the action type served.
func (f *ActionFactory) ID() string {
	return string(models.ActionTypeAPICall)
}
