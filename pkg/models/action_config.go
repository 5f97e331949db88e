package models

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// EmailConfig configures an email action.
type EmailConfig struct {
	To       string         `json:"to"       validate:"required"`
	Template string         `json:"template" validate:"required"`
	Subject  string         `json:"subject,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// NotificationConfig configures an in-app or push notification.
type NotificationConfig struct {
	Recipient string `json:"recipient" validate:"required"`
	Channel   string `json:"channel,omitempty" validate:"omitempty,oneof=in_app push sms"`
	Title     string `json:"title,omitempty"`
	Message   string `json:"message"   validate:"required"`
}

// UpdateDataConfig configures a write of fields onto a stored entity.
type UpdateDataConfig struct {
	Entity string         `json:"entity" validate:"required"`
	Key    string         `json:"key"    validate:"required"`
	Fields map[string]any `json:"fields" validate:"required,min=1"`
}

// APICallConfig configures an outbound HTTP call.
type APICallConfig struct {
	Method         string            `json:"method,omitempty"`
	URL            string            `json:"url"               validate:"required,url"`
	Headers        map[string]string `json:"headers,omitempty"`
	Body           string            `json:"body,omitempty"`
	TimeoutSeconds int               `json:"timeout_seconds,omitempty" validate:"min=0"`
}

// AssignTaskConfig configures a task handed to a trainer or customer.
type AssignTaskConfig struct {
	Assignee  string `json:"assignee"  validate:"required"`
	Task      string `json:"task"      validate:"required"`
	DueInDays int    `json:"due_in_days,omitempty" validate:"min=0"`
}

// CreateContentConfig configures generated content such as a recipe or grocery list.
type CreateContentConfig struct {
	ContentType string         `json:"content_type" validate:"required"`
	Title       string         `json:"title,omitempty"`
	Template    string         `json:"template,omitempty"`
	Params      map[string]any `json:"params,omitempty"`
}

// AnalyticsConfig configures an analytics tracking call.
type AnalyticsConfig struct {
	Event      string         `json:"event" validate:"required"`
	Properties map[string]any `json:"properties,omitempty"`
}

// WorkflowConfig configures a nested workflow run.
type WorkflowConfig struct {
	WorkflowID string         `json:"workflow_id" validate:"required"`
	Input      map[string]any `json:"input,omitempty"`
}

// DecodeConfig converts an opaque action config into the typed struct out
// and validates it.
func DecodeConfig(config map[string]any, out any) error {
	data, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to encode action config: %w", err)
	}

	err = json.Unmarshal(data, out)
	if err != nil {
		return fmt.Errorf("failed to decode action config: %w", err)
	}

	err = configValidator.Struct(out)
	if err != nil {
		return fmt.Errorf("invalid action config: %w", err)
	}

	return nil
}

// ConfigFor returns an empty typed config for the given action type.
func ConfigFor(actionType ActionType) (any, bool) {
	switch actionType {
	case ActionTypeEmail:
		return &EmailConfig{}, true
	case ActionTypeNotification:
		return &NotificationConfig{}, true
	case ActionTypeUpdateData:
		return &UpdateDataConfig{}, true
	case ActionTypeAPICall:
		return &APICallConfig{}, true
	case ActionTypeAssignTask:
		return &AssignTaskConfig{}, true
	case ActionTypeCreateContent:
		return &CreateContentConfig{}, true
	case ActionTypeAnalytics:
		return &AnalyticsConfig{}, true
	case ActionTypeWorkflow:
		return &WorkflowConfig{}, true
	default:
		return nil, false
	}
}
