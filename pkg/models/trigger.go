package models

// TriggerType identifies which trigger variant a workflow declares.
type TriggerType string

const (
	TriggerTypeEvent     TriggerType = "event"
	TriggerTypeSchedule  TriggerType = "schedule"
	TriggerTypeWebhook   TriggerType = "webhook"
	TriggerTypeManual    TriggerType = "manual"
	TriggerTypeCondition TriggerType = "condition"
)

// Trigger is a tagged variant: only the fields of the selected Type are meaningful.
type Trigger struct {
	Type TriggerType `json:"type" validate:"required,oneof=event schedule webhook manual condition"`

	// event
	Event string `json:"event,omitempty" validate:"required_if=Type event"`

	// schedule
	Cron     string `json:"cron,omitempty"     validate:"required_if=Type schedule"`
	Timezone string `json:"timezone,omitempty"`

	// webhook
	Path   string         `json:"path,omitempty"   validate:"required_if=Type webhook"`
	Schema map[string]any `json:"schema,omitempty"`

	// condition: a JSON Schema document that matching facts must satisfy
	Fact map[string]any `json:"fact,omitempty" validate:"required_if=Type condition"`
}

// ScheduledInput is the input handed to runs started by a schedule tick.
func ScheduledInput() map[string]any {
	return map[string]any{"trigger": "scheduled"}
}
