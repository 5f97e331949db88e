// Package defaults holds the built-in meal planner workflows.
package defaults

import "github.com/evofitmeals/evoflow/pkg/models"

// Workflow ids of the built-in definitions.
const (
	WelcomeCustomerID    = "welcome-new-customer"
	MealPlanAssignedID   = "meal-plan-assigned"
	WeeklyProgressID     = "weekly-progress-reminder"
	GroceryListReadyID   = "grocery-list-ready"
	ReengageInactiveID   = "reengage-inactive-customer"
	TrainerOnboardingID  = "trainer-onboarding"
	TrainerWorkspaceID   = "trainer-workspace-setup"
	UserRegisteredEvent  = "user.registered"
	PlanAssignedEvent    = "mealplan.assigned"
	GroceryListWebhook   = "/grocery-list/ready"
	WeeklyProgressCron   = "0 9 * * 1"
	defaultRetryAttempts = 3
)

// Workflows returns fresh copies of the built-in definitions. Metadata is
// filled in on registration.
func Workflows() []*models.Workflow {
	return []*models.Workflow{
		welcomeCustomer(),
		mealPlanAssigned(),
		weeklyProgressReminder(),
		groceryListReady(),
		reengageInactive(),
		trainerWorkspaceSetup(),
		trainerOnboarding(),
	}
}

func retry(backoffMs int) *models.RetryPolicy {
	return &models.RetryPolicy{MaxAttempts: defaultRetryAttempts, BackoffMs: backoffMs}
}

func welcomeCustomer() *models.Workflow {
	return &models.Workflow{
		ID:          WelcomeCustomerID,
		Name:        "Welcome New Customer",
		Description: "Greets a newly registered customer and records the signup",
		Trigger:     models.Trigger{Type: models.TriggerTypeEvent, Event: UserRegisteredEvent},
		Conditions: []models.Condition{
			{Field: "user.role", Operator: models.OperatorEquals, Value: "customer"},
		},
		Actions: []models.Action{
			{
				ID:   "send-welcome-email",
				Type: models.ActionTypeEmail,
				Config: map[string]any{
					"to":       "{{ .input.user.email }}",
					"template": "customer_welcome",
					"subject":  "Welcome to EvoFitMeals",
				},
				RetryPolicy: retry(1000),
			},
			{
				ID:     "track-signup",
				Type:   models.ActionTypeAnalytics,
				Config: map[string]any{"event": "customer_signed_up"},
			},
		},
		Enabled:  true,
		Priority: 10,
	}
}

func mealPlanAssigned() *models.Workflow {
	return &models.Workflow{
		ID:          MealPlanAssignedID,
		Name:        "Meal Plan Assigned",
		Description: "Tells a customer their trainer assigned a new meal plan",
		Trigger:     models.Trigger{Type: models.TriggerTypeEvent, Event: PlanAssignedEvent},
		Actions: []models.Action{
			{
				ID:   "notify-customer",
				Type: models.ActionTypeNotification,
				Config: map[string]any{
					"recipient": "{{ .input.customerId }}",
					"channel":   "push",
					"title":     "New meal plan",
					"message":   "{{ .input.trainerName }} assigned you {{ .input.planName }}",
				},
				OnSuccess: []models.Action{
					{
						ID:   "mark-plan-delivered",
						Type: models.ActionTypeUpdateData,
						Config: map[string]any{
							"entity": "mealplan",
							"key":    "{{ .input.planId }}",
							"fields": map[string]any{"status": "delivered"},
						},
					},
				},
				OnFailure: []models.Action{
					{
						ID:   "email-plan-fallback",
						Type: models.ActionTypeEmail,
						Config: map[string]any{
							"to":       "{{ .input.customerEmail }}",
							"template": "meal_plan_assigned",
						},
					},
				},
			},
		},
		Enabled:  true,
		Priority: 8,
	}
}

func weeklyProgressReminder() *models.Workflow {
	return &models.Workflow{
		ID:          WeeklyProgressID,
		Name:        "Weekly Progress Reminder",
		Description: "Reminds customers every Monday morning to log their progress",
		Trigger:     models.Trigger{Type: models.TriggerTypeSchedule, Cron: WeeklyProgressCron, Timezone: "UTC"},
		Actions: []models.Action{
			{
				ID:   "broadcast-reminder",
				Type: models.ActionTypeNotification,
				Config: map[string]any{
					"recipient": "all-customers",
					"channel":   "in_app",
					"title":     "Weekly check-in",
					"message":   "Log your weight and measurements for this week",
				},
				RetryPolicy: retry(5000),
			},
		},
		Enabled:  true,
		Priority: 5,
	}
}

func groceryListReady() *models.Workflow {
	return &models.Workflow{
		ID:          GroceryListReadyID,
		Name:        "Grocery List Ready",
		Description: "Sends the generated grocery list when the list service calls back",
		Trigger: models.Trigger{
			Type: models.TriggerTypeWebhook,
			Path: GroceryListWebhook,
			Schema: map[string]any{
				"type":     "object",
				"required": []any{"customerEmail", "listId"},
				"properties": map[string]any{
					"customerEmail": map[string]any{"type": "string"},
					"listId":        map[string]any{"type": "string"},
				},
			},
		},
		Actions: []models.Action{
			{
				ID:   "render-grocery-list",
				Type: models.ActionTypeCreateContent,
				Config: map[string]any{
					"content_type": "grocery_list",
					"title":        "Your grocery list",
					"params":       map[string]any{"list_id": "{{ .input.listId }}"},
				},
			},
			{
				ID:   "email-grocery-list",
				Type: models.ActionTypeEmail,
				Config: map[string]any{
					"to":       "{{ .input.customerEmail }}",
					"template": "grocery_list_ready",
					"data":     map[string]any{"list_id": "{{ .input.listId }}"},
				},
				RetryPolicy: retry(2000),
			},
		},
		Enabled:  true,
		Priority: 6,
	}
}

func reengageInactive() *models.Workflow {
	return &models.Workflow{
		ID:          ReengageInactiveID,
		Name:        "Re-engage Inactive Customer",
		Description: "Wins back customers who have not logged in for two weeks",
		Trigger: models.Trigger{
			Type: models.TriggerTypeCondition,
			Fact: map[string]any{
				"type":     "object",
				"required": []any{"role", "daysInactive"},
				"properties": map[string]any{
					"role":         map[string]any{"const": "customer"},
					"daysInactive": map[string]any{"type": "number", "minimum": 14},
				},
			},
		},
		Conditions: []models.Condition{
			{Field: "subscription", Operator: models.OperatorIn, Value: []any{"basic", "professional", "enterprise"}},
		},
		Actions: []models.Action{
			{
				ID:   "send-we-miss-you",
				Type: models.ActionTypeEmail,
				Config: map[string]any{
					"to":       "{{ .input.email }}",
					"template": "we_miss_you",
				},
			},
			{
				ID:   "ask-trainer-to-check-in",
				Type: models.ActionTypeAssignTask,
				Config: map[string]any{
					"assignee":    "{{ .input.trainerId }}",
					"task":        "Check in with an inactive customer",
					"due_in_days": 2,
				},
			},
		},
		Enabled:  true,
		Priority: 3,
	}
}

func trainerWorkspaceSetup() *models.Workflow {
	return &models.Workflow{
		ID:          TrainerWorkspaceID,
		Name:        "Trainer Workspace Setup",
		Description: "Creates the starter content for a new trainer",
		Trigger:     models.Trigger{Type: models.TriggerTypeManual},
		Actions: []models.Action{
			{
				ID:   "create-starter-plan",
				Type: models.ActionTypeCreateContent,
				Config: map[string]any{
					"content_type": "meal_plan_template",
					"title":        "Starter meal plan",
				},
			},
			{
				ID:   "enable-branding",
				Type: models.ActionTypeUpdateData,
				Config: map[string]any{
					"entity": "trainer",
					"key":    "{{ .input.user.id }}",
					"fields": map[string]any{"branding_enabled": true},
				},
			},
		},
		Enabled:  true,
		Priority: 1,
	}
}

func trainerOnboarding() *models.Workflow {
	return &models.Workflow{
		ID:          TrainerOnboardingID,
		Name:        "Trainer Onboarding",
		Description: "Welcomes a new trainer and prepares their workspace",
		Trigger:     models.Trigger{Type: models.TriggerTypeEvent, Event: UserRegisteredEvent},
		Conditions: []models.Condition{
			{Field: "user.role", Operator: models.OperatorEquals, Value: "trainer"},
		},
		Actions: []models.Action{
			{
				ID:   "send-trainer-welcome",
				Type: models.ActionTypeEmail,
				Config: map[string]any{
					"to":       "{{ .input.user.email }}",
					"template": "trainer_welcome",
				},
				RetryPolicy: retry(1000),
			},
			{
				ID:     "setup-workspace",
				Type:   models.ActionTypeWorkflow,
				Config: map[string]any{"workflow_id": TrainerWorkspaceID},
			},
			{
				ID:     "track-trainer-signup",
				Type:   models.ActionTypeAnalytics,
				Config: map[string]any{"event": "trainer_signed_up", "properties": map[string]any{"source": "onboarding"}},
			},
		},
		Enabled:  true,
		Priority: 9,
	}
}
