package template

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_SimpleExpression(t *testing.T) {
	data := map[string]any{
		"name":  "John",
		"age":   30,
		"isNew": true,
	}

	// Test simple field access
	result, err := Render("{{ .name }}", data)
	require.NoError(t, err)
	assert.Equal(t, "John", result)

	// Test boolean expression
	result, err = Render("{{ .isNew }}", data)
	require.NoError(t, err)
	assert.Equal(t, true, result)

	// Test number field - always map to float
	result, err = Render("{{ .age }}", data)
	require.NoError(t, err)
	assert.Equal(t, 30.0, result)
}

func TestRender_ComplexExpression(t *testing.T) {
	data := map[string]any{
		"user": map[string]any{
			"name":  "Alice",
			"email": "alice@example.com",
		},
		"orders": []any{
			map[string]any{"id": 1, "total": 100.50},
			map[string]any{"id": 2, "total": 75.25},
		},
	}

	// Test nested field access
	result, err := Render("{{ .user.name }}", data)
	require.NoError(t, err)
	assert.Equal(t, "Alice", result)

	// Test object construction
	result, err = Render(`{
		"user_name": "{{ .user.name }}",
		"total_orders": {{ len .orders }}
	}`, data)
	require.NoError(t, err)

	resultMap, ok := result.(map[string]any)

	require.True(t, ok)
	assert.Equal(t, "Alice", resultMap["user_name"])
	assert.Equal(t, 2.0, resultMap["total_orders"])
}

func TestRender_WithStepResults(t *testing.T) {
	// Simulate execution context step results
	data := map[string]any{
		"api_call": map[string]any{
			"status": 200,
			"body": map[string]any{
				"user_id":  123,
				"username": "testuser",
			},
		},
		"validation": map[string]any{
			"valid":  true,
			"errors": []any{},
		},
	}

	// Test accessing step results
	result, err := Render("{{ .api_call.body.username }}", data)
	require.NoError(t, err)
	assert.Equal(t, "testuser", result)

	// Test conditional expression
	result, err = Render("{{ if eq .api_call.status 200 }}success{{ else }}failed{{ end }}", data)
	require.NoError(t, err)
	assert.Equal(t, "success", result)
}

func TestRender_ErrorHandling(t *testing.T) {
	data := map[string]any{
		"test": "value",
	}

	// Test invalid template expression
	_, err := Render("{ invalid..expression }}", data)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse json")

	// Test reference to non-existent field (actually errors in template)
	_, err = Render("{{ nonexistent.field }}", data)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "function \"nonexistent\" not defined")
}

func TestRender_EnvironmentVariables(t *testing.T) {
	// Set test environment variable
	if err := os.Setenv("TEST_VAR", "test_value"); err != nil {
		t.Fatal(err)
	}

	defer func() {
		err := os.Unsetenv("TEST_VAR")
		if err != nil {
			t.Error(err)
		}
	}()

	_, err := Render("{{ env.TEST_VAR }}", map[string]any{})
	assert.Error(t, err)

	result, err := Render("{{ .env.TEST_VAR }}", Data("wf-1", "exec-1", nil))
	require.NoError(t, err)
	assert.Equal(t, "test_value", result)
}

func TestRender_RunData(t *testing.T) {
	data := Data("welcome-new-customer", "exec-0a1b2c3d", map[string]any{
		"user": map[string]any{"email": "sam@example.com", "plan": "keto"},
	})

	result, err := Render("{{ .input.user.email }}", data)
	require.NoError(t, err)
	assert.Equal(t, "sam@example.com", result)

	result, err = Render("{{ .execution.workflow_id }}/{{ .execution.id }}", data)
	require.NoError(t, err)
	assert.Equal(t, "welcome-new-customer/exec-0a1b2c3d", result)
}

func TestRenderConfig(t *testing.T) {
	data := Data("wf", "exec", map[string]any{
		"user":  map[string]any{"name": "Sam", "phone": "5551234"},
		"count": 3,
	})

	config := map[string]any{
		"template": "welcome",
		"to":       "{{ .input.user.phone }}",
		"data": map[string]any{
			"greeting": "Hi {{ .input.user.name }}",
			"meals":    []any{"{{ .input.count }} meals", 7},
		},
		"retries": 2,
	}

	rendered, err := RenderConfig(config, data)
	require.NoError(t, err)

	assert.Equal(t, "welcome", rendered["template"])
	assert.Equal(t, "5551234", rendered["to"], "rendered strings are not coerced")
	assert.Equal(t, 2, rendered["retries"])

	nested := rendered["data"].(map[string]any)
	assert.Equal(t, "Hi Sam", nested["greeting"])
	assert.Equal(t, []any{"3 meals", 7}, nested["meals"])

	assert.Equal(t, "{{ .input.user.phone }}", config["to"], "source config is untouched")
}

func TestRenderConfig_Error(t *testing.T) {
	_, err := RenderConfig(map[string]any{"body": "{{ .input.x "}, Data("wf", "exec", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "body")
}

func TestRender_StringInterpolation(t *testing.T) {
	data := map[string]any{
		"user": map[string]any{
			"name": "John",
			"id":   123,
		},
		"action": "login",
	}

	// Test string construction
	result, err := Render("User {{.user.name}} performed {{.action}}", data)
	require.NoError(t, err)
	assert.Equal(t, "User John performed login", result)

	// Test URL construction
	result, err = Render("https://api.example.com/users/{{.user.id}}", data)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/users/123", result)
}
