// Package template renders Go text templates embedded in action configs.
package template

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/template"
	"time"
)

// Data is the value templates are executed against. Configs reach the run
// input with {{ .input.user.email }} and the process environment with
// {{ .env.HOME }}.
func Data(workflowID, executionID string, input map[string]any) map[string]any {
	return map[string]any{
		"input": input,
		"env":   getEnvVars(),
		"execution": map[string]any{
			"id":          executionID,
			"workflow_id": workflowID,
		},
	}
}

// Render executes templateStr and converts JSON, numeric and boolean output
// back into typed values.
func Render(templateStr string, data any) (any, error) {
	result, err := RenderString(templateStr, data)
	if err != nil {
		return nil, err
	}

	result = strings.TrimSpace(result)
	if (strings.HasPrefix(result, "{") && strings.HasSuffix(result, "}")) ||
		(strings.HasPrefix(result, "[") && strings.HasSuffix(result, "]")) {
		var jsonResult any

		err := json.Unmarshal([]byte(result), &jsonResult)
		if err == nil {
			return jsonResult, nil
		}

		return jsonResult, fmt.Errorf("failed to parse json '%s': %w", templateStr, err)
	}

	if num, err := strconv.ParseFloat(result, 64); err == nil {
		return num, nil
	}

	if b, err := strconv.ParseBool(result); err == nil {
		return b, nil
	}

	return result, nil
}

// RenderString executes templateStr and returns the raw output.
func RenderString(templateStr string, data any) (string, error) {
	tmpl, err := template.
		New("config").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
			"rand": func(max int) int {
				if max <= 0 {
					return 0
				}

				num := make([]byte, 1)

				_, err := rand.Read(num)
				if err != nil {
					return 0
				}

				return int(num[0]) % max
			},
		}).Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return "", fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	return buf.String(), nil
}

// RenderConfig returns a copy of config with every templated string rendered.
// Strings without template actions are kept as they are.
func RenderConfig(config map[string]any, data any) (map[string]any, error) {
	rendered, err := renderValue(config, data)
	if err != nil {
		return nil, err
	}

	out, _ := rendered.(map[string]any)

	return out, nil
}

func renderValue(value any, data any) (any, error) {
	switch v := value.(type) {
	case string:
		if !NeedsTemplating(v) {
			return v, nil
		}

		return RenderString(v, data)
	case map[string]any:
		if v == nil {
			return map[string]any(nil), nil
		}

		out := make(map[string]any, len(v))

		for key, item := range v {
			rendered, err := renderValue(item, data)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}

			out[key] = rendered
		}

		return out, nil
	case []any:
		out := make([]any, len(v))

		for i, item := range v {
			rendered, err := renderValue(item, data)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}

			out[i] = rendered
		}

		return out, nil
	default:
		return value, nil
	}
}

func NeedsTemplating(input string) bool {
	return strings.Contains(input, "{{")
}

func getEnvVars() map[string]any {
	envMap := make(map[string]any)

	for _, env := range os.Environ() {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) == 2 {
			envMap[parts[0]] = parts[1]
		}
	}

	return envMap
}
