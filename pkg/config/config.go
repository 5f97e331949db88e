// Package config loads workflow definitions from JSON and YAML files.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/evofitmeals/evoflow/pkg/models"
	"gopkg.in/yaml.v3"
)

var ErrUnsupportedFormat = errors.New("unsupported definition format")

// LoadWorkflows reads one definition file. The file holds a single workflow
// or a list of them; the format follows the extension (.json, .yaml, .yml).
func LoadWorkflows(path string) ([]*models.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition file %s: %w", path, err)
	}

	workflows, err := ParseWorkflows(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return workflows, nil
}

// LoadWorkflowsDir reads every definition file directly under dir in name order.
func LoadWorkflowsDir(dir string) ([]*models.Workflow, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read definitions directory %s: %w", dir, err)
	}

	var workflows []*models.Workflow

	for _, entry := range entries {
		if entry.IsDir() || !isDefinitionFile(entry.Name()) {
			continue
		}

		loaded, err := LoadWorkflows(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}

		workflows = append(workflows, loaded...)
	}

	return workflows, nil
}

// ParseWorkflows decodes definitions in the format named by ext.
func ParseWorkflows(data []byte, ext string) ([]*models.Workflow, error) {
	switch strings.ToLower(ext) {
	case ".json":
		return decodeJSON(data)
	case ".yaml", ".yml":
		var document any

		err := yaml.Unmarshal(data, &document)
		if err != nil {
			return nil, fmt.Errorf("failed to parse YAML definitions: %w", err)
		}

		// Definitions only carry json tags, so YAML is re-encoded as JSON.
		converted, err := json.Marshal(document)
		if err != nil {
			return nil, fmt.Errorf("failed to convert YAML definitions: %w", err)
		}

		return decodeJSON(converted)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// ValidateWorkflows checks what a single definition cannot: every workflow
// has an id and ids are unique across the set.
func ValidateWorkflows(workflows []*models.Workflow) error {
	seen := make(map[string]int, len(workflows))

	for i, workflow := range workflows {
		if workflow.ID == "" {
			return fmt.Errorf("workflows[%d]: id is required", i)
		}

		if first, exists := seen[workflow.ID]; exists {
			return fmt.Errorf("workflows[%d]: id %q already used by workflows[%d]", i, workflow.ID, first)
		}

		seen[workflow.ID] = i
	}

	return nil
}

func decodeJSON(data []byte) ([]*models.Workflow, error) {
	data = bytes.TrimSpace(data)

	if len(data) > 0 && data[0] == '[' {
		var workflows []*models.Workflow

		err := json.Unmarshal(data, &workflows)
		if err != nil {
			return nil, fmt.Errorf("failed to parse definitions: %w", err)
		}

		return workflows, nil
	}

	var workflow models.Workflow

	err := json.Unmarshal(data, &workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to parse definition: %w", err)
	}

	return []*models.Workflow{&workflow}, nil
}

func isDefinitionFile(name string) bool {
	return slices.Contains([]string{".json", ".yaml", ".yml"}, strings.ToLower(filepath.Ext(name)))
}
