package conditions

import (
	"reflect"
	"strconv"
	"strings"
)

// Resolve looks up a dot path such as "user.profile.goal" in input.
// Numeric segments index into lists. A missing path yields (nil, false).
func Resolve(input map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}

	var current any = input

	for _, segment := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			value, ok := node[segment]
			if !ok {
				return nil, false
			}

			current = value
		case []any:
			index, err := strconv.Atoi(segment)
			if err != nil || index < 0 || index >= len(node) {
				return nil, false
			}

			current = node[index]
		default:
			value, ok := resolveReflect(current, segment)
			if !ok {
				return nil, false
			}

			current = value
		}
	}

	return current, true
}

// resolveReflect handles typed maps such as map[string]string.
func resolveReflect(node any, segment string) (any, bool) {
	if node == nil {
		return nil, false
	}

	value := reflect.ValueOf(node)
	if value.Kind() != reflect.Map || value.Type().Key().Kind() != reflect.String {
		return nil, false
	}

	entry := value.MapIndex(reflect.ValueOf(segment).Convert(value.Type().Key()))
	if !entry.IsValid() {
		return nil, false
	}

	return entry.Interface(), true
}
