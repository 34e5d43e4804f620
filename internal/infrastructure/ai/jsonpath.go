package ai

import (
	"fmt"
	"strconv"
)

type pathPart struct {
	index bool
	value string
}

// extractJSONPath walks "field", "field.nested" and "field[0].nested"
// paths and returns the string at the end.
func extractJSONPath(data map[string]interface{}, path string) (string, error) {
	var current interface{} = data

	for _, part := range parseJSONPath(path) {
		if !part.index {
			obj, ok := current.(map[string]interface{})
			if !ok {
				return "", fmt.Errorf("expected object at '%s'", part.value)
			}
			next, found := obj[part.value]
			if !found {
				return "", fmt.Errorf("field '%s' not found", part.value)
			}
			current = next
			continue
		}

		arr, ok := current.([]interface{})
		if !ok {
			return "", fmt.Errorf("expected array at index %s", part.value)
		}
		idx, err := strconv.Atoi(part.value)
		if err != nil {
			return "", fmt.Errorf("bad index %q", part.value)
		}
		if idx < 0 || idx >= len(arr) {
			return "", fmt.Errorf("index %d out of bounds (len=%d)", idx, len(arr))
		}
		current = arr[idx]
	}

	if str, ok := current.(string); ok {
		return str, nil
	}
	return "", fmt.Errorf("final value is not a string: %T", current)
}

// parseJSONPath splits "choices[0].message.content" into
// choices, [0], message, content.
func parseJSONPath(path string) []pathPart {
	var parts []pathPart
	current := ""

	for i := 0; i < len(path); i++ {
		switch ch := path[i]; ch {
		case '.':
			if current != "" {
				parts = append(parts, pathPart{value: current})
				current = ""
			}
		case '[':
			if current != "" {
				parts = append(parts, pathPart{value: current})
				current = ""
			}
			j := i + 1
			for j < len(path) && path[j] != ']' {
				j++
			}
			if j < len(path) {
				parts = append(parts, pathPart{index: true, value: path[i+1 : j]})
				i = j
			}
		default:
			current += string(ch)
		}
	}

	if current != "" {
		parts = append(parts, pathPart{value: current})
	}
	return parts
}
