package facade

import (
	"encoding/json"
	"math"
)

// requiredString returns a non-empty string field or a validation error.
func requiredString(args map[string]interface{}, field, tool string) (string, error) {
	v, ok := args[field].(string)
	if !ok || v == "" {
		return "", validationError(tool, "missing or empty required '%s' field", field)
	}
	return v, nil
}

// presentString returns a string field that must exist but may be empty.
func presentString(args map[string]interface{}, field, tool string) (string, error) {
	v, ok := args[field].(string)
	if !ok {
		return "", validationError(tool, "missing '%s' field", field)
	}
	return v, nil
}

// optionalString returns nil for missing, null or empty strings.
func optionalString(args map[string]interface{}, fields ...string) *string {
	for _, field := range fields {
		if v, ok := args[field].(string); ok && v != "" {
			return &v
		}
	}
	return nil
}

func optionalUint(args map[string]interface{}, field string) *int {
	var n float64
	switch v := args[field].(type) {
	case float64:
		n = v
	case int:
		n = float64(v)
	case int64:
		n = float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil
		}
		n = f
	default:
		return nil
	}
	if n < 0 || n != math.Trunc(n) {
		return nil
	}
	i := int(n)
	return &i
}

func optionalBool(args map[string]interface{}, field string) bool {
	v, _ := args[field].(bool)
	return v
}
