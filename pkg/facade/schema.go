package facade

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

var unionKeywords = []string{"oneOf", "anyOf", "allOf", "not"}

var flatTypes = map[string]bool{
	"string":  true,
	"number":  true,
	"integer": true,
	"boolean": true,
}

// ValidateFlat checks that a definition only uses scalar and array-of-scalar
// properties and no union constructs.
func ValidateFlat(def Definition) error {
	params := def.Parameters
	if params == nil {
		return fmt.Errorf("%w: %s has no parameters schema", ErrNotFlat, def.Name)
	}
	if t, _ := params["type"].(string); t != "object" {
		return fmt.Errorf("%w: %s parameters must be an object", ErrNotFlat, def.Name)
	}
	if err := rejectUnions(def.Name, "", params); err != nil {
		return err
	}

	props, _ := params["properties"].(map[string]interface{})
	for name, raw := range props {
		prop, ok := raw.(map[string]interface{})
		if !ok {
			return fmt.Errorf("%w: %s.%s is not a schema", ErrNotFlat, def.Name, name)
		}
		if err := rejectUnions(def.Name, name, prop); err != nil {
			return err
		}

		t, _ := prop["type"].(string)
		switch {
		case flatTypes[t]:
		case t == "array":
			items, _ := prop["items"].(map[string]interface{})
			it, _ := items["type"].(string)
			if !flatTypes[it] {
				return fmt.Errorf("%w: %s.%s array items must be scalars", ErrNotFlat, def.Name, name)
			}
		default:
			return fmt.Errorf("%w: %s.%s has type %q", ErrNotFlat, def.Name, name, t)
		}
	}
	return nil
}

func rejectUnions(tool, prop string, schema map[string]interface{}) error {
	for _, kw := range unionKeywords {
		if _, ok := schema[kw]; ok {
			where := tool
			if prop != "" {
				where = tool + "." + prop
			}
			return fmt.Errorf("%w: %s uses %s", ErrNotFlat, where, kw)
		}
	}
	return nil
}

func compileSchema(def Definition) (*gojsonschema.Schema, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(def.Parameters))
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema for %s: %w", def.Name, err)
	}
	return schema, nil
}

func validateArgs(schema *gojsonschema.Schema, tool string, args map[string]interface{}) error {
	if args == nil {
		args = map[string]interface{}{}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return validationError(tool, "failed to validate arguments: %v", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	sort.Strings(msgs)
	return validationError(tool, "%s", strings.Join(msgs, "; "))
}

// schema builders

type props map[string]interface{}

func object(properties props, required ...string) map[string]interface{} {
	s := map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}(properties),
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// strictObject disallows extra properties.
func strictObject(properties props, required ...string) map[string]interface{} {
	s := object(properties, required...)
	s["additionalProperties"] = false
	return s
}

func str(desc string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": desc}
}

func strDefault(desc, def string) map[string]interface{} {
	s := str(desc)
	s["default"] = def
	return s
}

func enum(desc string, values ...string) map[string]interface{} {
	s := str(desc)
	s["enum"] = values
	return s
}

func integer(desc string) map[string]interface{} {
	return map[string]interface{}{"type": "integer", "description": desc, "minimum": 0}
}

func boolean(desc string) map[string]interface{} {
	return map[string]interface{}{"type": "boolean", "description": desc}
}
