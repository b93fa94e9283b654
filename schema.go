package toolbox

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
)

// argsValidator checks caller arguments against a tool's user-facing
// parameter set. Construction fails fast on a malformed schema; validation
// collects every violation instead of stopping at the first, so all problems
// surface in one pass.
type argsValidator struct {
	order  []string
	params map[string]*paramCheck
}

// paramCheck is the compiled form of one ParameterSchema.
type paramCheck struct {
	p      ParameterSchema
	items  *paramCheck // array element schema
	values *paramCheck // object value schema (schema-valued additionalProperties)
	closed bool        // object with additionalProperties: false
}

func newArgsValidator(params []ParameterSchema) (*argsValidator, error) {
	v := &argsValidator{
		order:  make([]string, 0, len(params)),
		params: make(map[string]*paramCheck, len(params)),
	}

	for _, p := range params {
		if _, dup := v.params[p.Name]; dup {
			return nil, fmt.Errorf("duplicate parameter %q", p.Name)
		}

		c, err := newParamCheck(p)
		if err != nil {
			return nil, err
		}

		v.order = append(v.order, p.Name)
		v.params[p.Name] = c
	}

	return v, nil
}

// newParamCheck compiles one parameter. The type switch is exhaustive over
// the closed ParamType set; anything else is a construction error.
func newParamCheck(p ParameterSchema) (*paramCheck, error) {
	c := &paramCheck{p: p}

	switch p.Type {
	case TypeString, TypeInteger, TypeFloat, TypeBoolean:
		// scalar
	case TypeArray:
		if p.Items == nil {
			return nil, fmt.Errorf("array parameter %q has no items schema", p.Name)
		}

		items, err := newParamCheck(*p.Items)
		if err != nil {
			return nil, err
		}
		c.items = items
	case TypeObject:
		switch ap := p.AdditionalProperties.(type) {
		case nil:
			// open object
		case bool:
			c.closed = !ap
		case map[string]any:
			sub, err := decodeValueSchema(ap)
			if err != nil {
				return nil, fmt.Errorf("object parameter %q: additionalProperties: %w", p.Name, err)
			}

			values, err := newParamCheck(valueSchemaParam(sub))
			if err != nil {
				return nil, err
			}
			c.values = values
		case ParameterSchema:
			values, err := newParamCheck(valueSchemaParam(ap))
			if err != nil {
				return nil, err
			}
			c.values = values
		case *ParameterSchema:
			values, err := newParamCheck(valueSchemaParam(*ap))
			if err != nil {
				return nil, err
			}
			c.values = values
		default:
			return nil, fmt.Errorf("object parameter %q: additionalProperties must be a boolean or a schema object, got %T", p.Name, ap)
		}
	default:
		return nil, fmt.Errorf("parameter %q: unsupported type %q", p.Name, p.Type)
	}

	return c, nil
}

// validate returns one message per violation, in parameter declaration order,
// then unknown keys in sorted order. An empty result means args are valid.
// args is never mutated.
func (v *argsValidator) validate(args map[string]any) []string {
	var out []string

	for _, name := range v.order {
		c := v.params[name]

		val, present := args[name]
		if !present {
			if !c.p.optional() {
				out = append(out, name+": Required")
			}

			continue
		}

		if val == nil {
			if !c.p.optional() {
				out = append(out, nullViolation(name, c.p.Type))
			}

			continue
		}

		out = append(out, c.check(name, val)...)
	}

	var unknown []string
	for k := range args {
		if _, ok := v.params[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	slices.Sort(unknown)

	for _, k := range unknown {
		out = append(out, k+": Unrecognized key")
	}

	return out
}

// check validates a non-nil value, prefixing violations with path. The type
// switch is exhaustive over the closed ParamType set.
func (c *paramCheck) check(path string, val any) []string {
	switch c.p.Type {
	case TypeString:
		if _, ok := val.(string); !ok {
			return []string{typeViolation(path, "string", val)}
		}
	case TypeInteger:
		if !isNumber(val) {
			return []string{typeViolation(path, "number", val)}
		}

		if !isIntegral(val) {
			return []string{path + ": Expected integer, received float"}
		}
	case TypeFloat:
		if !isNumber(val) {
			return []string{typeViolation(path, "number", val)}
		}
	case TypeBoolean:
		if _, ok := val.(bool); !ok {
			return []string{typeViolation(path, "boolean", val)}
		}
	case TypeArray:
		arr, ok := val.([]any)
		if !ok {
			return []string{typeViolation(path, "array", val)}
		}

		var out []string
		for i, el := range arr {
			elPath := fmt.Sprintf("%s[%d]", path, i)
			if el == nil {
				out = append(out, nullViolation(elPath, c.items.p.Type))
				continue
			}

			out = append(out, c.items.check(elPath, el)...)
		}

		return out
	case TypeObject:
		m, ok := val.(map[string]any)
		if !ok {
			return []string{typeViolation(path, "object", val)}
		}

		keys := sortedKeys(m)

		var out []string

		if c.closed {
			for _, k := range keys {
				out = append(out, path+"."+k+": Unrecognized key")
			}

			return out
		}

		if c.values != nil {
			for _, k := range keys {
				vPath := path + "." + k
				if m[k] == nil {
					out = append(out, nullViolation(vPath, c.values.p.Type))
					continue
				}

				out = append(out, c.values.check(vPath, m[k])...)
			}
		}

		return out
	}

	return nil
}

func typeViolation(path, want string, got any) string {
	return fmt.Sprintf("%s: Expected %s, received %s", path, want, jsonTypeName(got))
}

func nullViolation(path string, t ParamType) string {
	return fmt.Sprintf("%s: Expected %s, received null", path, expectedName(t))
}

// expectedName maps a parameter type to the type name used in violation
// messages. Both numeric types report "number"; the integral refinement has
// its own message.
func expectedName(t ParamType) string {
	switch t {
	case TypeInteger, TypeFloat:
		return "number"
	case TypeString, TypeBoolean, TypeArray, TypeObject:
		return string(t)
	}

	return string(t)
}

// jsonTypeName names the JSON value class of a Go value for violation
// messages.
func jsonTypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, json.Number:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func isNumber(v any) bool {
	switch n := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	case json.Number:
		_, err := n.Float64()
		return err == nil
	default:
		return false
	}
}

func isIntegral(v any) bool {
	switch n := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float32:
		return float64(n) == math.Trunc(float64(n))
	case float64:
		return n == math.Trunc(n)
	case json.Number:
		if _, err := n.Int64(); err == nil {
			return true
		}

		f, err := n.Float64()
		return err == nil && f == math.Trunc(f)
	default:
		return false
	}
}

// marshalParamsSchema renders params as a JSON Schema object document, the
// shape LLM providers expect for a tool declaration.
func marshalParamsSchema(params []ParameterSchema) ([]byte, error) {
	props := make(map[string]any, len(params))
	required := make([]string, 0, len(params))

	for _, p := range params {
		props[p.Name] = paramJSONSchema(p)
		if !p.optional() {
			required = append(required, p.Name)
		}
	}

	doc := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		doc["required"] = required
	}

	return json.Marshal(doc)
}

func paramJSONSchema(p ParameterSchema) map[string]any {
	m := map[string]any{"type": jsonSchemaType(p.Type)}
	if p.Description != "" {
		m["description"] = p.Description
	}

	switch p.Type {
	case TypeArray:
		if p.Items != nil {
			m["items"] = paramJSONSchema(*p.Items)
		}
	case TypeObject:
		switch ap := p.AdditionalProperties.(type) {
		case bool:
			m["additionalProperties"] = ap
		case map[string]any:
			if sub, err := decodeValueSchema(ap); err == nil {
				m["additionalProperties"] = paramJSONSchema(sub)
			}
		case ParameterSchema:
			m["additionalProperties"] = paramJSONSchema(ap)
		case *ParameterSchema:
			if ap != nil {
				m["additionalProperties"] = paramJSONSchema(*ap)
			}
		}
	case TypeString, TypeInteger, TypeFloat, TypeBoolean:
		// scalar
	}

	return m
}

// jsonSchemaType maps the wire type to its JSON Schema name. The float type
// is the only divergence between the two vocabularies.
func jsonSchemaType(t ParamType) string {
	switch t {
	case TypeString:
		return "string"
	case TypeInteger:
		return "integer"
	case TypeFloat:
		return "number"
	case TypeBoolean:
		return "boolean"
	case TypeArray:
		return "array"
	case TypeObject:
		return "object"
	}

	return string(t)
}
