package toolbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	invopop "github.com/invopop/jsonschema"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ParamType enumerates the parameter types of the Toolbox wire format.
// The set is closed: manifests carrying any other type string are rejected
// before a tool is constructed.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeFloat   ParamType = "float"
	TypeBoolean ParamType = "boolean"
	TypeArray   ParamType = "array"
	TypeObject  ParamType = "object"
)

// paramTypes lists every member of the closed set, in wire order.
var paramTypes = []ParamType{TypeString, TypeInteger, TypeFloat, TypeBoolean, TypeArray, TypeObject}

// JSONSchema emits the closed enum into the wire-contract schema, so unknown
// parameter types fail structural validation with the allowed values listed.
func (ParamType) JSONSchema() *invopop.Schema {
	s := &invopop.Schema{Type: "string"}
	for _, t := range paramTypes {
		s.Enum = append(s.Enum, string(t))
	}

	return s
}

// ParameterSchema describes a single tool parameter as served in a manifest.
// A parameter with AuthSources set is populated server-side from a verified
// ID token and never appears in the caller-facing schema.
type ParameterSchema struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Description string    `json:"description"`
	// Required defaults to true when absent; only an explicit false makes the
	// parameter optional.
	Required    *bool    `json:"required,omitempty"`
	AuthSources []string `json:"authSources,omitempty"`
	// Items holds the element schema; mandatory for array parameters.
	Items *ParameterSchema `json:"items,omitempty"`
	// AdditionalProperties constrains object parameter values: a boolean, or a
	// nested schema object applied to every value.
	AdditionalProperties any `json:"additionalProperties,omitempty"`
}

// optional reports whether the parameter may be omitted or set to nil.
func (p ParameterSchema) optional() bool {
	return p.Required != nil && !*p.Required
}

// ToolSchema is one tool's definition within a manifest.
type ToolSchema struct {
	Description  string            `json:"description"`
	Parameters   []ParameterSchema `json:"parameters"`
	AuthRequired []string          `json:"authRequired,omitempty"`
}

// Manifest is the response body of the tool and toolset endpoints.
type Manifest struct {
	ServerVersion string                `json:"serverVersion"`
	Tools         map[string]ToolSchema `json:"tools"`
}

// compileManifestSchema reflects the wire structs above into a JSON Schema
// document and compiles it. The wire contract therefore lives in one place:
// the struct tags. Compiled once per client.
func compileManifestSchema() (*jsonschema.Schema, error) {
	r := &invopop.Reflector{
		Anonymous: true,
		// Unknown manifest fields from newer servers must not fail validation.
		AllowAdditionalProperties: true,
	}

	raw, err := json.Marshal(r.Reflect(&Manifest{}))
	if err != nil {
		return nil, fmt.Errorf("marshal manifest schema: %w", err)
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode manifest schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("manifest.json", doc); err != nil {
		return nil, fmt.Errorf("add manifest schema: %w", err)
	}

	sch, err := c.Compile("manifest.json")
	if err != nil {
		return nil, fmt.Errorf("compile manifest schema: %w", err)
	}

	return sch, nil
}

// decodeManifest validates body against the wire contract and decodes it.
// Layer 1 is structural (compiled JSON Schema); layer 2 is the semantic rules
// a type system cannot express. Both layers report every violation they find,
// so a broken server gets fixed in one round trip, not one field at a time.
func decodeManifest(url string, body []byte, sch *jsonschema.Schema) (*Manifest, error) {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return nil, &ManifestError{URL: url, Violations: []string{"invalid JSON: " + err.Error()}}
	}

	if err := sch.Validate(inst); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return nil, &ManifestError{URL: url, Violations: flattenCauses(ve)}
		}

		return nil, &ManifestError{URL: url, Violations: []string{err.Error()}}
	}

	var m Manifest
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, &ManifestError{URL: url, Violations: []string{"decode: " + err.Error()}}
	}

	if violations := checkManifest(&m); len(violations) > 0 {
		return nil, &ManifestError{URL: url, Violations: violations}
	}

	return &m, nil
}

// flattenCauses walks a validation error tree and returns one message per
// leaf cause. Branch nodes only group; the leaves carry the keyword failures.
func flattenCauses(ve *jsonschema.ValidationError) []string {
	if len(ve.Causes) == 0 {
		return []string{causeMsg(ve)}
	}

	var out []string
	for _, c := range ve.Causes {
		out = append(out, flattenCauses(c)...)
	}

	return out
}

var errPrinter = message.NewPrinter(language.English)

func causeMsg(ve *jsonschema.ValidationError) string {
	loc := "/" + strings.Join(ve.InstanceLocation, "/")
	return fmt.Sprintf("at %q: %s", loc, ve.ErrorKind.LocalizedString(errPrinter))
}

// checkManifest applies the semantic rules: non-empty tool names and
// descriptions, array parameters carrying an element schema, object value
// schemas well formed. Violations cover the whole manifest.
func checkManifest(m *Manifest) []string {
	var out []string

	for _, name := range sortedKeys(m.Tools) {
		if name == "" {
			out = append(out, "tool name must not be empty")
			continue
		}

		ts := m.Tools[name]
		if ts.Description == "" {
			out = append(out, fmt.Sprintf("tool %q: description must not be empty", name))
		}

		for _, p := range ts.Parameters {
			out = append(out, checkParam(fmt.Sprintf("tool %q parameter %q", name, p.Name), p)...)
		}
	}

	return out
}

func checkParam(path string, p ParameterSchema) []string {
	var out []string

	if p.Name == "" {
		out = append(out, path+": name must not be empty")
	}

	switch p.Type {
	case TypeArray:
		if p.Items == nil {
			out = append(out, path+": array requires an items schema")
		} else {
			out = append(out, checkParam(path+" items", *p.Items)...)
		}
	case TypeObject:
		out = append(out, checkValueSchema(path, p.AdditionalProperties)...)
	case TypeString, TypeInteger, TypeFloat, TypeBoolean:
		// scalar, nothing beyond the wire contract
	}

	return out
}

// checkValueSchema accepts the additionalProperties forms: absent, boolean, or
// a nested schema object with a valid type.
func checkValueSchema(path string, v any) []string {
	switch ap := v.(type) {
	case nil, bool:
		return nil
	case map[string]any:
		sub, err := decodeValueSchema(ap)
		if err != nil {
			return []string{fmt.Sprintf("%s: additionalProperties: %v", path, err)}
		}

		return checkParam(path+" additionalProperties", valueSchemaParam(sub))
	default:
		return []string{fmt.Sprintf("%s: additionalProperties must be a boolean or a schema object, got %T", path, v)}
	}
}

// decodeValueSchema converts a schema-valued additionalProperties map into a
// ParameterSchema. Name and description are not required on value schemas.
func decodeValueSchema(m map[string]any) (ParameterSchema, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return ParameterSchema{}, err
	}

	var p ParameterSchema
	if err := json.Unmarshal(raw, &p); err != nil {
		return ParameterSchema{}, err
	}

	if !validParamType(p.Type) {
		return ParameterSchema{}, fmt.Errorf("unknown type %q", p.Type)
	}

	return p, nil
}

// valueSchemaParam fills the synthetic fields checkParam expects on a named
// parameter, so nested rules (array items and so on) still apply.
func valueSchemaParam(p ParameterSchema) ParameterSchema {
	if p.Name == "" {
		p.Name = "(value)"
	}

	return p
}

func validParamType(t ParamType) bool {
	for _, known := range paramTypes {
		if t == known {
			return true
		}
	}

	return false
}
