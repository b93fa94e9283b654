package toolbox

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolp(b bool) *bool { return &b }

func mustValidator(t *testing.T, params ...ParameterSchema) *argsValidator {
	t.Helper()

	v, err := newArgsValidator(params)
	require.NoError(t, err)

	return v
}

func TestArgsValidator_Valid(t *testing.T) {
	v := mustValidator(t,
		ParameterSchema{Name: "name", Type: TypeString},
		ParameterSchema{Name: "age", Type: TypeInteger},
		ParameterSchema{Name: "score", Type: TypeFloat},
		ParameterSchema{Name: "active", Type: TypeBoolean},
		ParameterSchema{Name: "tags", Type: TypeArray, Items: &ParameterSchema{Type: TypeString}},
		ParameterSchema{Name: "meta", Type: TypeObject},
	)

	violations := v.validate(map[string]any{
		"name":   "Alice",
		"age":    42,
		"score":  9.5,
		"active": true,
		"tags":   []any{"a", "b"},
		"meta":   map[string]any{"k": "v"},
	})
	assert.Empty(t, violations)
}

func TestArgsValidator_TypeMismatch(t *testing.T) {
	v := mustValidator(t,
		ParameterSchema{Name: "name", Type: TypeString},
		ParameterSchema{Name: "age", Type: TypeInteger},
	)

	violations := v.validate(map[string]any{"name": "Alice", "age": "42"})
	assert.Equal(t, []string{"age: Expected number, received string"}, violations)
}

func TestArgsValidator_MissingRequired(t *testing.T) {
	v := mustValidator(t,
		ParameterSchema{Name: "name", Type: TypeString},
		ParameterSchema{Name: "age", Type: TypeInteger},
	)

	violations := v.validate(map[string]any{"age": 30})
	assert.Equal(t, []string{"name: Required"}, violations)
}

func TestArgsValidator_OptionalAbsentOrNull(t *testing.T) {
	v := mustValidator(t,
		ParameterSchema{Name: "limit", Type: TypeInteger, Required: boolp(false)},
	)

	assert.Empty(t, v.validate(map[string]any{}))
	assert.Empty(t, v.validate(map[string]any{"limit": nil}))
	assert.Empty(t, v.validate(map[string]any{"limit": 5}))
}

func TestArgsValidator_RequiredNull(t *testing.T) {
	v := mustValidator(t,
		ParameterSchema{Name: "name", Type: TypeString},
		ParameterSchema{Name: "age", Type: TypeInteger},
	)

	violations := v.validate(map[string]any{"name": nil, "age": nil})
	assert.Equal(t, []string{
		"name: Expected string, received null",
		"age: Expected number, received null",
	}, violations)
}

func TestArgsValidator_UnrecognizedKeys(t *testing.T) {
	v := mustValidator(t, ParameterSchema{Name: "name", Type: TypeString})

	violations := v.validate(map[string]any{"name": "x", "zz": 1, "aa": 2})
	assert.Equal(t, []string{
		"aa: Unrecognized key",
		"zz: Unrecognized key",
	}, violations)
}

func TestArgsValidator_IntegerRejectsFractional(t *testing.T) {
	v := mustValidator(t, ParameterSchema{Name: "count", Type: TypeInteger})

	assert.Empty(t, v.validate(map[string]any{"count": 3}))
	assert.Empty(t, v.validate(map[string]any{"count": 3.0}), "integral float is accepted")
	assert.Empty(t, v.validate(map[string]any{"count": json.Number("3")}))

	violations := v.validate(map[string]any{"count": 3.5})
	assert.Equal(t, []string{"count: Expected integer, received float"}, violations)

	violations = v.validate(map[string]any{"count": json.Number("3.5")})
	assert.Equal(t, []string{"count: Expected integer, received float"}, violations)
}

func TestArgsValidator_FloatAcceptsAnyNumber(t *testing.T) {
	v := mustValidator(t, ParameterSchema{Name: "score", Type: TypeFloat})

	assert.Empty(t, v.validate(map[string]any{"score": 3}))
	assert.Empty(t, v.validate(map[string]any{"score": 3.5}))
	assert.Empty(t, v.validate(map[string]any{"score": json.Number("2.25")}))

	violations := v.validate(map[string]any{"score": true})
	assert.Equal(t, []string{"score: Expected number, received boolean"}, violations)
}

func TestArgsValidator_ArrayElements(t *testing.T) {
	v := mustValidator(t,
		ParameterSchema{Name: "tags", Type: TypeArray, Items: &ParameterSchema{Type: TypeString}},
	)

	assert.Empty(t, v.validate(map[string]any{"tags": []any{}}))
	assert.Empty(t, v.validate(map[string]any{"tags": []any{"a", "b"}}))

	violations := v.validate(map[string]any{"tags": []any{"a", 1, nil}})
	assert.Equal(t, []string{
		"tags[1]: Expected string, received number",
		"tags[2]: Expected string, received null",
	}, violations)

	violations = v.validate(map[string]any{"tags": "not-a-list"})
	assert.Equal(t, []string{"tags: Expected array, received string"}, violations)
}

func TestArgsValidator_NestedArrays(t *testing.T) {
	v := mustValidator(t,
		ParameterSchema{
			Name: "grid",
			Type: TypeArray,
			Items: &ParameterSchema{
				Type:  TypeArray,
				Items: &ParameterSchema{Type: TypeInteger},
			},
		},
	)

	assert.Empty(t, v.validate(map[string]any{"grid": []any{[]any{1, 2}, []any{3}}}))

	violations := v.validate(map[string]any{"grid": []any{[]any{1, "x"}}})
	assert.Equal(t, []string{"grid[0][1]: Expected number, received string"}, violations)
}

func TestArgsValidator_OpenObject(t *testing.T) {
	v := mustValidator(t, ParameterSchema{Name: "meta", Type: TypeObject})

	assert.Empty(t, v.validate(map[string]any{"meta": map[string]any{"anything": []any{1}}}))

	violations := v.validate(map[string]any{"meta": []any{}})
	assert.Equal(t, []string{"meta: Expected object, received array"}, violations)
}

func TestArgsValidator_ClosedObject(t *testing.T) {
	v := mustValidator(t,
		ParameterSchema{Name: "opts", Type: TypeObject, AdditionalProperties: false},
	)

	assert.Empty(t, v.validate(map[string]any{"opts": map[string]any{}}))

	violations := v.validate(map[string]any{"opts": map[string]any{"b": 1, "a": 2}})
	assert.Equal(t, []string{
		"opts.a: Unrecognized key",
		"opts.b: Unrecognized key",
	}, violations)
}

func TestArgsValidator_ObjectValueSchema(t *testing.T) {
	v := mustValidator(t,
		ParameterSchema{
			Name:                 "env",
			Type:                 TypeObject,
			AdditionalProperties: ParameterSchema{Type: TypeString},
		},
	)

	assert.Empty(t, v.validate(map[string]any{"env": map[string]any{"HOME": "/root"}}))

	violations := v.validate(map[string]any{"env": map[string]any{"PORT": 8080, "NIL": nil}})
	assert.Equal(t, []string{
		"env.NIL: Expected string, received null",
		"env.PORT: Expected string, received number",
	}, violations)
}

func TestArgsValidator_ObjectValueSchemaFromWireMap(t *testing.T) {
	// additionalProperties arrives as a generic map when the manifest is
	// decoded from JSON.
	v := mustValidator(t,
		ParameterSchema{
			Name:                 "env",
			Type:                 TypeObject,
			AdditionalProperties: map[string]any{"type": "integer"},
		},
	)

	assert.Empty(t, v.validate(map[string]any{"env": map[string]any{"a": 1}}))

	violations := v.validate(map[string]any{"env": map[string]any{"a": "x"}})
	assert.Equal(t, []string{"env.a: Expected number, received string"}, violations)
}

func TestArgsValidator_CollectsAllViolations(t *testing.T) {
	v := mustValidator(t,
		ParameterSchema{Name: "name", Type: TypeString},
		ParameterSchema{Name: "age", Type: TypeInteger},
		ParameterSchema{Name: "active", Type: TypeBoolean},
	)

	violations := v.validate(map[string]any{
		"age":    "old",
		"active": "yes",
		"extra":  1,
	})
	assert.Equal(t, []string{
		"name: Required",
		"age: Expected number, received string",
		"active: Expected boolean, received string",
		"extra: Unrecognized key",
	}, violations)
}

func TestArgsValidator_PureAndRepeatable(t *testing.T) {
	v := mustValidator(t, ParameterSchema{Name: "age", Type: TypeInteger})

	args := map[string]any{"age": "x", "extra": 1}
	first := v.validate(args)
	second := v.validate(args)

	assert.Equal(t, first, second)
	assert.Equal(t, map[string]any{"age": "x", "extra": 1}, args)
}

func TestNewArgsValidator_ConstructionErrors(t *testing.T) {
	tests := []struct {
		name    string
		params  []ParameterSchema
		wantMsg string
	}{
		{
			name: "duplicate parameter",
			params: []ParameterSchema{
				{Name: "a", Type: TypeString},
				{Name: "a", Type: TypeInteger},
			},
			wantMsg: `duplicate parameter "a"`,
		},
		{
			name:    "unknown type",
			params:  []ParameterSchema{{Name: "a", Type: ParamType("decimal")}},
			wantMsg: `unsupported type "decimal"`,
		},
		{
			name:    "array without items",
			params:  []ParameterSchema{{Name: "a", Type: TypeArray}},
			wantMsg: `array parameter "a" has no items schema`,
		},
		{
			name: "nested items with unknown type",
			params: []ParameterSchema{
				{Name: "a", Type: TypeArray, Items: &ParameterSchema{Type: ParamType("uuid")}},
			},
			wantMsg: `unsupported type "uuid"`,
		},
		{
			name: "additionalProperties of the wrong kind",
			params: []ParameterSchema{
				{Name: "a", Type: TypeObject, AdditionalProperties: 17},
			},
			wantMsg: "additionalProperties must be a boolean or a schema object",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newArgsValidator(tt.params)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestMarshalParamsSchema(t *testing.T) {
	raw, err := marshalParamsSchema([]ParameterSchema{
		{Name: "city", Type: TypeString, Description: "City name"},
		{Name: "days", Type: TypeInteger, Required: boolp(false)},
		{Name: "tags", Type: TypeArray, Items: &ParameterSchema{Type: TypeString}},
	})
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))

	assert.Equal(t, "object", doc["type"])
	assert.Equal(t, false, doc["additionalProperties"])
	assert.ElementsMatch(t, []any{"city", "tags"}, doc["required"])

	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok)

	city, ok := props["city"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "string", city["type"])
	assert.Equal(t, "City name", city["description"])

	tags, ok := props["tags"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "array", tags["type"])
	assert.Equal(t, map[string]any{"type": "string"}, tags["items"])
}

func TestMarshalParamsSchema_FloatIsNumber(t *testing.T) {
	raw, err := marshalParamsSchema([]ParameterSchema{
		{Name: "score", Type: TypeFloat},
	})
	require.NoError(t, err)

	var doc struct {
		Properties map[string]struct {
			Type string `json:"type"`
		} `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "number", doc.Properties["score"].Type)
}

func TestMarshalParamsSchema_Empty(t *testing.T) {
	raw, err := marshalParamsSchema(nil)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "object", doc["type"])
	assert.NotContains(t, doc, "required")
}
