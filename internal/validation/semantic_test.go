package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/opfilter/internal/expressions"
	"github.com/rendis/opfilter/pkg/schema"
)

func mustParse(t *testing.T, doc string) *schema.Condition {
	t.Helper()
	cond, err := schema.ParseCondition([]byte(doc))
	require.NoError(t, err)
	return cond
}

func registry(t *testing.T) *expressions.Registry {
	t.Helper()
	r, err := expressions.NewRegistry()
	require.NoError(t, err)
	return r
}

func semantic(t *testing.T, doc string) *schema.ValidationResult {
	t.Helper()
	return validateSemantic(mustParse(t, doc), "root", registry(t))
}

// --- Paths and aliases ---

func TestSemantic_ValidPaths(t *testing.T) {
	result := semantic(t, `{"listConditionCondition": {
		"list": {"objectPathLookupList": "#/children"},
		"itemAlias": "child",
		"condition": {"andCondition": [
			{"integerIsLessThanCondition": {"integer": {"objectPathLookupInteger": "#child/age"}, "isLessThan": {"objectPathLookupInteger": "#root/limit"}}},
			{"integerIsLessThanCondition": {"integer": {"objectPathLookupInteger": "#/age"}, "isLessThan": {"objectPathLookupInteger": "/max"}}}
		]}}}`)
	assert.True(t, result.Valid(), "%v", result.Errors)
	assert.Empty(t, result.Warnings)
}

func TestSemantic_PathSyntax(t *testing.T) {
	result := semantic(t, `{"integerIsEqualToCondition": {"integer": {"objectPathLookupInteger": "age"}, "isEqualTo": 1}}`)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, schema.ErrCodePathSyntax, result.Errors[0].Code)
	assert.Equal(t, "/integerIsEqualToCondition/integer/objectPathLookupInteger", result.Errors[0].Location)
}

func TestSemantic_BadEscape(t *testing.T) {
	result := semantic(t, `{"objectContainsPropertyCondition": {"object": {"objectPathLookupObject": "#/a~2b"}, "propertyName": "x"}}`)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, schema.ErrCodePathSyntax, result.Errors[0].Code)
}

func TestSemantic_UnknownAlias(t *testing.T) {
	result := semantic(t, `{"andCondition": [
		{"listConditionCondition": {
			"list": {"objectPathLookupList": "#/items"},
			"itemAlias": "it",
			"condition": {"andCondition": []}}},
		{"textMatchesRegexPatternCondition": {"text": {"objectPathLookupText": "#it/name"}, "regexPattern": "x"}}
	]}`)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, schema.ErrCodePathSyntax, result.Errors[0].Code)
	assert.Equal(t, "/andCondition/1/textMatchesRegexPatternCondition/text/objectPathLookupText", result.Errors[0].Location)
	assert.Contains(t, result.Errors[0].Message, `"it"`)
}

func TestSemantic_AliasShadowing(t *testing.T) {
	result := semantic(t, `{"listConditionCondition": {
		"list": {"objectPathLookupList": "#/a"},
		"itemAlias": "x",
		"condition": {"listConditionCondition": {
			"list": {"objectPathLookupList": "#x/b"},
			"itemAlias": "x",
			"condition": {"andCondition": []}}}}}`)
	assert.True(t, result.Valid())
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "/listConditionCondition/condition/listConditionCondition/itemAlias", result.Warnings[0].Location)
}

func TestSemantic_RootAliasShadowing(t *testing.T) {
	result := semantic(t, `{"listConditionCondition": {"list": [], "itemAlias": "root", "condition": {"andCondition": []}}}`)
	assert.True(t, result.Valid())
	assert.Len(t, result.Warnings, 1)
}

// --- Kinds and literals ---

func TestSemantic_LookupKindMismatch(t *testing.T) {
	result := semantic(t, `{"dateIsBeforeCondition": {"date": {"objectPathLookupText": "#/d"}, "isBefore": "2024-01-01"}}`)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, schema.ErrCodeTypeMismatch, result.Errors[0].Code)
	assert.Equal(t, "/dateIsBeforeCondition/date/objectPathLookupText", result.Errors[0].Location)
}

func TestSemantic_ComparisonLiterals(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		valid bool
	}{
		{"integer", `{"integerIsEqualToCondition": {"integer": 1, "isEqualTo": 2}}`, true},
		{"decimal notation", `{"integerIsEqualToCondition": {"integer": 1.0, "isEqualTo": 2}}`, false},
		{"fraction", `{"integerIsEqualToCondition": {"integer": 1.5, "isEqualTo": 2}}`, false},
		{"null", `{"numberIsEqualToCondition": {"number": null, "isEqualTo": 2}}`, false},
		{"date", `{"dateIsAfterCondition": {"date": "2024-02-29", "isAfter": "2024-01-01"}}`, true},
		{"bad date", `{"dateIsAfterCondition": {"date": "2023-02-29", "isAfter": "2024-01-01"}}`, false},
		{"time", `{"timeIsBeforeCondition": {"time": "10:00:00", "isBefore": "11:30:00"}}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := semantic(t, tt.doc)
			assert.Equal(t, tt.valid, result.Valid(), "%v", result.Errors)
			for _, e := range result.Errors {
				assert.Equal(t, schema.ErrCodeTypeMismatch, e.Code)
			}
		})
	}
}

func TestSemantic_LazyLiteralIsWarning(t *testing.T) {
	result := semantic(t, `{"textMatchesRegexPatternCondition": {"text": 42, "regexPattern": "4"}}`)
	assert.True(t, result.Valid())
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, schema.ErrCodeTypeMismatch, result.Warnings[0].Code)
	assert.Equal(t, "/textMatchesRegexPatternCondition/text", result.Warnings[0].Location)
}

func TestSemantic_Substitutes(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		result := semantic(t, `{"integerIsEqualToCondition": {"integer": {"objectPathLookupInteger": {
			"path": "#/a",
			"valueIfNotFound": 0,
			"valueIfNull": null,
			"defaultValue": {"objectPathLookupInteger": "/fallback"}}}, "isEqualTo": 1}}`)
		assert.True(t, result.Valid(), "%v", result.Errors)
	})

	t.Run("bad literal", func(t *testing.T) {
		result := semantic(t, `{"integerIsEqualToCondition": {"integer": {"objectPathLookupInteger": {
			"path": "#/a", "valueIfTypeMismatch": "zero"}}, "isEqualTo": 1}}`)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, "/integerIsEqualToCondition/integer/objectPathLookupInteger/valueIfTypeMismatch", result.Errors[0].Location)
	})

	t.Run("bad nested path", func(t *testing.T) {
		result := semantic(t, `{"integerIsEqualToCondition": {"integer": {"objectPathLookupInteger": {
			"path": "#/a", "defaultValue": {"objectPathLookupInteger": "#nope/b"}}}, "isEqualTo": 1}}`)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, schema.ErrCodePathSyntax, result.Errors[0].Code)
	})
}

// --- Patterns, property names, expressions ---

func TestSemantic_InvalidPattern(t *testing.T) {
	result := semantic(t, `{"textMatchesRegexPatternCondition": {"text": "a", "regexPattern": "(a"}}`)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, schema.ErrCodeInvalidPattern, result.Errors[0].Code)
	assert.Equal(t, "/textMatchesRegexPatternCondition/regexPattern", result.Errors[0].Location)
}

func TestSemantic_PropertyName(t *testing.T) {
	for name, prop := range map[string]string{"empty": `""`, "control": `"a\u0007b"`} {
		t.Run(name, func(t *testing.T) {
			result := semantic(t, `{"objectContainsPropertyCondition": {"object": {}, "propertyName": `+prop+`}}`)
			require.Len(t, result.Errors, 1)
			assert.Equal(t, schema.ErrCodePropertyKeyInvalid, result.Errors[0].Code)
		})
	}
}

func TestSemantic_Expressions(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		location string
	}{
		{"valid cel", `{"expressionCondition": {"expression": "item > 1"}}`, ""},
		{"valid jq", `{"expressionCondition": {"engine": "jq", "expression": ".item > 1"}}`, ""},
		{"unknown engine", `{"expressionCondition": {"engine": "lua", "expression": "true"}}`, "/expressionCondition/engine"},
		{"compile error", `{"expressionCondition": {"engine": "expr", "expression": "item >"}}`, "/expressionCondition/expression"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := semantic(t, tt.doc)
			if tt.location == "" {
				assert.True(t, result.Valid(), "%v", result.Errors)
				return
			}
			require.Len(t, result.Errors, 1)
			assert.Equal(t, schema.ErrCodeValidation, result.Errors[0].Code)
			assert.Equal(t, tt.location, result.Errors[0].Location)
		})
	}
}

func TestSemantic_NilRegistrySkipsExpressions(t *testing.T) {
	cond := mustParse(t, `{"expressionCondition": {"engine": "lua", "expression": "true"}}`)
	assert.True(t, validateSemantic(cond, "root", nil).Valid())
}

// --- Structure ---

func TestSemantic_DepthLimit(t *testing.T) {
	doc := strings.Repeat(`{"notCondition": `, MaxConditionDepth) + `{"andCondition": []}` + strings.Repeat(`}`, MaxConditionDepth)
	result := semantic(t, doc)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "nesting exceeds")

	doc = strings.Repeat(`{"notCondition": `, MaxConditionDepth-1) + `{"andCondition": []}` + strings.Repeat(`}`, MaxConditionDepth-1)
	assert.True(t, semantic(t, doc).Valid())
}

func TestSemantic_EmptyJunctionWarnings(t *testing.T) {
	result := semantic(t, `{"andCondition": [{"orCondition": []}, {"xorCondition": []}]}`)
	assert.True(t, result.Valid())
	assert.Len(t, result.Warnings, 2)
}

func TestSemantic_CollectsAllErrors(t *testing.T) {
	result := semantic(t, `{"orCondition": [
		{"textMatchesRegexPatternCondition": {"text": {"objectPathLookupText": "x"}, "regexPattern": "["}},
		{"objectContainsPropertyCondition": {"object": {}, "propertyName": ""}}
	]}`)
	assert.Len(t, result.Errors, 3)
}
