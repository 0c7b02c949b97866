package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/opfilter/pkg/schema"
)

func newValidator(t *testing.T) *ConditionValidator {
	t.Helper()
	cv, err := NewConditionValidator(registry(t))
	require.NoError(t, err)
	return cv
}

func TestConditionValidator_Valid(t *testing.T) {
	cv := newValidator(t)

	cond, result := cv.Validate([]byte(`{"orCondition": [
		{"integerIsGreaterThanCondition": {"integer": {"objectPathLookupInteger": "#/age"}, "isGreaterThan": 18}},
		{"expressionCondition": {"engine": "expr", "expression": "item.vip == true"}}
	]}`))
	require.True(t, result.Valid(), "%v", result.Errors)
	require.NotNil(t, cond)
	assert.Equal(t, schema.ConditionOr, cond.Type)
	assert.Len(t, cond.Children, 2)
}

func TestConditionValidator_StructuralShortCircuits(t *testing.T) {
	cv := newValidator(t)

	// The bad pattern would be a semantic error; structural errors stop first.
	cond, result := cv.Validate([]byte(`{"andCondition": [
		{"textMatchesRegexPatternCondition": {"text": "a", "regexPattern": "("}},
		{"bogusCondition": {}}
	]}`))
	assert.Nil(t, cond)
	require.False(t, result.Valid())
	for _, e := range result.Errors {
		assert.Equal(t, schema.ErrCodeValidation, e.Code)
	}
}

func TestConditionValidator_SemanticErrors(t *testing.T) {
	cv := newValidator(t)

	cond, result := cv.Validate([]byte(`{"textMatchesRegexPatternCondition": {"text": {"objectPathLookupText": "#item/name"}, "regexPattern": "("}}`))
	require.NotNil(t, cond, "semantic errors still return the decoded condition")
	require.Len(t, result.Errors, 2)
	assert.Equal(t, schema.ErrCodePathSyntax, result.Errors[0].Code)
	assert.Equal(t, schema.ErrCodeInvalidPattern, result.Errors[1].Code)
}

func TestConditionValidator_RootAlias(t *testing.T) {
	doc := []byte(`{"integerIsEqualToCondition": {"integer": {"objectPathLookupInteger": "#order/qty"}, "isEqualTo": 1}}`)

	_, result := newValidator(t).Validate(doc)
	assert.False(t, result.Valid())

	_, result = newValidator(t).WithRootAlias("order").Validate(doc)
	assert.True(t, result.Valid(), "%v", result.Errors)
}

func TestConditionValidator_ValidateCondition(t *testing.T) {
	cv := newValidator(t)

	t.Run("single error keeps its code", func(t *testing.T) {
		_, err := cv.ValidateCondition([]byte(`{"objectContainsPropertyCondition": {"object": {}, "propertyName": ""}}`))
		require.Error(t, err)
		assert.True(t, schema.IsCode(err, schema.ErrCodePropertyKeyInvalid))
	})

	t.Run("several errors", func(t *testing.T) {
		_, err := cv.ValidateCondition([]byte(`{"andCondition": [
			{"objectContainsPropertyCondition": {"object": {}, "propertyName": ""}},
			{"textMatchesRegexPatternCondition": {"text": "a", "regexPattern": "["}}
		]}`))
		require.Error(t, err)

		var fe *schema.FilterError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, schema.ErrCodeValidation, fe.Code)
		assert.Equal(t, 2, fe.Details["error_count"])
	})

	t.Run("warnings pass", func(t *testing.T) {
		cond, err := cv.ValidateCondition([]byte(`{"orCondition": []}`))
		require.NoError(t, err)
		assert.NotNil(t, cond)
	})
}

func TestConditionValidator_ValidateDocument(t *testing.T) {
	cv := newValidator(t)
	docSchema := []byte(`{"type": "array", "items": {"type": "object"}}`)

	assert.NoError(t, cv.ValidateDocument([]any{map[string]any{}}, docSchema))
	assert.Error(t, cv.ValidateDocument([]any{1}, docSchema))
}
