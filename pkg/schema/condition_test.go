package schema

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, doc string) *Condition {
	t.Helper()
	cond, err := ParseCondition([]byte(doc))
	require.NoError(t, err)
	return cond
}

// --- Decoding ---

func TestParseCondition_Comparison(t *testing.T) {
	got := mustParse(t, `{"integerIsGreaterThanOrEqualToCondition": {
		"integer": {"objectPathLookupInteger": "#/age"},
		"isGreaterThanOrEqualTo": 9007199254740993}}`)

	want := &Condition{
		Type: ConditionComparison,
		Key:  "integerIsGreaterThanOrEqualToCondition",
		Comparison: &ComparisonCondition{
			Kind:     KindInteger,
			Operator: OpGreaterOrEqual,
			Left:     LookupOperand(KindInteger, "#/age"),
			Right:    LiteralOperand(json.Number("9007199254740993")),
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseCondition mismatch (-want +got):\n%s", diff)
	}
}

func TestParseCondition_Tree(t *testing.T) {
	got := mustParse(t, `{"orCondition": [
		{"notCondition": {"expressionCondition": {"expression": "x > 1"}}},
		{"listConditionCondition": {
			"list": {"objectPathLookupList": "/orders"},
			"itemAlias": "o",
			"matchType": "ALL",
			"condition": {"textMatchesRegexPatternCondition": {"text": {"objectPathLookupText": "#o/sku"}, "regexPattern": "^A"}}
		}},
		{"objectContainsPropertyCondition": {"object": {"objectPathLookupObject": "#"}, "propertyName": "vip"}},
		{"listContainsValueCondition": {"list": ["a", "b"], "value": "a"}}
	]}`)

	want := &Condition{
		Type: ConditionOr,
		Key:  "orCondition",
		Children: []*Condition{
			{
				Type: ConditionNot, Key: "notCondition",
				Child: &Condition{
					Type: ConditionExpression, Key: "expressionCondition",
					Expression: &ExpressionCondition{Engine: "cel", Expression: "x > 1"},
				},
			},
			{
				Type: ConditionList, Key: "listConditionCondition",
				List: &ListCondition{
					List:      LookupOperand(KindList, "/orders"),
					ItemAlias: "o",
					Match:     MatchAll,
					Condition: &Condition{
						Type: ConditionRegexMatch, Key: "textMatchesRegexPatternCondition",
						RegexMatch: &RegexMatchCondition{Text: LookupOperand(KindText, "#o/sku"), Pattern: "^A"},
					},
				},
			},
			{
				Type: ConditionObjectContainsProperty, Key: "objectContainsPropertyCondition",
				ObjectContainsProperty: &ObjectContainsPropertyCondition{
					Object:       LookupOperand(KindObject, "#"),
					PropertyName: "vip",
				},
			},
			{
				Type: ConditionListContainsValue, Key: "listContainsValueCondition",
				ListContainsValue: &ListContainsValueCondition{
					List:  LiteralOperand([]any{"a", "b"}),
					Value: "a",
				},
			},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseCondition mismatch (-want +got):\n%s", diff)
	}
}

func TestParseCondition_LookupRecovery(t *testing.T) {
	got := mustParse(t, `{"dateIsBeforeCondition": {
		"date": {"objectPathLookupDate": {
			"path": "#/due",
			"raiseErrorIfNull": true,
			"valueIfNotFound": "2024-01-01",
			"defaultValue": {"objectPathLookupDate": "/today"}
		}},
		"isBefore": "2025-01-01"}}`)

	notFound := LiteralOperand("2024-01-01")
	fallback := LookupOperand(KindDate, "/today")
	want := &PathLookup{
		Kind:             KindDate,
		Path:             "#/due",
		RaiseErrorIfNull: true,
		ValueIfNotFound:  &notFound,
		DefaultValue:     &fallback,
	}
	if diff := cmp.Diff(want, got.Comparison.Left.Lookup); diff != "" {
		t.Errorf("lookup mismatch (-want +got):\n%s", diff)
	}
	assert.False(t, got.Comparison.Right.IsLookup())
}

func TestParseCondition_ObjectLiteralIsNotALookup(t *testing.T) {
	got := mustParse(t, `{"listContainsValueCondition": {"list": {"objectPathLookupList": "#/tags"}, "value": {"name": "x"}}}`)
	assert.Equal(t, map[string]any{"name": "x"}, got.ListContainsValue.Value)

	got = mustParse(t, `{"objectContainsPropertyCondition": {"object": {"a": 1, "b": 2}, "propertyName": "a"}}`)
	assert.False(t, got.ObjectContainsProperty.Object.IsLookup())
}

func TestParseCondition_Errors(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		location string
	}{
		{"not JSON", `{`, ""},
		{"trailing data", `{"andCondition": []} {}`, ""},
		{"not an object", `[]`, "/"},
		{"two keys", `{"andCondition": [], "orCondition": []}`, "/"},
		{"unknown key", `{"fooCondition": {}}`, "/fooCondition"},
		{"junction body", `{"andCondition": {}}`, "/andCondition"},
		{"nested child", `{"andCondition": [{"notCondition": 1}]}`, "/andCondition/0/notCondition"},
		{"missing operand", `{"integerIsEqualToCondition": {"integer": 1}}`, "/integerIsEqualToCondition"},
		{"unknown property", `{"integerIsEqualToCondition": {"integer": 1, "isEqualTo": 1, "x": 0}}`, "/integerIsEqualToCondition"},
		{"bad alias", `{"listConditionCondition": {"list": [], "itemAlias": "1x", "condition": {"andCondition": []}}}`, "/listConditionCondition/itemAlias"},
		{"bad match type", `{"listConditionCondition": {"list": [], "itemAlias": "x", "matchType": "some", "condition": {"andCondition": []}}}`, "/listConditionCondition/matchType"},
		{"lookup path type", `{"textMatchesRegexPatternCondition": {"text": {"objectPathLookupText": {"path": 1}}, "regexPattern": "x"}}`, "/textMatchesRegexPatternCondition/text/objectPathLookupText/path"},
		{"lookup flag type", `{"textMatchesRegexPatternCondition": {"text": {"objectPathLookupText": {"path": "#", "raiseErrorIfNull": "yes"}}, "regexPattern": "x"}}`, "/textMatchesRegexPatternCondition/text/objectPathLookupText/raiseErrorIfNull"},
		{"empty expression", `{"expressionCondition": {"expression": ""}}`, "/expressionCondition/expression"},
		{"engine type", `{"expressionCondition": {"expression": "x", "engine": 1}}`, "/expressionCondition/engine"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCondition([]byte(tt.doc))
			require.Error(t, err)

			var fe *FilterError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, ErrCodeValidation, fe.Code)
			if tt.location != "" {
				assert.Equal(t, tt.location, fe.Details["location"])
			}
		})
	}
}

// --- Grammar keys ---

func TestComparisonOperandKeys(t *testing.T) {
	left, right, ok := ComparisonOperandKeys("dateTimeIsAfterOrEqualToCondition")
	require.True(t, ok)
	assert.Equal(t, "dateTime", left)
	assert.Equal(t, "isAfterOrEqualTo", right)

	_, _, ok = ComparisonOperandKeys("andCondition")
	assert.False(t, ok)
}

func TestConditionKeys(t *testing.T) {
	keys := ConditionKeys()
	assert.Len(t, keys, 9+5*5)
	assert.IsIncreasing(t, keys)
	assert.Contains(t, keys, "numberIsLessThanOrEqualToCondition")
	assert.Contains(t, keys, "timeIsBeforeCondition")
	assert.NotContains(t, keys, "textIsEqualToCondition")
}

func TestValidAlias(t *testing.T) {
	for _, s := range []string{"o", "_", "item_2", "Order"} {
		assert.True(t, ValidAlias(s), s)
	}
	for _, s := range []string{"", "2x", "a-b", "a.b", "é"} {
		assert.False(t, ValidAlias(s), s)
	}
}
