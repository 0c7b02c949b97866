package predicate

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/opfilter/pkg/schema"
)

// --- Comparison kinds ---

func TestComparison_Date(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want bool
	}{
		{"date equals any time on the same date",
			`{"dateIsEqualToCondition": {"date": "2023-08-02", "isEqualTo": "2023-08-02T08:00:00Z"}}`, true},
		{"after previous day",
			`{"dateIsAfterCondition": {"date": "2023-08-02", "isAfter": "2023-08-01T08:00:00Z"}}`, true},
		{"not before previous day",
			`{"dateIsBeforeCondition": {"date": "2023-08-02", "isBefore": "2023-08-01T08:00:00Z"}}`, false},
		{"after or equal same day",
			`{"dateIsAfterOrEqualToCondition": {"date": "2023-08-02T23:00:00Z", "isAfterOrEqualTo": "2023-08-02"}}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mustEval(t, tt.doc, nil))
		})
	}
}

func TestComparison_DateTimeAndTime(t *testing.T) {
	assert.True(t, mustEval(t,
		`{"dateTimeIsAfterCondition": {"dateTime": "2023-08-02T08:00:00Z", "isAfter": "2023-08-02"}}`, nil))
	assert.True(t, mustEval(t,
		`{"dateTimeIsEqualToCondition": {"dateTime": "2023-08-02T10:00:00+02:00", "isEqualTo": "2023-08-02T08:00:00Z"}}`, nil))
	assert.True(t, mustEval(t,
		`{"timeIsBeforeCondition": {"time": "08:00", "isBefore": "08:00:01"}}`, nil))
	assert.True(t, mustEval(t,
		`{"timeIsEqualToCondition": {"time": "10:00+02:00", "isEqualTo": "08:00:00Z"}}`, nil))
}

func TestComparison_AfterIsNotBeforeOrEqual(t *testing.T) {
	samples := []string{"2023-08-01", "2023-08-02", "2023-08-02T08:00:00Z", "2023-08-03T01:00:00+05:00"}
	for _, kind := range []string{"date", "dateTime"} {
		for _, a := range samples {
			for _, b := range samples {
				after := mustEval(t, fmt.Sprintf(`{"%sIsAfterCondition": {"%s": %q, "isAfter": %q}}`, kind, kind, a, b), nil)
				beforeEq := mustEval(t, fmt.Sprintf(`{"%sIsBeforeOrEqualToCondition": {"%s": %q, "isBeforeOrEqualTo": %q}}`, kind, kind, a, b), nil)
				assert.Equal(t, after, !beforeEq, "%s %s %s", kind, a, b)

				eq := mustEval(t, fmt.Sprintf(`{"%sIsEqualToCondition": {"%s": %q, "isEqualTo": %q}}`, kind, kind, a, b), nil)
				rev := mustEval(t, fmt.Sprintf(`{"%sIsEqualToCondition": {"%s": %q, "isEqualTo": %q}}`, kind, kind, b, a), nil)
				assert.Equal(t, eq, rev, "equality is symmetric for %s %s", a, b)
			}
		}
	}
}

func TestComparison_IntegerExtremes(t *testing.T) {
	assert.True(t, mustEval(t, `{"integerIsGreaterThanOrEqualToCondition": {
		"integer": -9223372036854775808, "isGreaterThanOrEqualTo": -9223372036854775808}}`, nil))
	assert.False(t, mustEval(t, `{"integerIsLessThanCondition": {
		"integer": 9223372036854775807, "isLessThan": 9223372036854775807}}`, nil))
}

func TestComparison_NumberDecimals(t *testing.T) {
	assert.True(t, mustEval(t, `{"numberIsGreaterThanOrEqualToCondition": {"number": -8, "isGreaterThanOrEqualTo": -8.0}}`, nil))
	assert.True(t, mustEval(t, `{"numberIsEqualToCondition": {"number": 0, "isEqualTo": 0}}`, nil))
	assert.True(t, mustEval(t, `{"numberIsEqualToCondition": {"number": 0, "isEqualTo": 0.0}}`, nil))
	assert.True(t, mustEval(t, `{"numberIsLessThanCondition": {"number": 0.1, "isLessThan": 0.10000000000000000001}}`, nil))
}

func TestComparison_PathAgainstItem(t *testing.T) {
	doc := `{"integerIsGreaterThanCondition": {"integer": {"objectPathLookupInteger": "#/value"}, "isGreaterThan": 3}}`
	match := compile(t, doc, nil)

	for v, want := range map[int]bool{2: false, 3: false, 4: true} {
		ok, err := match(t.Context(), map[string]any{"value": v})
		require.NoError(t, err)
		assert.Equal(t, want, ok, "value %d", v)
	}
}

func TestComparison_ContextRootPath(t *testing.T) {
	doc := `{"integerIsLessThanOrEqualToCondition": {
		"integer": {"objectPathLookupInteger": "#/value"},
		"isLessThanOrEqualTo": {"objectPathLookupInteger": "/limits/max"}}}`
	match := compile(t, doc, decode(t, `{"limits": {"max": 10}}`))

	ok, err := match(t.Context(), map[string]any{"value": 10})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = match(t.Context(), map[string]any{"value": 11})
	require.NoError(t, err)
	assert.False(t, ok)
}

// --- Build-time checks ---

func TestBuild_LiteralMustMatchKind(t *testing.T) {
	tests := []string{
		`{"integerIsEqualToCondition": {"integer": 1.5, "isEqualTo": 1}}`,
		`{"integerIsEqualToCondition": {"integer": "1", "isEqualTo": 1}}`,
		`{"dateIsEqualToCondition": {"date": "yesterday", "isEqualTo": "2023-08-02"}}`,
		`{"numberIsEqualToCondition": {"number": null, "isEqualTo": 1}}`,
		`{"timeIsEqualToCondition": {"time": "2023-08-02", "isEqualTo": "08:00"}}`,
	}
	for _, doc := range tests {
		_, err := Build(parse(t, doc), Dependencies{})
		require.Error(t, err, doc)
		assert.True(t, schema.IsCode(err, schema.ErrCodeTypeMismatch), doc)
	}
}

func TestBuild_LookupKindMustMatch(t *testing.T) {
	doc := `{"integerIsEqualToCondition": {"integer": {"objectPathLookupText": "#/v"}, "isEqualTo": 1}}`
	_, err := Build(parse(t, doc), Dependencies{})
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeTypeMismatch))
}

func TestBuild_PathSyntax(t *testing.T) {
	for _, path := range []string{"value", "#/a~2b", "#1bad/x", ""} {
		doc := fmt.Sprintf(`{"integerIsEqualToCondition": {"integer": {"objectPathLookupInteger": %q}, "isEqualTo": 1}}`, path)
		_, err := Build(parse(t, doc), Dependencies{})
		require.Error(t, err, path)

		var fe *schema.FilterError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, schema.ErrCodePathSyntax, fe.Code, path)
		assert.Equal(t, "integerIsEqualToCondition", fe.SchemaKey)
	}
}

func TestResolve_UnknownAlias(t *testing.T) {
	doc := `{"integerIsEqualToCondition": {"integer": {"objectPathLookupInteger": "#parent/v"}, "isEqualTo": 1}}`
	_, err := Compile[any](t.Context(), build(t, doc), nil)
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodePathSyntax))
}

// --- Determinism ---

func TestComparison_Deterministic(t *testing.T) {
	doc := `{"numberIsGreaterThanCondition": {"number": {"objectPathLookupNumber": "#/n"}, "isGreaterThan": 2.5}}`
	items := []any{
		map[string]any{"n": 1}, map[string]any{"n": 2.5}, map[string]any{"n": 2.51}, map[string]any{"n": 100},
	}

	var first []bool
	for range 5 {
		match := compile(t, doc, nil)
		var got []bool
		for _, item := range items {
			ok, err := match(t.Context(), item)
			require.NoError(t, err)
			got = append(got, ok)
		}
		if first == nil {
			first = got
			continue
		}
		assert.Equal(t, first, got)
	}
	assert.Equal(t, []bool{false, false, true, true}, first)
}
