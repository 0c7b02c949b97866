package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// ValueKind pins the coercion rules applied to an operand.
type ValueKind string

const (
	KindDate     ValueKind = "date"
	KindTime     ValueKind = "time"
	KindDateTime ValueKind = "dateTime"
	KindInteger  ValueKind = "integer"
	KindNumber   ValueKind = "number" // arbitrary-precision decimal
	KindText     ValueKind = "text"
	KindList     ValueKind = "list"
	KindObject   ValueKind = "object"
)

// Operator is a normalized comparison operator.
type Operator string

const (
	OpEqual          Operator = "eq"
	OpGreater        Operator = "gt"
	OpGreaterOrEqual Operator = "gte"
	OpLess           Operator = "lt"
	OpLessOrEqual    Operator = "lte"
)

// MatchMode selects how a list condition aggregates per-item results.
type MatchMode string

const (
	MatchAny MatchMode = "any"
	MatchAll MatchMode = "all"
)

// ConditionType tags the active variant of a Condition.
type ConditionType string

const (
	ConditionComparison             ConditionType = "comparison"
	ConditionAnd                    ConditionType = "and"
	ConditionOr                     ConditionType = "or"
	ConditionXor                    ConditionType = "xor"
	ConditionNot                    ConditionType = "not"
	ConditionList                   ConditionType = "list"
	ConditionObjectContainsProperty ConditionType = "objectContainsProperty"
	ConditionListContainsValue      ConditionType = "listContainsValue"
	ConditionRegexMatch             ConditionType = "regexMatch"
	ConditionExpression             ConditionType = "expression"
)

// Condition is one node of the condition grammar. Exactly one variant field
// is set, selected by Type. Key holds the grammar key it was decoded from.
type Condition struct {
	Type ConditionType
	Key  string

	Comparison             *ComparisonCondition
	Children               []*Condition // and, or, xor
	Child                  *Condition   // not
	List                   *ListCondition
	ObjectContainsProperty *ObjectContainsPropertyCondition
	ListContainsValue      *ListContainsValueCondition
	RegexMatch             *RegexMatchCondition
	Expression             *ExpressionCondition
}

// ComparisonCondition compares two operands of a single value kind.
type ComparisonCondition struct {
	Kind     ValueKind
	Operator Operator
	Left     Operand
	Right    Operand
}

// ListCondition evaluates Condition over the items of List, each bound to ItemAlias.
type ListCondition struct {
	List      Operand
	ItemAlias string
	Match     MatchMode
	Condition *Condition
}

// ObjectContainsPropertyCondition tests a structural object for a key.
type ObjectContainsPropertyCondition struct {
	Object       Operand
	PropertyName string
}

// ListContainsValueCondition tests list membership of a literal.
type ListContainsValueCondition struct {
	List  Operand
	Value any
}

// RegexMatchCondition matches a text operand against Pattern.
type RegexMatchCondition struct {
	Text    Operand
	Pattern string
}

// ExpressionCondition evaluates a boolean expression with one of the
// expression engines (cel, expr, jq).
type ExpressionCondition struct {
	Engine     string
	Expression string
}

// Operand is either a literal JSON value or a path lookup. Numbers in
// literals are kept as json.Number.
type Operand struct {
	Literal any
	Lookup  *PathLookup
}

// IsLookup reports whether the operand reads from the data graph.
func (o Operand) IsLookup() bool { return o.Lookup != nil }

// LiteralOperand wraps v as a literal operand.
func LiteralOperand(v any) Operand { return Operand{Literal: v} }

// LookupOperand builds a path operand without recovery settings.
func LookupOperand(kind ValueKind, path string) Operand {
	return Operand{Lookup: &PathLookup{Kind: kind, Path: path}}
}

// PathLookup reads a value through a pointer path, with per-case recovery.
type PathLookup struct {
	Kind ValueKind
	Path string

	RaiseErrorIfNotFound     bool
	RaiseErrorIfNull         bool
	RaiseErrorIfTypeMismatch bool

	ValueIfNotFound     *Operand
	ValueIfNull         *Operand
	ValueIfTypeMismatch *Operand
	DefaultValue        *Operand
}

// comparisonShape describes one comparison grammar key.
type comparisonShape struct {
	kind     ValueKind
	operator Operator
	leftKey  string
	rightKey string
}

var comparisonKeys = buildComparisonKeys()

var lookupKeys = map[string]ValueKind{
	"objectPathLookupDate":     KindDate,
	"objectPathLookupTime":     KindTime,
	"objectPathLookupDateTime": KindDateTime,
	"objectPathLookupInteger":  KindInteger,
	"objectPathLookupNumber":   KindNumber,
	"objectPathLookupText":     KindText,
	"objectPathLookupList":     KindList,
	"objectPathLookupObject":   KindObject,
}

func buildComparisonKeys() map[string]comparisonShape {
	temporal := map[string]Operator{
		"EqualTo":         OpEqual,
		"After":           OpGreater,
		"AfterOrEqualTo":  OpGreaterOrEqual,
		"Before":          OpLess,
		"BeforeOrEqualTo": OpLessOrEqual,
	}
	numeric := map[string]Operator{
		"EqualTo":              OpEqual,
		"GreaterThan":          OpGreater,
		"GreaterThanOrEqualTo": OpGreaterOrEqual,
		"LessThan":             OpLess,
		"LessThanOrEqualTo":    OpLessOrEqual,
	}
	families := []struct {
		kind ValueKind
		ops  map[string]Operator
	}{
		{KindDate, temporal},
		{KindTime, temporal},
		{KindDateTime, temporal},
		{KindInteger, numeric},
		{KindNumber, numeric},
	}

	keys := make(map[string]comparisonShape)
	for _, f := range families {
		for suffix, op := range f.ops {
			keys[string(f.kind)+"Is"+suffix+"Condition"] = comparisonShape{
				kind:     f.kind,
				operator: op,
				leftKey:  string(f.kind),
				rightKey: "is" + suffix,
			}
		}
	}
	return keys
}

// ComparisonOperandKeys returns the left and right operand keys of a
// comparison grammar key, e.g. "integer" and "isGreaterThan".
func ComparisonOperandKeys(key string) (left, right string, ok bool) {
	shape, ok := comparisonKeys[key]
	if !ok {
		return "", "", false
	}
	return shape.leftKey, shape.rightKey, true
}

// ConditionKeys returns every top-level grammar key, sorted.
func ConditionKeys() []string {
	keys := []string{
		"andCondition", "orCondition", "xorCondition", "notCondition",
		"listConditionCondition", "objectContainsPropertyCondition",
		"listContainsValueCondition", "textMatchesRegexPatternCondition",
		"expressionCondition",
	}
	for k := range comparisonKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ParseCondition decodes a condition document. Numbers are preserved as
// json.Number so 64-bit integers and decimals keep their exact value.
func ParseCondition(data []byte) (*Condition, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, NewError(ErrCodeValidation, "condition is not valid JSON").WithCause(err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, NewError(ErrCodeValidation, "unexpected data after condition document")
	}
	return DecodeCondition(raw)
}

// DecodeCondition builds a Condition from an already decoded JSON value.
func DecodeCondition(raw any) (*Condition, error) {
	return decodeCondition(raw, "")
}

func decodeCondition(raw any, loc string) (*Condition, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, invalidAt(loc, "condition must be an object")
	}
	if len(obj) != 1 {
		return nil, invalidAt(loc, fmt.Sprintf("condition must have exactly one key, got %d", len(obj)))
	}

	var key string
	var body any
	for k, v := range obj {
		key, body = k, v
	}
	at := loc + "/" + key

	if shape, ok := comparisonKeys[key]; ok {
		return decodeComparison(key, shape, body, at)
	}

	switch key {
	case "andCondition", "orCondition", "xorCondition":
		items, ok := body.([]any)
		if !ok {
			return nil, invalidAt(at, "expected an array of conditions")
		}
		children := make([]*Condition, 0, len(items))
		for i, item := range items {
			child, err := decodeCondition(item, at+"/"+strconv.Itoa(i))
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		t := map[string]ConditionType{
			"andCondition": ConditionAnd,
			"orCondition":  ConditionOr,
			"xorCondition": ConditionXor,
		}[key]
		return &Condition{Type: t, Key: key, Children: children}, nil

	case "notCondition":
		child, err := decodeCondition(body, at)
		if err != nil {
			return nil, err
		}
		return &Condition{Type: ConditionNot, Key: key, Child: child}, nil

	case "listConditionCondition":
		return decodeListCondition(key, body, at)

	case "objectContainsPropertyCondition":
		fields, err := fieldsOf(body, at, []string{"object", "propertyName"}, nil)
		if err != nil {
			return nil, err
		}
		object, err := decodeOperand(fields["object"], at+"/object")
		if err != nil {
			return nil, err
		}
		name, ok := fields["propertyName"].(string)
		if !ok {
			return nil, invalidAt(at+"/propertyName", "expected a string")
		}
		return &Condition{Type: ConditionObjectContainsProperty, Key: key,
			ObjectContainsProperty: &ObjectContainsPropertyCondition{Object: object, PropertyName: name}}, nil

	case "listContainsValueCondition":
		fields, err := fieldsOf(body, at, []string{"list", "value"}, nil)
		if err != nil {
			return nil, err
		}
		list, err := decodeOperand(fields["list"], at+"/list")
		if err != nil {
			return nil, err
		}
		return &Condition{Type: ConditionListContainsValue, Key: key,
			ListContainsValue: &ListContainsValueCondition{List: list, Value: fields["value"]}}, nil

	case "textMatchesRegexPatternCondition":
		fields, err := fieldsOf(body, at, []string{"text", "regexPattern"}, nil)
		if err != nil {
			return nil, err
		}
		text, err := decodeOperand(fields["text"], at+"/text")
		if err != nil {
			return nil, err
		}
		pattern, ok := fields["regexPattern"].(string)
		if !ok {
			return nil, invalidAt(at+"/regexPattern", "expected a string")
		}
		return &Condition{Type: ConditionRegexMatch, Key: key,
			RegexMatch: &RegexMatchCondition{Text: text, Pattern: pattern}}, nil

	case "expressionCondition":
		fields, err := fieldsOf(body, at, []string{"expression"}, []string{"engine"})
		if err != nil {
			return nil, err
		}
		expression, ok := fields["expression"].(string)
		if !ok || expression == "" {
			return nil, invalidAt(at+"/expression", "expected a non-empty string")
		}
		engine := "cel"
		if v, present := fields["engine"]; present {
			s, ok := v.(string)
			if !ok {
				return nil, invalidAt(at+"/engine", "expected a string")
			}
			engine = s
		}
		return &Condition{Type: ConditionExpression, Key: key,
			Expression: &ExpressionCondition{Engine: engine, Expression: expression}}, nil
	}

	return nil, invalidAt(at, fmt.Sprintf("unknown condition %q", key))
}

func decodeComparison(key string, shape comparisonShape, body any, at string) (*Condition, error) {
	fields, err := fieldsOf(body, at, []string{shape.leftKey, shape.rightKey}, nil)
	if err != nil {
		return nil, err
	}
	left, err := decodeOperand(fields[shape.leftKey], at+"/"+shape.leftKey)
	if err != nil {
		return nil, err
	}
	right, err := decodeOperand(fields[shape.rightKey], at+"/"+shape.rightKey)
	if err != nil {
		return nil, err
	}
	return &Condition{
		Type: ConditionComparison,
		Key:  key,
		Comparison: &ComparisonCondition{
			Kind:     shape.kind,
			Operator: shape.operator,
			Left:     left,
			Right:    right,
		},
	}, nil
}

func decodeListCondition(key string, body any, at string) (*Condition, error) {
	fields, err := fieldsOf(body, at, []string{"list", "itemAlias", "condition"}, []string{"matchType"})
	if err != nil {
		return nil, err
	}
	list, err := decodeOperand(fields["list"], at+"/list")
	if err != nil {
		return nil, err
	}
	alias, ok := fields["itemAlias"].(string)
	if !ok || !ValidAlias(alias) {
		return nil, invalidAt(at+"/itemAlias", "expected an identifier ([A-Za-z_][A-Za-z0-9_]*)")
	}
	mode := MatchAny
	if v, present := fields["matchType"]; present {
		s, _ := v.(string)
		switch MatchMode(strings.ToLower(s)) {
		case MatchAny:
			mode = MatchAny
		case MatchAll:
			mode = MatchAll
		default:
			return nil, invalidAt(at+"/matchType", `expected "any" or "all"`)
		}
	}
	inner, err := decodeCondition(fields["condition"], at+"/condition")
	if err != nil {
		return nil, err
	}
	return &Condition{Type: ConditionList, Key: key, List: &ListCondition{
		List:      list,
		ItemAlias: alias,
		Match:     mode,
		Condition: inner,
	}}, nil
}

func decodeOperand(raw any, at string) (Operand, error) {
	obj, ok := raw.(map[string]any)
	if !ok || len(obj) != 1 {
		return Operand{Literal: raw}, nil
	}
	for k, v := range obj {
		kind, isLookup := lookupKeys[k]
		if !isLookup {
			return Operand{Literal: raw}, nil
		}
		lookup, err := decodeLookup(kind, v, at+"/"+k)
		if err != nil {
			return Operand{}, err
		}
		return Operand{Lookup: lookup}, nil
	}
	return Operand{Literal: raw}, nil
}

func decodeLookup(kind ValueKind, raw any, at string) (*PathLookup, error) {
	// Shorthand: {"objectPathLookupDate": "#/created"}.
	if path, ok := raw.(string); ok {
		return &PathLookup{Kind: kind, Path: path}, nil
	}

	fields, err := fieldsOf(raw, at, []string{"path"}, []string{
		"raiseErrorIfNotFound", "raiseErrorIfNull", "raiseErrorIfTypeMismatch",
		"valueIfNotFound", "valueIfNull", "valueIfTypeMismatch", "defaultValue",
	})
	if err != nil {
		return nil, err
	}
	path, ok := fields["path"].(string)
	if !ok {
		return nil, invalidAt(at+"/path", "expected a string")
	}
	lookup := &PathLookup{Kind: kind, Path: path}

	flags := map[string]*bool{
		"raiseErrorIfNotFound":     &lookup.RaiseErrorIfNotFound,
		"raiseErrorIfNull":         &lookup.RaiseErrorIfNull,
		"raiseErrorIfTypeMismatch": &lookup.RaiseErrorIfTypeMismatch,
	}
	for name, dst := range flags {
		if v, present := fields[name]; present {
			b, ok := v.(bool)
			if !ok {
				return nil, invalidAt(at+"/"+name, "expected a boolean")
			}
			*dst = b
		}
	}

	substitutes := map[string]**Operand{
		"valueIfNotFound":     &lookup.ValueIfNotFound,
		"valueIfNull":         &lookup.ValueIfNull,
		"valueIfTypeMismatch": &lookup.ValueIfTypeMismatch,
		"defaultValue":        &lookup.DefaultValue,
	}
	for name, dst := range substitutes {
		if v, present := fields[name]; present {
			op, err := decodeOperand(v, at+"/"+name)
			if err != nil {
				return nil, err
			}
			*dst = &op
		}
	}
	return lookup, nil
}

// fieldsOf checks that body is an object with every required key, no keys
// outside required+optional, and returns it.
func fieldsOf(body any, at string, required, optional []string) (map[string]any, error) {
	obj, ok := body.(map[string]any)
	if !ok {
		return nil, invalidAt(at, "expected an object")
	}
	allowed := make(map[string]bool, len(required)+len(optional))
	for _, k := range required {
		if _, ok := obj[k]; !ok {
			return nil, invalidAt(at, fmt.Sprintf("missing required property %q", k))
		}
		allowed[k] = true
	}
	for _, k := range optional {
		allowed[k] = true
	}
	for k := range obj {
		if !allowed[k] {
			return nil, invalidAt(at, fmt.Sprintf("unknown property %q", k))
		}
	}
	return obj, nil
}

// ValidAlias reports whether s can be used as a list item alias.
func ValidAlias(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

func invalidAt(loc, msg string) *FilterError {
	if loc == "" {
		loc = "/"
	}
	return NewError(ErrCodeValidation, msg).WithDetails(map[string]any{"location": loc})
}
