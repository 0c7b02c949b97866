package validation

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"

	"github.com/rendis/opfilter/internal/expressions"
	"github.com/rendis/opfilter/internal/graph"
	"github.com/rendis/opfilter/internal/predicate"
	"github.com/rendis/opfilter/internal/values"
	"github.com/rendis/opfilter/pkg/schema"
)

// MaxConditionDepth bounds condition nesting.
const MaxConditionDepth = 64

// semanticChecker walks a decoded condition tree. Checks: path syntax and
// alias resolution, lookup kinds against their slots, literal coercion,
// regex compilation, property names, expression engines and compilation,
// nesting depth and alias shadowing.
type semanticChecker struct {
	engines *expressions.Registry
	result  *schema.ValidationResult
	aliases []string
}

// validateSemantic performs semantic analysis on a decoded condition. A nil
// registry skips expression checks.
func validateSemantic(cond *schema.Condition, rootAlias string, engines *expressions.Registry) *schema.ValidationResult {
	c := &semanticChecker{
		engines: engines,
		result:  &schema.ValidationResult{},
		aliases: []string{rootAlias},
	}
	c.condition(cond, "", 1)
	return c.result
}

func (c *semanticChecker) condition(cond *schema.Condition, loc string, depth int) {
	if cond == nil {
		c.result.AddError(at(loc), schema.ErrCodeValidation, "condition is missing")
		return
	}
	if depth > MaxConditionDepth {
		c.result.AddError(at(loc), schema.ErrCodeValidation,
			fmt.Sprintf("condition nesting exceeds %d levels", MaxConditionDepth))
		return
	}
	loc += "/" + cond.Key

	switch cond.Type {
	case schema.ConditionComparison:
		cmp := cond.Comparison
		leftKey, rightKey, _ := schema.ComparisonOperandKeys(cond.Key)
		c.operand(cmp.Left, cmp.Kind, loc+"/"+leftKey, true)
		c.operand(cmp.Right, cmp.Kind, loc+"/"+rightKey, true)

	case schema.ConditionAnd, schema.ConditionOr, schema.ConditionXor:
		if len(cond.Children) == 0 && cond.Type != schema.ConditionAnd {
			c.result.AddWarning(at(loc), schema.ErrCodeValidation,
				fmt.Sprintf("empty %s is always false", cond.Key))
		}
		for i, child := range cond.Children {
			c.condition(child, loc+"/"+strconv.Itoa(i), depth+1)
		}

	case schema.ConditionNot:
		c.condition(cond.Child, loc, depth+1)

	case schema.ConditionList:
		lc := cond.List
		c.operand(lc.List, schema.KindList, loc+"/list", false)
		if slices.Contains(c.aliases, lc.ItemAlias) {
			c.result.AddWarning(loc+"/itemAlias", schema.ErrCodeValidation,
				fmt.Sprintf("alias %q shadows an enclosing scope", lc.ItemAlias))
		}
		c.aliases = append(c.aliases, lc.ItemAlias)
		c.condition(lc.Condition, loc+"/condition", depth+1)
		c.aliases = c.aliases[:len(c.aliases)-1]

	case schema.ConditionObjectContainsProperty:
		oc := cond.ObjectContainsProperty
		c.operand(oc.Object, schema.KindObject, loc+"/object", false)
		if err := predicate.CheckPropertyName(oc.PropertyName); err != nil {
			c.result.AddError(loc+"/propertyName", err.Code, err.Message)
		}

	case schema.ConditionListContainsValue:
		c.operand(cond.ListContainsValue.List, schema.KindList, loc+"/list", false)

	case schema.ConditionRegexMatch:
		rm := cond.RegexMatch
		c.operand(rm.Text, schema.KindText, loc+"/text", false)
		if _, err := regexp.Compile(rm.Pattern); err != nil {
			c.result.AddError(loc+"/regexPattern", schema.ErrCodeInvalidPattern,
				fmt.Sprintf("invalid pattern %q: %s", rm.Pattern, err.Error()))
		}

	case schema.ConditionExpression:
		c.expression(cond.Expression, loc)

	default:
		c.result.AddError(at(loc), schema.ErrCodeValidation,
			fmt.Sprintf("unsupported condition type %q", cond.Type))
	}
}

// operand checks a lookup or literal against the kind of its slot. Strict
// slots reject literals that do not coerce; other slots coerce at
// evaluation time, so a bad literal there is only a warning.
func (c *semanticChecker) operand(op schema.Operand, kind schema.ValueKind, loc string, strict bool) {
	if !op.IsLookup() {
		if _, ok := values.Coerce(kind, op.Literal); ok {
			return
		}
		msg := fmt.Sprintf("literal %s is not a valid %s", values.KindOf(op.Literal), kind)
		if strict {
			c.result.AddError(loc, schema.ErrCodeTypeMismatch, msg)
		} else {
			c.result.AddWarning(loc, schema.ErrCodeTypeMismatch, msg+"; evaluation will fail")
		}
		return
	}

	pl := op.Lookup
	loc += "/objectPathLookup" + upperFirst(string(pl.Kind))
	if pl.Kind != kind {
		c.result.AddError(loc, schema.ErrCodeTypeMismatch,
			fmt.Sprintf("lookup of kind %s used where %s is expected", pl.Kind, kind))
	}
	c.path(pl.Path, loc)

	subs := []struct {
		name string
		op   *schema.Operand
	}{
		{"valueIfNotFound", pl.ValueIfNotFound},
		{"valueIfNull", pl.ValueIfNull},
		{"valueIfTypeMismatch", pl.ValueIfTypeMismatch},
		{"defaultValue", pl.DefaultValue},
	}
	for _, s := range subs {
		if s.op == nil || (!s.op.IsLookup() && s.op.Literal == nil) {
			continue
		}
		c.operand(*s.op, pl.Kind, loc+"/"+s.name, true)
	}
}

func (c *semanticChecker) path(raw, loc string) {
	p, err := graph.ParsePath(raw)
	if err != nil {
		code := schema.CodeOf(err)
		if code == "" {
			code = schema.ErrCodePathSyntax
		}
		c.result.AddError(loc, code, fmt.Sprintf("invalid path %q: %s", raw, messageOf(err)))
		return
	}
	if p.Anchor == graph.AnchorAlias && !slices.Contains(c.aliases, p.Alias) {
		c.result.AddError(loc, schema.ErrCodePathSyntax,
			fmt.Sprintf("path %q references unknown scope alias %q", raw, p.Alias))
	}
}

func (c *semanticChecker) expression(ec *schema.ExpressionCondition, loc string) {
	if c.engines == nil {
		return
	}
	if !c.engines.Has(ec.Engine) {
		c.result.AddError(loc+"/engine", schema.ErrCodeValidation,
			fmt.Sprintf("unknown expression engine %q (available: %v)", ec.Engine, c.engines.Names()))
		return
	}
	engine, err := c.engines.Get(ec.Engine)
	if err != nil {
		c.result.AddError(loc+"/engine", schema.ErrCodeValidation, messageOf(err))
		return
	}
	if _, err := engine.Compile(ec.Expression); err != nil {
		c.result.AddError(loc+"/expression", schema.ErrCodeValidation, messageOf(err))
	}
}

func messageOf(err error) string {
	if fe, ok := err.(*schema.FilterError); ok {
		return fe.Message
	}
	return err.Error()
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}

func at(loc string) string {
	if loc == "" {
		return "/"
	}
	return loc
}
