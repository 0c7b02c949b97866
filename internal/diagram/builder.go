package diagram

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rendis/opfilter/pkg/schema"
)

// maxLabel caps the rune length of node labels.
const maxLabel = 60

// Build converts a condition tree to a DiagramModel.
func Build(cond *schema.Condition, title string) (*DiagramModel, error) {
	if cond == nil {
		return nil, fmt.Errorf("diagram: nil condition")
	}
	b := &builder{model: &DiagramModel{Title: title}}
	if err := b.add(cond, "", 0); err != nil {
		return nil, err
	}
	return b.model, nil
}

type builder struct {
	model *DiagramModel
}

func (b *builder) add(cond *schema.Condition, scope string, depth int) error {
	if cond == nil {
		return fmt.Errorf("diagram: nil condition at depth %d", depth)
	}
	node := &Node{
		ID:        fmt.Sprintf("n%d", len(b.model.Nodes)),
		Kind:      kindOf(cond.Type),
		Depth:     depth,
		Condition: cond,
		Scope:     scope,
	}
	label, err := nodeLabel(cond)
	if err != nil {
		return err
	}
	node.Label = truncate(label)
	b.model.Nodes = append(b.model.Nodes, node)
	for len(b.model.Levels) <= depth {
		b.model.Levels = append(b.model.Levels, nil)
	}
	b.model.Levels[depth] = append(b.model.Levels[depth], node.ID)

	child := func(c *schema.Condition, childScope, edge string) error {
		id := fmt.Sprintf("n%d", len(b.model.Nodes))
		b.model.Edges = append(b.model.Edges, Edge{From: node.ID, To: id, Label: edge})
		return b.add(c, childScope, depth+1)
	}

	switch cond.Type {
	case schema.ConditionAnd, schema.ConditionOr, schema.ConditionXor:
		for _, c := range cond.Children {
			if err := child(c, scope, ""); err != nil {
				return err
			}
		}
	case schema.ConditionNot:
		return child(cond.Child, scope, "")
	case schema.ConditionList:
		return child(cond.List.Condition, cond.List.ItemAlias, "each #"+cond.List.ItemAlias)
	}
	return nil
}

func kindOf(t schema.ConditionType) NodeKind {
	switch t {
	case schema.ConditionAnd, schema.ConditionOr, schema.ConditionXor:
		return NodeKindJunction
	case schema.ConditionNot:
		return NodeKindNot
	case schema.ConditionList:
		return NodeKindList
	case schema.ConditionComparison:
		return NodeKindComparison
	case schema.ConditionRegexMatch:
		return NodeKindRegex
	case schema.ConditionExpression:
		return NodeKindExpression
	default:
		return NodeKindStructural
	}
}

var operatorSymbols = map[schema.Operator]string{
	schema.OpEqual:          "==",
	schema.OpGreater:        ">",
	schema.OpGreaterOrEqual: ">=",
	schema.OpLess:           "<",
	schema.OpLessOrEqual:    "<=",
}

// nodeLabel creates a human-readable label for a condition.
func nodeLabel(cond *schema.Condition) (string, error) {
	switch cond.Type {
	case schema.ConditionAnd, schema.ConditionOr, schema.ConditionXor:
		return strings.ToUpper(string(cond.Type)), nil
	case schema.ConditionNot:
		return "NOT", nil
	}

	malformed := fmt.Errorf("diagram: %s condition %q has no body", cond.Type, cond.Key)
	switch cond.Type {
	case schema.ConditionComparison:
		c := cond.Comparison
		if c == nil {
			return "", malformed
		}
		return fmt.Sprintf("%s %s %s %s", c.Kind, operandLabel(c.Left), operatorSymbols[c.Operator], operandLabel(c.Right)), nil
	case schema.ConditionList:
		l := cond.List
		if l == nil {
			return "", malformed
		}
		return fmt.Sprintf("%s of %s as #%s", l.Match, operandLabel(l.List), l.ItemAlias), nil
	case schema.ConditionObjectContainsProperty:
		o := cond.ObjectContainsProperty
		if o == nil {
			return "", malformed
		}
		return fmt.Sprintf("%s has %q", operandLabel(o.Object), o.PropertyName), nil
	case schema.ConditionListContainsValue:
		l := cond.ListContainsValue
		if l == nil {
			return "", malformed
		}
		return fmt.Sprintf("%s contains %s", operandLabel(l.List), schema.Snapshot(l.Value, 0)), nil
	case schema.ConditionRegexMatch:
		r := cond.RegexMatch
		if r == nil {
			return "", malformed
		}
		return fmt.Sprintf("%s =~ /%s/", operandLabel(r.Text), r.Pattern), nil
	case schema.ConditionExpression:
		e := cond.Expression
		if e == nil {
			return "", malformed
		}
		return fmt.Sprintf("%s: %s", e.Engine, e.Expression), nil
	}
	return "", fmt.Errorf("diagram: unknown condition type %q", cond.Type)
}

// operandLabel shows a lookup by its path and a literal as JSON.
func operandLabel(op schema.Operand) string {
	if op.Lookup != nil {
		return op.Lookup.Path
	}
	return schema.Snapshot(op.Literal, 0)
}

func truncate(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= maxLabel {
		return s
	}
	return string([]rune(s)[:maxLabel-3]) + "..."
}

// Overlay evaluates every root-scope node with eval and records the
// outcome. Nodes under a list condition depend on the bound item and keep a
// nil Status.
func Overlay(model *DiagramModel, eval func(*schema.Condition) (bool, error)) {
	for _, node := range model.Nodes {
		if node.Scope != "" {
			continue
		}
		ok, err := eval(node.Condition)
		switch {
		case err != nil:
			node.Status = &StatusOverlay{Status: StatusError, Error: err.Error()}
		case ok:
			node.Status = &StatusOverlay{Status: StatusTrue}
		default:
			node.Status = &StatusOverlay{Status: StatusFalse}
		}
	}
}
