// Package diagram renders condition trees as Mermaid flowcharts, indented
// text trees and graphviz images, optionally annotated with the result of
// evaluating each node against a sample item.
package diagram

import "github.com/rendis/opfilter/pkg/schema"

// NodeKind classifies a diagram node by its condition variant.
type NodeKind string

const (
	NodeKindJunction   NodeKind = "junction" // and, or, xor
	NodeKindNot        NodeKind = "not"
	NodeKindList       NodeKind = "list"
	NodeKindComparison NodeKind = "comparison"
	NodeKindStructural NodeKind = "structural" // property and membership tests
	NodeKindRegex      NodeKind = "regex"
	NodeKindExpression NodeKind = "expression"
)

// Overlay results.
const (
	StatusTrue  = "true"
	StatusFalse = "false"
	StatusError = "error"
)

// DiagramModel is the intermediate representation used by all renderers.
// Nodes are in pre-order, so Nodes[0] is the root.
type DiagramModel struct {
	Title  string
	Nodes  []*Node
	Edges  []Edge
	Levels [][]string
}

// Node represents one condition.
type Node struct {
	ID        string
	Label     string
	Kind      NodeKind
	Depth     int
	Condition *schema.Condition
	// Scope is the item alias the node is evaluated under, "" at the root.
	Scope  string
	Status *StatusOverlay
}

// StatusOverlay carries the evaluation result of a node.
type StatusOverlay struct {
	Status string
	Error  string
}

// Edge links a condition to an operand condition.
type Edge struct {
	From  string
	To    string
	Label string
}

// Node returns the node with the given id, or nil.
func (m *DiagramModel) Node(id string) *Node {
	for _, n := range m.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// Children returns the direct children of id in edge order.
func (m *DiagramModel) Children(id string) []*Node {
	var out []*Node
	for _, e := range m.Edges {
		if e.From == id {
			if n := m.Node(e.To); n != nil {
				out = append(out, n)
			}
		}
	}
	return out
}

// edgeLabel returns the label of the edge into id.
func (m *DiagramModel) edgeLabel(id string) string {
	for _, e := range m.Edges {
		if e.To == id {
			return e.Label
		}
	}
	return ""
}
