package diagram

import (
	"fmt"
	"strings"
)

// statusTag returns a short ASCII indicator for an overlay status.
func statusTag(status string) string {
	switch status {
	case StatusTrue:
		return "[T]"
	case StatusFalse:
		return "[F]"
	case StatusError:
		return "[ERR]"
	default:
		return ""
	}
}

// RenderASCII renders a DiagramModel as an indented tree drawn with
// box-drawing characters. Failed nodes list their error below the tree.
func RenderASCII(model *DiagramModel) string {
	var b strings.Builder

	if model.Title != "" {
		fmt.Fprintf(&b, "=== %s ===\n\n", model.Title)
	}
	if len(model.Nodes) == 0 {
		return b.String()
	}

	root := model.Nodes[0]
	b.WriteString(nodeLine(root))
	b.WriteByte('\n')
	renderChildren(&b, model, root.ID, "")

	var failures []*Node
	for _, node := range model.Nodes {
		if node.Status != nil && node.Status.Status == StatusError {
			failures = append(failures, node)
		}
	}
	if len(failures) > 0 {
		b.WriteString("\n--- errors ---\n")
		for _, node := range failures {
			fmt.Fprintf(&b, "  %s: %s\n", node.ID, node.Status.Error)
		}
	}

	return b.String()
}

func renderChildren(b *strings.Builder, model *DiagramModel, id, prefix string) {
	children := model.Children(id)
	for i, child := range children {
		branch, next := "├── ", "│   "
		if i == len(children)-1 {
			branch, next = "└── ", "    "
		}
		b.WriteString(prefix + branch)
		if label := model.edgeLabel(child.ID); label != "" {
			fmt.Fprintf(b, "(%s) ", label)
		}
		b.WriteString(nodeLine(child))
		b.WriteByte('\n')
		renderChildren(b, model, child.ID, prefix+next)
	}
}

func nodeLine(node *Node) string {
	line := node.Label
	if node.Status != nil {
		if tag := statusTag(node.Status.Status); tag != "" {
			line += " " + tag
		}
	}
	return line
}
