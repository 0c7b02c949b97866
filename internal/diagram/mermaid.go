package diagram

import (
	"fmt"
	"strings"
)

// RenderMermaid renders a DiagramModel as a Mermaid flowchart string.
func RenderMermaid(model *DiagramModel) string {
	var b strings.Builder

	b.WriteString("graph TD\n")

	if model.Title != "" {
		fmt.Fprintf(&b, "    %%%% %s\n", model.Title)
	}

	for _, node := range model.Nodes {
		fmt.Fprintf(&b, "    %s\n", mermaidNodeDef(node))
	}

	for _, edge := range model.Edges {
		label := ""
		if edge.Label != "" {
			label = fmt.Sprintf("|%s|", mermaidEscapeLabel(edge.Label))
		}
		fmt.Fprintf(&b, "    %s -->%s %s\n", edge.From, label, edge.To)
	}

	b.WriteString("\n")
	b.WriteString("    classDef matched fill:#2d6a2d,stroke:#1a4a1a,color:#fff\n")
	b.WriteString("    classDef unmatched fill:#6b6b6b,stroke:#4a4a4a,color:#fff\n")
	b.WriteString("    classDef failed fill:#8b1a1a,stroke:#5c0e0e,color:#fff\n")

	for _, node := range model.Nodes {
		if node.Status == nil {
			continue
		}
		if cls := mermaidStatusClass(node.Status.Status); cls != "" {
			fmt.Fprintf(&b, "    class %s %s\n", node.ID, cls)
		}
	}

	return b.String()
}

// mermaidNodeDef returns a Mermaid node definition with the appropriate shape.
func mermaidNodeDef(node *Node) string {
	label := mermaidEscapeLabel(node.Label)

	switch node.Kind {
	case NodeKindJunction:
		return fmt.Sprintf(`%s{"%s"}`, node.ID, label)
	case NodeKindNot:
		return fmt.Sprintf(`%s{{"%s"}}`, node.ID, label)
	case NodeKindList:
		return fmt.Sprintf(`%s[["%s"]]`, node.ID, label)
	case NodeKindExpression:
		return fmt.Sprintf(`%s(["%s"])`, node.ID, label)
	default:
		return fmt.Sprintf(`%s["%s"]`, node.ID, label)
	}
}

var mermaidEscaper = strings.NewReplacer(
	`"`, "#quot;",
	"<", "#lt;",
	">", "#gt;",
	"|", "#124;",
)

// mermaidEscapeLabel escapes characters that end a quoted Mermaid label.
func mermaidEscapeLabel(s string) string {
	return mermaidEscaper.Replace(s)
}

// mermaidStatusClass maps an overlay status to a Mermaid class name.
func mermaidStatusClass(status string) string {
	switch status {
	case StatusTrue:
		return "matched"
	case StatusFalse:
		return "unmatched"
	case StatusError:
		return "failed"
	default:
		return ""
	}
}
