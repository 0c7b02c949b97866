package diagram

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
)

// Image formats accepted by RenderImage.
const (
	FormatPNG = "png"
	FormatSVG = "svg"
)

var imageFormats = map[string]graphviz.Format{
	FormatPNG: graphviz.PNG,
	FormatSVG: graphviz.SVG,
}

var kindShapes = map[NodeKind]cgraph.Shape{
	NodeKindJunction:   cgraph.DiamondShape,
	NodeKindNot:        cgraph.HexagonShape,
	NodeKindExpression: cgraph.EllipseShape,
}

type fill struct{ background, font string }

var statusFills = map[string]fill{
	StatusTrue:  {"#2d6a2d", "white"},
	StatusFalse: {"#d3d3d3", "black"},
	StatusError: {"#8b1a1a", "white"},
}

// RenderImage lays the model out top-down with graphviz and renders it in
// format (png or svg).
func RenderImage(ctx context.Context, model *DiagramModel, format string) ([]byte, error) {
	gvFormat, ok := imageFormats[format]
	if !ok {
		return nil, fmt.Errorf("diagram: unsupported image format %q", format)
	}

	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("diagram: create graphviz: %w", err)
	}
	defer gv.Close()
	gv.SetLayout(graphviz.DOT)

	graph, err := gv.Graph()
	if err != nil {
		return nil, fmt.Errorf("diagram: create graph: %w", err)
	}
	defer graph.Close()

	if err := populate(graph, model); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := gv.Render(ctx, graph, gvFormat, &buf); err != nil {
		return nil, fmt.Errorf("diagram: render %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

func populate(graph *cgraph.Graph, model *DiagramModel) error {
	graph.SetRankDir(cgraph.TBRank)
	if model.Title != "" {
		graph.SetLabel(model.Title)
	}

	byID := make(map[string]*cgraph.Node, len(model.Nodes))
	for _, node := range model.Nodes {
		n, err := graph.CreateNodeByName(node.ID)
		if err != nil {
			return fmt.Errorf("diagram: create node %s: %w", node.ID, err)
		}
		n.SetLabel(node.Label)
		styleNode(n, node)
		byID[node.ID] = n
	}

	for _, edge := range model.Edges {
		from, to := byID[edge.From], byID[edge.To]
		if from == nil || to == nil {
			return fmt.Errorf("diagram: edge %s->%s references an unknown node", edge.From, edge.To)
		}
		e, err := graph.CreateEdgeByName("", from, to)
		if err != nil {
			return fmt.Errorf("diagram: create edge %s->%s: %w", edge.From, edge.To, err)
		}
		if edge.Label != "" {
			e.SetLabel(edge.Label)
		}
	}
	return nil
}

// styleNode picks the shape from the node kind and the fill from its overlay.
// List conditions are dashed boxes.
func styleNode(n *cgraph.Node, node *Node) {
	shape, ok := kindShapes[node.Kind]
	if !ok {
		shape = cgraph.BoxShape
	}
	n.SetShape(shape)
	if node.Kind == NodeKindList {
		n.SetStyle(cgraph.DashedNodeStyle)
	}

	if node.Status == nil {
		return
	}
	if f, ok := statusFills[node.Status.Status]; ok {
		n.SetStyle(cgraph.FilledNodeStyle)
		n.SetFillColor(f.background)
		n.SetFontColor(f.font)
	}
}
