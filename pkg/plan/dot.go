package plan

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/constracktor/concretor/pkg/errors"
)

// DOTOptions configures DOT export.
type DOTOptions struct {
	// Detailed includes the variant assignment and compiler in node
	// labels. When false, only name@version is shown.
	Detailed bool
}

// ToDOT converts a plan to Graphviz DOT format. The resulting string can
// be rendered with [RenderSVG] or [RenderPNG].
func ToDOT(p *Plan, opts DOTOptions) string {
	var buf bytes.Buffer
	buf.WriteString("digraph concretor {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	roots := make(map[string]bool, len(p.Roots))
	for _, r := range p.Roots {
		roots[r] = true
	}

	for _, n := range p.Nodes {
		attrs := []string{fmt.Sprintf("label=%q", nodeLabel(n, opts.Detailed))}
		if roots[n.Name] {
			attrs = append(attrs, "fillcolor=lightblue")
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", n.Name, strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, e := range p.Edges {
		if e.Condition != "" {
			fmt.Fprintf(&buf, "  %q -> %q [label=%q, style=dashed];\n", e.Parent, e.Child, "when "+e.Condition)
			continue
		}
		fmt.Fprintf(&buf, "  %q -> %q;\n", e.Parent, e.Child)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func nodeLabel(n Node, detailed bool) string {
	if !detailed {
		return n.Name + "@" + n.Version
	}
	return n.Spec
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	return render(ctx, dot, graphviz.SVG)
}

// RenderPNG renders a DOT graph to PNG using Graphviz.
func RenderPNG(ctx context.Context, dot string) ([]byte, error) {
	return render(ctx, dot, graphviz.PNG)
}

func render(ctx context.Context, dot string, format graphviz.Format) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "init graphviz")
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "parse DOT")
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, format, &buf); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "render graph")
	}
	return buf.Bytes(), nil
}
