// Package render turns dependency graphs into Graphviz artifacts for
// the graph endpoint.
package render

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/crateintel/pkg/docsource"
)

// ToDOT converts a crate's dependency graph to Graphviz DOT format. The
// crate itself is the root node; dev dependencies are dashed, build
// dependencies dotted, and optional dependencies grey.
func ToDOT(crate string, g *docsource.DependencyGraph) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	fmt.Fprintf(&buf, "  %q [fillcolor=lightblue];\n", crate)
	if g != nil {
		for _, d := range g.Entries {
			label := d.Name
			if d.Req != "" {
				label = fmt.Sprintf("%s\n%s", d.Name, d.Req)
			}
			attrs := []string{fmt.Sprintf("label=%q", label)}
			if d.Optional {
				attrs = append(attrs, "fillcolor=lightgrey")
			}
			fmt.Fprintf(&buf, "  %q [%s];\n", d.Name, strings.Join(attrs, ", "))
		}

		buf.WriteString("\n")
		for _, d := range g.Entries {
			switch d.Kind {
			case docsource.KindDev:
				fmt.Fprintf(&buf, "  %q -> %q [style=dashed];\n", crate, d.Name)
			case docsource.KindBuild:
				fmt.Fprintf(&buf, "  %q -> %q [style=dotted];\n", crate, d.Name)
			default:
				fmt.Fprintf(&buf, "  %q -> %q;\n", crate, d.Name)
			}
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(dot string) ([]byte, error) {
	ctx := context.Background()
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox rewrites the SVG root tag so the graph scales cleanly
// when embedded.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}
