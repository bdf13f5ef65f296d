package render

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/deptree/pkg/deps"
)

// Options configures diagram generation.
type Options struct {
	// Detailed adds depth, size and deprecation notes to node labels.
	// When false, only the "name@version" key is shown.
	Detailed bool
}

// ToDOT converts a resolved tree to Graphviz DOT format. Nodes are emitted
// in key order and edges in (parent, child) order, so equal trees produce
// byte-identical output.
func ToDOT(tree deps.Tree, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	keys := tree.Keys()
	for _, k := range keys {
		p := tree[k]
		attrs := fmtAttrs(p, fmtLabel(p, opts.Detailed))
		fmt.Fprintf(&buf, "  %q [%s];\n", k, strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, e := range edges(tree) {
		fmt.Fprintf(&buf, "  %q -> %q;\n", e[0], e[1])
	}

	buf.WriteString("}\n")
	return buf.String()
}

// edges returns the discovery edges of the tree, sorted. A package's parent
// is the second-to-last element of its path; parents that are missing from
// the tree are skipped.
func edges(tree deps.Tree) [][2]string {
	var out [][2]string
	for k, p := range tree {
		if len(p.Path) < 2 {
			continue
		}
		parent := p.Path[len(p.Path)-2]
		if _, ok := tree[parent]; !ok {
			continue
		}
		out = append(out, [2]string{parent, k})
	}
	slices.SortFunc(out, func(a, b [2]string) int {
		if c := strings.Compare(a[0], b[0]); c != 0 {
			return c
		}
		return strings.Compare(a[1], b[1])
	})
	return out
}

func fmtLabel(p *deps.ResolvedPackage, detailed bool) string {
	label := p.Key()
	if !detailed {
		return label
	}

	var parts []string
	if p.Depth != "" {
		parts = append(parts, "depth: "+string(p.Depth))
	}
	parts = append(parts, "size: "+FormatSize(p.Size))
	if p.Optional {
		parts = append(parts, "optional")
	}
	if p.Deprecated != "" {
		parts = append(parts, "deprecated")
	}
	return label + "\n" + strings.Join(parts, "\n")
}

func fmtAttrs(p *deps.ResolvedPackage, label string) []string {
	attrs := []string{fmt.Sprintf("label=%q", label)}
	switch {
	case p.Depth == deps.DepthRoot:
		attrs = append(attrs, "penwidth=2")
	case p.Optional:
		attrs = append(attrs, "style=\"rounded,filled,dashed\"")
	}
	if p.Deprecated != "" {
		attrs = append(attrs, "fillcolor=\"#fde2e2\"", "color=\"#c0392b\"")
	}
	return attrs
}

// FormatSize renders a byte count with a binary unit suffix, e.g. "1.5 MiB".
func FormatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
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

// normalizeViewBox rewrites the root svg tag so the drawing starts at the
// origin and carries explicit width and height.
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
