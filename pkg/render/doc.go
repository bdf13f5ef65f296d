// Package render draws resolved dependency trees as node-link diagrams.
//
// [ToDOT] turns a [deps.Tree] into Graphviz DOT source. Each package becomes
// a box labelled "name@version", and an edge is drawn from the parent that
// first discovered a package to the package itself, so the diagram is the
// spanning tree the resolver actually walked. Parents are taken from the
// recorded paths, which only exist when the tree was resolved with
// [deps.Options.TrackDepth]; without them the diagram has no edges.
//
//	dot := render.ToDOT(tree, render.Options{Detailed: true})
//	svg, err := render.RenderSVG(ctx, dot)
//
// Optional packages are drawn dashed and deprecated packages are filled red.
//
// [RenderSVG] uses the WebAssembly build of Graphviz bundled by
// github.com/goccy/go-graphviz, so no system graphviz install is needed.
package render
