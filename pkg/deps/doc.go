// Package deps resolves npm dependency trees.
//
// # Overview
//
// Given a root package and a version range, a [Resolver] discovers every
// package that would be installed for a fixed [Platform], which concrete
// version each one resolves to, and how far it sits from the root. It does
// not compute an install layout: there is no hoisting, no peer dependency
// handling and no lockfile.
//
//	r := deps.NewResolver(store, deps.Config{})
//	tree, err := r.Resolve(ctx, "express", "^4", deps.Options{TrackDepth: true})
//
// # Traversal
//
// Resolution is a breadth-first walk, one level at a time. Every name of a
// level is marked as seen before any of its packuments is fetched, so a name
// is fetched at most once per resolution and cycles end naturally. Within a
// level up to [Config.Concurrency] fetches run in parallel; their outcomes
// are merged in name order once the level is done, which makes the result
// deterministic for a given registry state.
//
// For each item the walker:
//
//  1. Fetches the packument through the [Fetcher]
//  2. Picks a version: dist-tag first, then [ResolveVersion]
//  3. Checks the version against the platform with [Platform.Matches]
//  4. Records it in the [Tree] unless its "name@version" key is taken
//  5. Stages its required and then optional dependencies for the next level
//
// A failure at steps 1-3 silently drops the item and everything below it.
//
// # Depth
//
// With [Options.TrackDepth] each package carries the level it was first
// discovered at ([DepthRoot], [DepthDirect] or [DepthTransitive]) and the
// path of "name@version" keys from the root to itself.
package deps
