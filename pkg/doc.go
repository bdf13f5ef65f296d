// Package pkg holds the deptree libraries.
//
// deptree answers one question: which packages, at which versions, are
// reachable from an npm package for a given target platform. The libraries
// are layered bottom-up:
//
//  1. [errors], [httputil], [buildinfo], [observability] - shared plumbing
//  2. [integrations] and [integrations/npm] - the registry client
//  3. [deps] - packument model, platform matching, range resolution and the
//     breadth-first tree walker
//  4. [cache] - key/value backends (memory, file, Redis, MongoDB)
//  5. [packument] - stale-while-revalidate packument store on top of a cache
//  6. [manifest] - local package.json files as resolution roots
//  7. [render] - Graphviz output for resolved trees
//  8. [config] - TOML, environment and defaults
//
// The data flow of a resolution:
//
//	registry ──► npm.Client ──► packument.Store ──► deps.Resolver ──► deps.Tree
//	                                  │                                   │
//	                             cache.Cache                    JSON / text / DOT / SVG
package pkg
