// Package manifest resolves local package.json files.
//
// A project manifest is not published anywhere, so it cannot be fetched
// like a registry package. [PackageJSON.Packument] turns it into a
// single-version packument, and [Fetcher] serves that packument for the
// project's name while delegating every other name to the registry. The
// resolver then walks the project exactly like a published root:
//
//	pj, err := manifest.Parse("package.json")
//	root := pj.Packument(manifest.Options{Dev: true})
//	r := deps.NewResolver(manifest.Fetcher(root, store), deps.Config{})
//	tree, err := r.Resolve(ctx, root.Name, pj.RootVersion(), deps.Options{})
package manifest
