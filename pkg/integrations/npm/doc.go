// Package npm provides an HTTP client for the npm registry API.
//
// # Overview
//
// This package fetches packuments (the per-package registry documents) from
// https://registry.npmjs.org or any compatible mirror and trims them down to
// what dependency resolution needs.
//
// # Usage
//
//	client := npm.NewClient("", integrations.ClientOptions{})
//	pk, err := client.Packument(ctx, "@babel/core")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(pk.DistTags["latest"], len(pk.Versions))
//
// # Addressing
//
// A package document lives at {registry}/{name}. Scoped names are a single
// path segment with the slash escaped: @scope%2Fname. See [EncodeName].
//
// # Schema Quirks
//
// Registry documents are not uniform across two decades of publishing:
//
//   - os, cpu and libc may be a single string instead of a list
//   - deprecated may be a boolean; false means not deprecated
//   - dependencies may be an array or hold non-string ranges
//   - dist.unpackedSize is missing on old versions and defaults to 0
//
// All of these decode without error.
package npm
