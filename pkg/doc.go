// Package pkg provides the libraries behind monopub, a release tool for npm
// monorepos.
//
// # Overview
//
// The typical data flow of a publish run:
//
//	package.json / workspaces / pnpm-workspace.yaml / lerna.json
//	         ↓
//	    [workspace] package (discover members, sort by dependency depth)
//	         ↓
//	    [registry] package (published versions, dist-tags)
//	         ↓
//	    [publish] package (npm publish per package, manifests restored)
//
// Upgrades replace the last step with [upgrade], which resolves dist-tags
// concurrently and rewrites dependency requests in place.
//
// # Main Packages
//
//   - [manifest]: order-preserving package.json editing
//   - [workspace]: package discovery and depth sorting
//   - [dag]: dependency graph, closures, cycles and DOT export
//   - [npmrc] and [config]: npm and project configuration
//   - [registry]: npm registry client, retry policy and dist-tag cache
//   - [cache]: file, Redis and no-op cache backends
//   - [publish] and [upgrade]: the release orchestrators
//   - [proc] and [restore]: subprocess execution and manifest restoration
//   - [errors], [observability] and [buildinfo]: shared infrastructure
package pkg
