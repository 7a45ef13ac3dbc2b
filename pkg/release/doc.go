// Package release prepares workspace manifests for a release.
//
// [Versioner.Bump] moves a whole workspace to a new version: "npm version"
// bumps the root package, every versioned member takes the new root version,
// and internal requests between members become "^<version>".
//
// [Link] joins several checked-out repositories under one directory into an
// ad-hoc workspace, so their packages resolve each other locally.
package release
