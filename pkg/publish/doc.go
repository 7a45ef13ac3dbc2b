// Package publish publishes workspace packages to an npm registry.
//
// A [Publisher] walks packages in dependency order and, for each one,
// decides between skipping and running "npm publish":
//
//   - private packages are skipped
//   - unnamed packages are skipped
//   - a version already present in the registry is skipped
//   - everything else is published, optionally from a build output
//     subdirectory ("contents")
//
// Publishing from a subdirectory runs the prepare, prepublishOnly and
// prepack scripts from the package root first, then strips them from the
// subdirectory's package.json so npm does not run them a second time. The
// stripped manifest is restored afterwards, whatever the outcome.
//
// One package failing does not stop the run. [Publisher.Publish] returns a
// result per package and a PUBLISH_FAILED error naming every failure.
//
// [Publisher.Snapshot] publishes a pre-release of every package: each
// version gets the short git commit appended, internal dependency ranges are
// pinned to those versions, and all manifests are restored when done.
package publish
