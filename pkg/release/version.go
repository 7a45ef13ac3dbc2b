package release

import (
	"context"
	"io"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/monopub/pkg/errors"
	"github.com/matzehuels/monopub/pkg/manifest"
	"github.com/matzehuels/monopub/pkg/proc"
	"github.com/matzehuels/monopub/pkg/workspace"
)

// Target is the semver component "npm version" increments.
type Target string

const (
	Patch Target = "patch"
	Minor Target = "minor"
	Major Target = "major"
)

// Targets lists the accepted targets.
var Targets = []Target{Patch, Minor, Major}

// ParseTarget validates s as a Target.
func ParseTarget(s string) (Target, error) {
	if t := Target(s); slices.Contains(Targets, t) {
		return t, nil
	}
	return "", errors.New(errors.ErrCodeInvalidConfig, "unknown version target %q (want patch, minor or major)", s)
}

// internalSections are rewritten to the new version.
var internalSections = []manifest.Section{
	manifest.Dependencies,
	manifest.DevDependencies,
	manifest.PeerDependencies,
}

// BumpResult describes a finished bump.
type BumpResult struct {
	Version string   // new root version
	Written []string // member manifests written, in workspace order
}

// Versioner bumps workspace versions.
type Versioner struct {
	Logger *log.Logger
	Runner proc.Runner
}

// NewVersioner returns a Versioner. A nil logger discards output.
func NewVersioner(logger *log.Logger, runner proc.Runner) *Versioner {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Versioner{Logger: logger, Runner: runner}
}

// Bump runs "npm version <target> --no-git-tag-version" in the root
// package, then aligns the members of a Multi context with the root's new
// version. Members without a version keep having none, but their internal
// requests are still rewritten.
func (v *Versioner) Bump(ctx context.Context, wctx *workspace.Context, target Target) (*BumpResult, error) {
	root := wctx.Root
	cmd := proc.Cmd{Dir: root.Dir, Name: "npm", Args: []string{"version", string(target), "--no-git-tag-version"}}
	v.Logger.Infof("%s: %s", root.DisplayName, cmd)
	if err := v.Runner.Run(ctx, cmd); err != nil {
		return nil, err
	}

	bumped, err := manifest.Load(root.Path)
	if err != nil {
		return nil, err
	}
	version := bumped.Version()
	if version == "" {
		return nil, errors.New(errors.ErrCodeInvalidManifest, "%s has no version after npm version", root.Path)
	}
	result := &BumpResult{Version: version}
	if wctx.Kind != workspace.Multi {
		return result, nil
	}

	local := make(map[string]bool)
	for _, pkg := range wctx.Packages {
		if pkg.Manifest.HasVersion() && pkg.Name() != "" {
			local[pkg.Name()] = true
		}
	}

	for _, pkg := range wctx.Packages {
		changed, err := alignPackage(pkg, version, local)
		if err != nil {
			return result, err
		}
		if !changed {
			continue
		}
		v.Logger.Infof("%s: setting version to %s", pkg.DisplayName, version)
		if err := pkg.Write(); err != nil {
			return result, err
		}
		result.Written = append(result.Written, pkg.Path)
	}
	return result, nil
}

func alignPackage(pkg *manifest.Package, version string, local map[string]bool) (bool, error) {
	changed := false
	if pkg.Manifest.HasVersion() && pkg.Version() != version {
		if err := pkg.Manifest.SetVersion(version); err != nil {
			return false, errors.Wrap(errors.ErrCodeInternal, err, "set version of %s", pkg.DisplayName)
		}
		changed = true
	}
	request := "^" + version
	for _, section := range internalSections {
		for _, dep := range pkg.Manifest.Deps(section) {
			if !local[dep.Name] || dep.Request == request {
				continue
			}
			if err := pkg.Manifest.SetRequest(section, dep.Name, request); err != nil {
				return false, errors.Wrap(errors.ErrCodeInternal, err, "rewrite %s in %s", dep.Name, pkg.DisplayName)
			}
			changed = true
		}
	}
	return changed, nil
}
