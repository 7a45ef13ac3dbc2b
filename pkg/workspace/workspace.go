// Package workspace resolves the packages a monopub command operates on.
//
// Starting from a directory, [Resolver.Resolve] walks upward to the nearest
// package.json and classifies it:
//
//   - "workspaces" field (yarn/npm): every glob is expanded to member packages
//   - pnpm-workspace.yaml next to the root: its "packages" globs
//   - lerna.json next to the root: its "packages" globs
//   - "file:" requests in dependencies/devDependencies: linked local packages
//   - otherwise: a single package
//
// Members of a multi-package context are returned depth-sorted, so a package
// never precedes one of its internal dependencies.
package workspace

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/monopub/pkg/errors"
	"github.com/matzehuels/monopub/pkg/manifest"
)

// Kind distinguishes single-package directories from multi-package ones.
type Kind int

const (
	// Single is a lone package without members.
	Single Kind = iota
	// Multi is a root package with member packages.
	Multi
)

func (k Kind) String() string {
	if k == Multi {
		return "multi"
	}
	return "single"
}

// Source names the declaration that produced the members of a Multi context.
type Source string

const (
	SourceWorkspaces Source = "workspaces"
	SourcePnpm       Source = "pnpm"
	SourceLerna      Source = "lerna"
	SourceLinked     Source = "linked"
)

// Context is the resolved package layout of a directory. It is immutable
// after resolution.
type Context struct {
	Kind Kind
	// Root is the package.json found by walking upward. For Single contexts
	// it is the only package.
	Root *manifest.Package
	// Packages are the depth-sorted members of a Multi context.
	Packages []*manifest.Package
	// Locations are the raw patterns (or file: paths) that produced Packages.
	Locations []string
	Source    Source
	// Cycles lists dependency cycles between members, if any.
	Cycles [][]string
}

// Children returns the packages to act on: the members of a Multi context,
// or the single package.
func Children(c *Context) []*manifest.Package {
	if c.Kind == Single {
		return []*manifest.Package{c.Root}
	}
	return append([]*manifest.Package(nil), c.Packages...)
}

// All returns the root followed by the members of a Multi context, or the
// single package.
func All(c *Context) []*manifest.Package {
	if c.Kind == Single {
		return []*manifest.Package{c.Root}
	}
	return append([]*manifest.Package{c.Root}, c.Packages...)
}

// Resolver discovers packages. The zero value discards warnings.
type Resolver struct {
	Logger *log.Logger
}

// Resolve resolves basePath with a resolver that discards warnings.
func Resolve(basePath string) (*Context, error) {
	return (&Resolver{}).Resolve(basePath)
}

// Resolve finds the package.json governing basePath and discovers its
// member packages.
func (r *Resolver) Resolve(basePath string) (*Context, error) {
	if r.Logger == nil {
		r.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}

	rootPath, err := findUp(basePath, manifest.FileName)
	if err != nil {
		return nil, err
	}
	root, err := manifest.Load(rootPath)
	if err != nil {
		return nil, err
	}

	locations, source, err := r.locations(root)
	if err != nil {
		return nil, err
	}

	var members []*manifest.Package
	switch source {
	case "":
		members, err = r.linked(root)
		if err != nil {
			return nil, err
		}
		if len(members) == 0 {
			return &Context{Kind: Single, Root: root}, nil
		}
		source = SourceLinked
		for _, p := range members {
			locations = append(locations, p.Dir)
		}
	default:
		members, err = r.expand(root.Dir, locations)
		if err != nil {
			return nil, err
		}
	}

	sorted, cycles := SortByDepth(members)
	for _, c := range cycles {
		r.Logger.Warn("dependency cycle between workspace packages", "cycle", c)
	}
	return &Context{
		Kind:      Multi,
		Root:      root,
		Packages:  sorted,
		Locations: locations,
		Source:    source,
		Cycles:    cycles,
	}, nil
}

// locations returns the member patterns declared by root, checking the
// workspaces field, pnpm-workspace.yaml and lerna.json in that order.
func (r *Resolver) locations(root *manifest.Package) ([]string, Source, error) {
	if raw := root.Manifest.Workspaces(); raw != nil {
		locs, err := workspaceLocations(raw)
		if err != nil {
			return nil, "", errors.Wrap(errors.ErrCodeInvalidWorkspace, err, "%s: cannot extract package locations from \"workspaces\" field", root.Path)
		}
		return locs, SourceWorkspaces, nil
	}

	if locs, ok, err := pnpmLocations(root.Dir); err != nil {
		return nil, "", err
	} else if ok {
		return locs, SourcePnpm, nil
	}

	if locs, ok, err := lernaLocations(root.Dir); err != nil {
		return nil, "", err
	} else if ok {
		return locs, SourceLerna, nil
	}

	return nil, "", nil
}

// findUp walks from start towards the filesystem root looking for name.
func findUp(start, name string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "resolve %s", start)
	}
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		dir = filepath.Dir(dir)
	}
	for {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New(errors.ErrCodeManifestNotFound, "cannot find %s for %s", name, start)
		}
		dir = parent
	}
}

// workspaceLocations accepts a string, an array of strings, or an object
// whose "packages" is either of those.
func workspaceLocations(raw json.RawMessage) ([]string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return []string{s}, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && list != nil {
		return list, nil
	}
	var obj struct {
		Packages json.RawMessage `json:"packages"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Packages != nil {
		if err := json.Unmarshal(obj.Packages, &s); err == nil {
			return []string{s}, nil
		}
		if err := json.Unmarshal(obj.Packages, &list); err == nil && list != nil {
			return list, nil
		}
	}
	return nil, errors.New(errors.ErrCodeInvalidWorkspace, "expected a string, an array of strings or an object with \"packages\"")
}
