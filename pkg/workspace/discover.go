package workspace

import (
	"encoding/json"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/monopub/pkg/errors"
	"github.com/matzehuels/monopub/pkg/manifest"
)

const (
	pnpmWorkspaceFile = "pnpm-workspace.yaml"
	lernaFile         = "lerna.json"
	linkPrefix        = "file:"
)

// expand globs every location for package.json files below rootDir and
// loads the matches. Locations starting with "!" exclude directories.
// Matches are visited in lexical order per location; invalid or duplicate
// packages are skipped with a warning.
func (r *Resolver) expand(rootDir string, locations []string) ([]*manifest.Package, error) {
	var includes, excludes []string
	for _, loc := range locations {
		if rest, ok := strings.CutPrefix(loc, "!"); ok {
			excludes = append(excludes, cleanPattern(rest))
			continue
		}
		includes = append(includes, cleanPattern(loc))
	}

	fsys := os.DirFS(rootDir)
	seen := newMemberSet(r)
	for _, pattern := range includes {
		matches, err := doublestar.Glob(fsys, path.Join(pattern, manifest.FileName))
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidWorkspace, err, "bad workspace pattern %q", pattern)
		}
		slices.Sort(matches)
		for _, match := range matches {
			dir := path.Dir(match)
			if inNodeModules(dir) || excluded(excludes, dir) {
				continue
			}
			seen.load(filepath.Join(rootDir, filepath.FromSlash(match)))
		}
	}
	return seen.packages, nil
}

// linked follows file: requests from the root's dependencies and
// devDependencies, and transitively from the linked packages themselves.
func (r *Resolver) linked(root *manifest.Package) ([]*manifest.Package, error) {
	seen := newMemberSet(r)
	visited := map[string]bool{root.Path: true}

	queue := []*manifest.Package{root}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, section := range []manifest.Section{manifest.Dependencies, manifest.DevDependencies} {
			for _, dep := range cur.Manifest.Deps(section) {
				target, ok := strings.CutPrefix(dep.Request, linkPrefix)
				if !ok {
					continue
				}
				dir := target
				if !filepath.IsAbs(dir) {
					dir = filepath.Join(cur.Dir, filepath.FromSlash(target))
				}
				manifestPath := filepath.Join(dir, manifest.FileName)
				if visited[manifestPath] {
					continue
				}
				visited[manifestPath] = true
				if pkg := seen.load(manifestPath); pkg != nil {
					queue = append(queue, pkg)
				}
			}
		}
	}
	return seen.packages, nil
}

// memberSet accumulates member packages, de-duplicated by name.
type memberSet struct {
	r        *Resolver
	byName   map[string]*manifest.Package
	packages []*manifest.Package
}

func newMemberSet(r *Resolver) *memberSet {
	return &memberSet{r: r, byName: make(map[string]*manifest.Package)}
}

// load reads the manifest at path and adds it when valid. It returns the
// added package, or nil when it was skipped.
func (s *memberSet) load(manifestPath string) *manifest.Package {
	logger := s.r.Logger
	pkg, err := manifest.Load(manifestPath)
	if err != nil {
		logger.Warnf("%s: %s. skipping.", manifestPath, errors.UserMessage(err))
		return nil
	}
	switch {
	case !pkg.Manifest.HasName():
		logger.Warnf("%s: no valid \"name\" field. skipping.", manifestPath)
		return nil
	case !pkg.Manifest.HasVersion():
		logger.Warnf("%s: no valid \"version\" field. skipping.", manifestPath)
		return nil
	}
	if prev, dup := s.byName[pkg.Name()]; dup {
		logger.Warnf("%s: duplicate package name. %q is already used at %s", manifestPath, pkg.Name(), prev.Path)
		return nil
	}
	s.byName[pkg.Name()] = pkg
	s.packages = append(s.packages, pkg)
	return pkg
}

// pnpmLocations reads the "packages" list of pnpm-workspace.yaml.
func pnpmLocations(rootDir string) ([]string, bool, error) {
	file := filepath.Join(rootDir, pnpmWorkspaceFile)
	data, err := os.ReadFile(file)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeInvalidWorkspace, err, "read %s", file)
	}
	var doc struct {
		Packages []string `yaml:"packages"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeInvalidWorkspace, err, "parse %s", file)
	}
	if doc.Packages == nil {
		return nil, false, nil
	}
	return doc.Packages, true, nil
}

// lernaLocations reads the "packages" array of lerna.json.
func lernaLocations(rootDir string) ([]string, bool, error) {
	file := filepath.Join(rootDir, lernaFile)
	data, err := os.ReadFile(file)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeInvalidWorkspace, err, "read %s", file)
	}
	var doc struct {
		Packages []string `json:"packages"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeInvalidWorkspace, err, "parse %s", file)
	}
	if doc.Packages == nil {
		return nil, false, nil
	}
	return doc.Packages, true, nil
}

func cleanPattern(p string) string {
	p = path.Clean(filepath.ToSlash(p))
	return strings.TrimPrefix(p, "./")
}

func inNodeModules(dir string) bool {
	return slices.Contains(strings.Split(dir, "/"), "node_modules")
}

func excluded(excludes []string, dir string) bool {
	for _, pattern := range excludes {
		if ok, _ := doublestar.Match(pattern, dir); ok {
			return true
		}
	}
	return false
}
