package release

import (
	"bytes"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/monopub/pkg/errors"
	"github.com/matzehuels/monopub/pkg/manifest"
	"github.com/matzehuels/monopub/pkg/workspace"
)

// yarnLock is concatenated from every linked repository.
const yarnLock = "yarn.lock"

// LinkResult describes the generated workspace.
type LinkResult struct {
	Root       string   // path of the generated package.json
	Workspaces []string // member locations relative to the linked directory
	LockFile   string   // path of the merged yarn.lock; empty when none was found
	Written    []string // member manifests rewritten to local versions
}

// Link turns every immediate subdirectory of dir holding a package.json into
// part of one workspace rooted at dir.
//
// A subdirectory that is itself a multi-package workspace contributes its
// member locations and the root devDependencies that are not local
// packages. Requests for local packages in dependencies and
// devDependencies are rewritten to "^<local version>". The generated root
// package.json replaces any existing one.
func Link(logger *log.Logger, dir string) (*LinkResult, error) {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "resolve %s", dir)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidWorkspace, err, "read %s", dir)
	}

	var (
		workspaces = []string{}
		rootDevs   []manifest.Dependency
		locks      [][]byte
		members    []*manifest.Package
		versions   = make(map[string]string)
		resolver   = &workspace.Resolver{Logger: logger}
	)
	for _, entry := range entries {
		child := filepath.Join(dir, entry.Name())
		if !entry.IsDir() || !isFile(filepath.Join(child, manifest.FileName)) {
			continue
		}
		logger.Info("linking", "path", filepath.Join(child, manifest.FileName))
		wctx, err := resolver.Resolve(child)
		if err != nil {
			return nil, err
		}
		if data, err := os.ReadFile(filepath.Join(child, yarnLock)); err == nil {
			locks = append(locks, data)
		}
		members = append(members, workspace.Children(wctx)...)

		if wctx.Kind == workspace.Single {
			workspaces = append(workspaces, entry.Name())
			if name := wctx.Root.Name(); name != "" {
				versions[name] = wctx.Root.Version()
			}
			continue
		}
		for _, loc := range wctx.Locations {
			if filepath.IsAbs(loc) {
				rel, err := filepath.Rel(wctx.Root.Dir, loc)
				if err != nil {
					continue
				}
				loc = filepath.ToSlash(rel)
			}
			if rest, ok := strings.CutPrefix(loc, "!"); ok {
				workspaces = append(workspaces, "!"+path.Join(entry.Name(), rest))
				continue
			}
			workspaces = append(workspaces, path.Join(entry.Name(), loc))
		}
		rootDevs = append(rootDevs, wctx.Root.Manifest.Deps(manifest.DevDependencies)...)
		for _, pkg := range wctx.Packages {
			if name := pkg.Name(); name != "" {
				versions[name] = pkg.Version()
			}
		}
	}
	if len(members) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidWorkspace, "no packages found under %s", dir)
	}

	result := &LinkResult{Root: filepath.Join(dir, manifest.FileName), Workspaces: workspaces}
	if err := writeLinkedRoot(result.Root, filepath.Base(dir), workspaces, rootDevs, versions); err != nil {
		return nil, err
	}
	if len(locks) > 0 {
		result.LockFile = filepath.Join(dir, yarnLock)
		if err := os.WriteFile(result.LockFile, bytes.Join(locks, []byte("\n")), 0o644); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "write %s", result.LockFile)
		}
	}

	for _, pkg := range members {
		changed, err := linkPackage(pkg, versions)
		if err != nil {
			return result, err
		}
		if !changed {
			continue
		}
		if err := pkg.Write(); err != nil {
			return result, err
		}
		result.Written = append(result.Written, pkg.Path)
	}
	logger.Info("linked", "packages", len(members), "root", result.Root)
	return result, nil
}

func writeLinkedRoot(p, name string, workspaces []string, devs []manifest.Dependency, local map[string]string) error {
	var deps manifest.Object
	for _, dep := range devs {
		if _, isLocal := local[dep.Name]; isLocal {
			continue
		}
		if _, seen := deps.Get(dep.Name); seen {
			continue
		}
		if err := deps.Set(dep.Name, dep.Request); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "encode %s", p)
		}
	}

	var root manifest.Object
	for _, field := range []struct {
		key   string
		value any
	}{
		{"name", name},
		{"private", true},
		{"workspaces", workspaces},
		{"devDependencies", deps},
	} {
		if err := root.Set(field.key, field.value); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "encode %s", p)
		}
	}
	data, err := root.Indent()
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode %s", p)
	}
	if err := os.WriteFile(p, append(data, '\n'), 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "write %s", p)
	}
	return nil
}

func linkPackage(pkg *manifest.Package, versions map[string]string) (bool, error) {
	changed := false
	for _, section := range []manifest.Section{manifest.Dependencies, manifest.DevDependencies} {
		for _, dep := range pkg.Manifest.Deps(section) {
			v := versions[dep.Name]
			if v == "" || dep.Request == "^"+v {
				continue
			}
			if err := pkg.Manifest.SetRequest(section, dep.Name, "^"+v); err != nil {
				return false, errors.Wrap(errors.ErrCodeInternal, err, "rewrite %s in %s", dep.Name, pkg.DisplayName)
			}
			changed = true
		}
	}
	return changed, nil
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
