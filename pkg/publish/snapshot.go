package publish

import (
	"context"
	stderrors "errors"

	"github.com/matzehuels/monopub/pkg/errors"
	"github.com/matzehuels/monopub/pkg/manifest"
	"github.com/matzehuels/monopub/pkg/proc"
	"github.com/matzehuels/monopub/pkg/restore"
)

// SnapshotTag is the dist-tag snapshots are published under by default.
const SnapshotTag = "next"

// shortCommitLen is the length of the commit suffix in snapshot versions.
const shortCommitLen = 7

// SnapshotVersions maps every named and versioned package to
// "<version>-<short commit>".
func SnapshotVersions(pkgs []*manifest.Package, commit string) map[string]string {
	if len(commit) > shortCommitLen {
		commit = commit[:shortCommitLen]
	}
	out := make(map[string]string, len(pkgs))
	for _, pkg := range pkgs {
		if pkg.Manifest.HasName() && pkg.Manifest.HasVersion() {
			out[pkg.Name()] = pkg.Version() + "-" + commit
		}
	}
	return out
}

// Snapshot publishes a pre-release of pkgs built from the git commit checked
// out in dir. Versions and internal dependency requests are rewritten on
// disk for the duration of the publish and restored afterwards; the
// in-memory packages are reloaded from the restored files. The dist-tag is
// the configured Tag, or SnapshotTag when unset.
func (p *Publisher) Snapshot(ctx context.Context, dir string, pkgs []*manifest.Package) (results []Result, err error) {
	commit, cerr := p.Runner.Output(ctx, proc.Cmd{Dir: dir, Name: "git", Args: []string{"rev-parse", "HEAD"}})
	if cerr != nil || commit == "" {
		return nil, errors.Wrap(errors.ErrCodeCommandFailed, cerr, "cannot determine git commit hash for %s", dir)
	}
	versions := SnapshotVersions(pkgs, commit)

	journal := restore.New(p.Logger)
	originals := make(map[*manifest.Package][]byte, len(pkgs))
	defer func() {
		rerr := journal.Restore()
		for pkg, raw := range originals {
			if fresh, ferr := manifest.FromBytes(pkg.Path, raw); ferr == nil {
				*pkg = *fresh
			}
		}
		if rerr != nil {
			err = stderrors.Join(err, rerr)
		}
	}()

	for _, pkg := range pkgs {
		originals[pkg] = pkg.Raw
		journal.Record(pkg.Path, pkg.Raw)
		if err := rewriteSnapshot(pkg, versions); err != nil {
			return nil, err
		}
		p.Logger.Infof("%s: updating versions in package.json", pkg.DisplayName)
		if err := pkg.Write(); err != nil {
			return nil, err
		}
	}

	tag := p.Tag
	if tag == "" {
		tag = SnapshotTag
	}
	return p.publishAll(ctx, pkgs, tag)
}

func rewriteSnapshot(pkg *manifest.Package, versions map[string]string) error {
	if v, ok := versions[pkg.Name()]; ok {
		if err := pkg.Manifest.SetVersion(v); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "set version of %s", pkg.DisplayName)
		}
	}
	for _, section := range []manifest.Section{manifest.Dependencies, manifest.DevDependencies} {
		for _, dep := range pkg.Manifest.Deps(section) {
			v, ok := versions[dep.Name]
			if !ok {
				continue
			}
			if err := pkg.Manifest.SetRequest(section, dep.Name, v); err != nil {
				return errors.Wrap(errors.ErrCodeInternal, err, "rewrite %s in %s", dep.Name, pkg.DisplayName)
			}
		}
	}
	return nil
}
