// Package upgrade moves external dependency requests across a workspace to
// the version currently published under a dist-tag.
//
// Every package's dependencies and devDependencies are scanned for
// external names. Each name is resolved once against the registry, with
// bounded concurrency, and every occurrence is rewritten to the resolved
// version, keeping "~" ranges as "~" and turning everything else into "^".
// Internal references are synchronized to the current internal versions.
// Pinned names are reported as skipped instead of rewritten.
package upgrade

import (
	"context"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	circuit "github.com/rubyist/circuitbreaker"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/monopub/pkg/config"
	"github.com/matzehuels/monopub/pkg/manifest"
	"github.com/matzehuels/monopub/pkg/registry"
)

const (
	// DefaultTag is the dist-tag resolved when none is configured.
	DefaultTag = "latest"

	// DefaultConcurrency bounds in-flight dist-tag requests.
	DefaultConcurrency = 8

	// DefaultBreakerThreshold is the number of consecutive transient lookup
	// failures after which the remaining lookups fail fast.
	DefaultBreakerThreshold = 5
)

// sections are the dependency sections upgrade rewrites.
var sections = []manifest.Section{manifest.Dependencies, manifest.DevDependencies}

// Options controls an upgrade run.
type Options struct {
	Tag              string            // dist-tag to resolve; DefaultTag when empty
	DryRun           bool              // compute the report without writing
	Prefix           string            // only upgrade external names starting with Prefix
	NumericPins      []string          // names whose bare numeric requests are left alone
	Pinned           map[string]string // names never rewritten, mapped to a reason
	Concurrency      int               // DefaultConcurrency when zero
	BreakerThreshold int               // DefaultBreakerThreshold when zero
}

// Upgrader resolves and rewrites dependency requests.
type Upgrader struct {
	Logger *log.Logger
	Tags   registry.DistTagFetcher
	Options
}

// New returns an Upgrader. NumericPins defaults to config.DefaultNumericPins
// when nil.
func New(logger *log.Logger, tags registry.DistTagFetcher, opts Options) *Upgrader {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if opts.NumericPins == nil {
		opts.NumericPins = slices.Clone(config.DefaultNumericPins)
	}
	return &Upgrader{Logger: logger, Tags: tags, Options: opts}
}

// Upgrade resolves every external dependency of pkgs and rewrites their
// manifests. Lookup failures are logged and leave that dependency as is;
// only cancellation or a failed write returns an error.
func (u *Upgrader) Upgrade(ctx context.Context, pkgs []*manifest.Package) (*Report, error) {
	tag := u.tag()
	external := u.Externals(pkgs)
	u.Logger.Infof("Getting %q version for %d dependencies...", tag, len(external))

	resolved, err := u.Resolve(ctx, external)
	if err != nil {
		return nil, err
	}
	for _, pkg := range pkgs {
		if pkg.Manifest.HasName() && pkg.Manifest.HasVersion() {
			resolved[pkg.Name()] = pkg.Version()
		}
	}

	report, changed := u.plan(pkgs, resolved)
	if u.DryRun {
		return report, nil
	}
	for _, c := range changed {
		for _, e := range c.edits {
			if err := c.pkg.Manifest.SetRequest(e.section, e.name, e.request); err != nil {
				return report, err
			}
		}
		if err := c.pkg.Write(); err != nil {
			return report, err
		}
		u.Logger.Debug("wrote manifest", "path", c.pkg.Path)
		report.Written = append(report.Written, c.pkg.Path)
	}
	return report, nil
}

// Externals returns the external dependency names of pkgs in encounter
// order, after applying the exclusion rules and the prefix filter.
func (u *Upgrader) Externals(pkgs []*manifest.Package) []string {
	internal := make(map[string]bool, len(pkgs))
	for _, pkg := range pkgs {
		if name := pkg.Name(); name != "" {
			internal[name] = true
		}
	}

	seen := make(map[string]bool)
	var names []string
	for _, pkg := range pkgs {
		for _, s := range sections {
			for _, dep := range pkg.Manifest.Deps(s) {
				switch {
				case internal[dep.Name], seen[dep.Name]:
					continue
				case IsLocal(dep.Request):
					continue
				case u.numericPin(dep):
					continue
				case u.Prefix != "" && !strings.HasPrefix(dep.Name, u.Prefix):
					continue
				}
				seen[dep.Name] = true
				names = append(names, dep.Name)
			}
		}
	}
	return names
}

// Resolve looks up the configured dist-tag of every name. Names whose
// lookup fails, or whose tag does not exist, are absent from the result.
//
// A circuit breaker counts consecutive transient failures (no response or
// 5xx). Once it opens the remaining lookups fail fast until a trial
// lookup succeeds. Answers about a single package, such as a 404 for a private
// or unknown name, never count against it.
func (u *Upgrader) Resolve(ctx context.Context, names []string) (map[string]string, error) {
	tag := u.tag()
	breaker := circuit.NewConsecutiveBreaker(int64(u.threshold()))

	var (
		mu       sync.Mutex
		resolved = make(map[string]string, len(names))
		g        errgroup.Group
	)
	g.SetLimit(u.concurrency())

	for _, name := range names {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			var (
				tags      map[string]string
				lookupErr error
			)
			err := breaker.Call(func() error {
				tags, lookupErr = u.Tags.FetchDistTags(ctx, name)
				if registry.IsTransient(lookupErr) {
					return lookupErr
				}
				return nil
			}, 0)
			if err == nil {
				err = lookupErr
			}
			if err != nil {
				if err == circuit.ErrBreakerOpen {
					u.Logger.Errorf("%s: registry lookups are failing, skipped", name)
				} else {
					u.Logger.Errorf("%s: %v", name, err)
				}
				return nil
			}
			version, ok := tags[tag]
			if !ok {
				if tag == DefaultTag {
					u.Logger.Errorf("%s: expected %s to be a string, but got undefined", name, tag)
				}
				return nil
			}
			mu.Lock()
			resolved[name] = version
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return resolved, nil
}

type edit struct {
	section manifest.Section
	name    string
	request string
}

type pending struct {
	pkg   *manifest.Package
	edits []edit
}

// plan computes the report and the edits per package without touching
// any manifest.
func (u *Upgrader) plan(pkgs []*manifest.Package, resolved map[string]string) (*Report, []pending) {
	report := &Report{}
	recorded := make(map[string]bool)
	var changed []pending

	for _, pkg := range pkgs {
		var edits []edit
		for _, s := range sections {
			for _, dep := range pkg.Manifest.Deps(s) {
				target, ok := resolved[dep.Name]
				if !ok || u.numericPin(dep) {
					continue
				}
				next := Rewrite(dep.Request, target)
				if next == dep.Request {
					continue
				}
				reason, pinned := u.Pinned[dep.Name]
				if !recorded[dep.Name] {
					recorded[dep.Name] = true
					rep := Replacement{
						Name:       dep.Name,
						From:       dep.Request,
						To:         next,
						Reason:     reason,
						ChangeType: ClassifyChange(dep.Request, next),
					}
					if pinned {
						report.Skipped = append(report.Skipped, rep)
					} else {
						rep.Reason = ""
						report.Changes = append(report.Changes, rep)
					}
				}
				if !pinned {
					edits = append(edits, edit{section: s, name: dep.Name, request: next})
				}
			}
		}
		if len(edits) > 0 {
			changed = append(changed, pending{pkg: pkg, edits: edits})
		}
	}
	return report, changed
}

func (u *Upgrader) numericPin(dep manifest.Dependency) bool {
	return IsNumeric(dep.Request) && slices.Contains(u.NumericPins, dep.Name)
}

func (u *Upgrader) tag() string {
	if u.Tag == "" {
		return DefaultTag
	}
	return u.Tag
}

func (u *Upgrader) concurrency() int {
	if u.Concurrency <= 0 {
		return DefaultConcurrency
	}
	return u.Concurrency
}

func (u *Upgrader) threshold() int {
	if u.BreakerThreshold <= 0 {
		return DefaultBreakerThreshold
	}
	return u.BreakerThreshold
}
