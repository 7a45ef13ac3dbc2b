package publish

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/monopub/pkg/errors"
	"github.com/matzehuels/monopub/pkg/manifest"
	"github.com/matzehuels/monopub/pkg/observability"
	"github.com/matzehuels/monopub/pkg/proc"
	"github.com/matzehuels/monopub/pkg/registry"
	"github.com/matzehuels/monopub/pkg/restore"
)

// DefaultTag is the dist-tag npm applies when none is given.
const DefaultTag = "latest"

// State is the terminal state of one package.
type State string

const (
	Published               State = "published"
	SkippedPrivate          State = "skipped-private"
	SkippedAlreadyPublished State = "skipped-already-published"
	SkippedUnnamed          State = "skipped-unnamed"
	Failed                  State = "failed"
)

// Result is the outcome for one package.
type Result struct {
	Package *manifest.Package
	State   State
	Err     error // set when State is Failed
}

// VersionFetcher lists the published versions of a package.
// [*registry.Client] implements it.
type VersionFetcher interface {
	FetchVersions(ctx context.Context, name string) ([]string, error)
}

// Options controls how packages are published.
type Options struct {
	RegistryURL  string // passed to npm publish --registry
	Tag          string // dist-tag; DefaultTag when empty
	Contents     string // subdirectory to publish, relative to each package; "." when empty
	DryRun       bool   // pass --dry-run to npm
	GlobalConfig string // passed as --globalconfig when set
	UserConfig   string // passed as --userconfig when set
}

// Publisher publishes packages one at a time.
type Publisher struct {
	Logger   *log.Logger
	Versions VersionFetcher
	Runner   proc.Runner
	Retrier  registry.Retrier
	Options
}

// New returns a Publisher using the default retry policy.
func New(logger *log.Logger, versions VersionFetcher, runner proc.Runner, opts Options) *Publisher {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Publisher{
		Logger:   logger,
		Versions: versions,
		Runner:   runner,
		Retrier:  registry.DefaultRetrier,
		Options:  opts,
	}
}

// Publish publishes pkgs strictly in order. Failures are logged and
// recorded, and the loop moves on; the returned error is a PUBLISH_FAILED
// listing every failed package, or ctx.Err() if the run was cancelled.
func (p *Publisher) Publish(ctx context.Context, pkgs []*manifest.Package) ([]Result, error) {
	return p.publishAll(ctx, pkgs, p.tag())
}

func (p *Publisher) publishAll(ctx context.Context, pkgs []*manifest.Package, tag string) ([]Result, error) {
	results := make([]Result, 0, len(pkgs))
	var failed []string
	for _, pkg := range pkgs {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := p.publishOne(ctx, pkg, tag)
		if res.State == Failed {
			p.Logger.Errorf("%s: error while publishing: %v", pkg.DisplayName, errors.UserMessage(res.Err))
			failed = append(failed, pkg.DisplayName)
		}
		results = append(results, res)
	}
	if len(failed) > 0 {
		return results, errors.New(errors.ErrCodePublishFailed, "failed publishing %d package(s): %s", len(failed), strings.Join(failed, ", "))
	}
	return results, nil
}

// PublishPackage publishes a single package with the configured tag.
func (p *Publisher) PublishPackage(ctx context.Context, pkg *manifest.Package) Result {
	return p.publishOne(ctx, pkg, p.tag())
}

func (p *Publisher) publishOne(ctx context.Context, pkg *manifest.Package, tag string) (res Result) {
	name, version := pkg.Name(), pkg.Version()
	res = Result{Package: pkg}

	hooks := observability.Publish()
	hooks.OnPackageStart(ctx, pkg.DisplayName, version)
	start := time.Now()
	defer func() {
		hooks.OnPackageComplete(ctx, pkg.DisplayName, version, string(res.State), time.Since(start), res.Err)
	}()

	if pkg.Manifest.Private() {
		p.Logger.Warnf("%s: private. skipping.", pkg.DisplayName)
		res.State = SkippedPrivate
		return res
	}
	if name == "" {
		p.Logger.Warnf("%s: no package name. skipping.", pkg.Path)
		res.State = SkippedUnnamed
		return res
	}

	p.Logger.Infof("%s: fetching versions...", name)
	var versions []string
	err := p.Retrier.Do(ctx, func() error {
		var err error
		versions, err = p.Versions.FetchVersions(ctx, name)
		return err
	})
	if err != nil {
		return failure(res, err)
	}
	p.Logger.Infof("%s: got %d published versions.", name, len(versions))
	if len(versions) == 0 {
		p.Logger.Warnf("%s: package was never published.", name)
	}
	if slices.Contains(versions, version) {
		p.Logger.Warnf("%s: %s is already published. skipping.", name, version)
		res.State = SkippedAlreadyPublished
		return res
	}

	journal := restore.New(p.Logger)
	defer func() {
		if err := journal.Restore(); err != nil && res.Err == nil {
			res = failure(res, err)
		}
	}()

	if err := p.runPublish(ctx, pkg, tag, journal); err != nil {
		return failure(res, err)
	}
	p.Logger.Infof("%s: done.", name)
	res.State = Published
	return res
}

func (p *Publisher) runPublish(ctx context.Context, pkg *manifest.Package, tag string, journal *restore.Journal) error {
	distDir := filepath.Join(pkg.Dir, p.contents())
	publish := proc.Cmd{Dir: distDir, Name: "npm", Args: p.publishArgs(tag)}

	if distDir == filepath.Clean(pkg.Dir) {
		return p.run(ctx, pkg, publish)
	}

	for _, script := range manifest.PublishScripts {
		if _, ok := pkg.Manifest.Script(script); ok {
			if err := p.run(ctx, pkg, proc.Cmd{Dir: pkg.Dir, Name: "npm", Args: []string{"run", script}}); err != nil {
				return err
			}
		}
	}

	dist, err := manifest.Load(filepath.Join(distDir, manifest.FileName))
	if err != nil {
		return err
	}
	original := dist.Raw
	removed, err := dist.Manifest.RemoveScripts(manifest.PublishScripts...)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "strip scripts from %s", dist.Path)
	}
	if removed {
		journal.Record(dist.Path, original)
		if err := dist.Write(); err != nil {
			return err
		}
	}
	return p.run(ctx, pkg, publish)
}

func (p *Publisher) run(ctx context.Context, pkg *manifest.Package, cmd proc.Cmd) error {
	p.Logger.Infof("%s: %s", pkg.DisplayName, cmd)
	return p.Runner.Run(ctx, cmd)
}

func (p *Publisher) publishArgs(tag string) []string {
	url := p.RegistryURL
	if url == "" {
		url = registry.DefaultURL
	}
	args := []string{"publish", "--registry", url}
	if p.DryRun {
		args = append(args, "--dry-run")
	}
	if p.GlobalConfig != "" {
		args = append(args, "--globalconfig", p.GlobalConfig)
	}
	if p.UserConfig != "" {
		args = append(args, "--userconfig", p.UserConfig)
	}
	if tag != DefaultTag {
		args = append(args, "--tag", tag)
	}
	return args
}

func (p *Publisher) tag() string {
	if p.Tag == "" {
		return DefaultTag
	}
	return p.Tag
}

func (p *Publisher) contents() string {
	if p.Contents == "" {
		return "."
	}
	return p.Contents
}

func failure(res Result, err error) Result {
	res.State = Failed
	res.Err = err
	return res
}

// Summary counts results by state.
func Summary(results []Result) map[State]int {
	out := make(map[State]int)
	for _, r := range results {
		out[r.State]++
	}
	return out
}

func (s State) String() string { return string(s) }

// FormatSummary renders counts such as "2 published, 1 skipped-private" in
// a fixed state order, omitting zeros.
func FormatSummary(results []Result) string {
	counts := Summary(results)
	var parts []string
	for _, st := range []State{Published, SkippedAlreadyPublished, SkippedPrivate, SkippedUnnamed, Failed} {
		if n := counts[st]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, st))
		}
	}
	if len(parts) == 0 {
		return "nothing to publish"
	}
	return strings.Join(parts, ", ")
}
