package workspace

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/monopub/pkg/errors"
	"github.com/matzehuels/monopub/pkg/manifest"
)

// writeFiles creates files below dir from a path -> content map.
func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func pkgJSON(name, version string, deps ...string) string {
	var entries []string
	for _, d := range deps {
		entries = append(entries, fmt.Sprintf("%q: %q", d, "^1.0.0"))
	}
	return fmt.Sprintf(`{"name": %q, "version": %q, "dependencies": {%s}}`, name, version, strings.Join(entries, ", "))
}

func names(pkgs []*manifest.Package) []string {
	out := make([]string, len(pkgs))
	for i, p := range pkgs {
		out[i] = p.DisplayName
	}
	return out
}

func testResolver(buf *bytes.Buffer) *Resolver {
	return &Resolver{Logger: log.NewWithOptions(buf, log.Options{})}
}

func TestResolveSingle(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"package.json": pkgJSON("solo", "1.0.0", "left-pad"),
		"src/index.js": "",
	})

	c, err := Resolve(filepath.Join(dir, "src"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if c.Kind != Single || c.Root.Name() != "solo" {
		t.Fatalf("got kind %v root %q", c.Kind, c.Root.Name())
	}
	if got := names(Children(c)); !reflect.DeepEqual(got, []string{"solo"}) {
		t.Errorf("Children = %v", got)
	}
	if got := names(All(c)); !reflect.DeepEqual(got, []string{"solo"}) {
		t.Errorf("All = %v", got)
	}
}

func TestResolveWorkspaces(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"package.json":                      `{"name": "root", "private": true, "workspaces": ["packages/*", "tools/**"]}`,
		"packages/app/package.json":         pkgJSON("app", "1.0.0", "lib"),
		"packages/lib/package.json":         pkgJSON("lib", "1.0.0", "core"),
		"packages/no-version/package.json":  `{"name": "no-version"}`,
		"packages/not-object/package.json":  `[]`,
		"tools/deep/core/package.json":      pkgJSON("core", "2.0.0"),
		"tools/deep/dup/package.json":       pkgJSON("app", "9.9.9"),
		"tools/node_modules/x/package.json": pkgJSON("x", "1.0.0"),
	})

	var logs bytes.Buffer
	c, err := testResolver(&logs).Resolve(dir)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if c.Kind != Multi || c.Source != SourceWorkspaces {
		t.Fatalf("kind %v source %q", c.Kind, c.Source)
	}
	if got, want := names(c.Packages), []string{"core", "lib", "app"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Packages = %v, want %v", got, want)
	}
	if got := names(All(c)); got[0] != "root" || len(got) != 4 {
		t.Errorf("All = %v", got)
	}
	if !reflect.DeepEqual(c.Locations, []string{"packages/*", "tools/**"}) {
		t.Errorf("Locations = %v", c.Locations)
	}

	out := logs.String()
	for _, want := range []string{`no valid "version" field`, "duplicate package name", "not-object"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q:\n%s", want, out)
		}
	}
}

func TestResolveWorkspacesShapes(t *testing.T) {
	tests := []struct {
		name       string
		workspaces string
		wantErr    bool
	}{
		{"string", `"packages/*"`, false},
		{"array", `["packages/*"]`, false},
		{"object array", `{"packages": ["packages/*"], "nohoist": ["**/x"]}`, false},
		{"object string", `{"packages": "packages/*"}`, false},
		{"number", `42`, true},
		{"mixed array", `["packages/*", 1]`, true},
		{"object without packages", `{"nohoist": []}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFiles(t, dir, map[string]string{
				"package.json":            fmt.Sprintf(`{"name": "root", "workspaces": %s}`, tt.workspaces),
				"packages/a/package.json": pkgJSON("a", "1.0.0"),
			})
			c, err := Resolve(dir)
			if tt.wantErr {
				if !errors.Is(err, errors.ErrCodeInvalidWorkspace) {
					t.Fatalf("expected INVALID_WORKSPACE, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if got := names(c.Packages); !reflect.DeepEqual(got, []string{"a"}) {
				t.Errorf("Packages = %v", got)
			}
		})
	}
}

func TestResolvePnpm(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"package.json":                   `{"name": "root", "private": true}`,
		"pnpm-workspace.yaml":            "packages:\n  - 'packages/*'\n  - '!packages/internal'\n",
		"packages/a/package.json":        pkgJSON("a", "1.0.0"),
		"packages/b/package.json":        pkgJSON("b", "1.0.0", "a"),
		"packages/internal/package.json": pkgJSON("internal", "1.0.0"),
	})

	c, err := Resolve(dir)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if c.Source != SourcePnpm {
		t.Errorf("Source = %q", c.Source)
	}
	if got := names(c.Packages); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Packages = %v", got)
	}
}

func TestResolveLerna(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"package.json":           `{"name": "root"}`,
		"lerna.json":             `{"version": "independent", "packages": ["modules/*"]}`,
		"modules/x/package.json": pkgJSON("x", "0.1.0"),
	})

	c, err := Resolve(dir)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if c.Kind != Multi || c.Source != SourceLerna {
		t.Errorf("kind %v source %q", c.Kind, c.Source)
	}
	if got := names(c.Packages); !reflect.DeepEqual(got, []string{"x"}) {
		t.Errorf("Packages = %v", got)
	}
}

func TestResolveLinked(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"package.json":   `{"name": "root", "dependencies": {"b": "file:./b", "react": "^18.0.0"}, "devDependencies": {"missing": "file:./missing"}}`,
		"b/package.json": `{"name": "b", "version": "1.0.0", "dependencies": {"a": "file:../a"}}`,
		"a/package.json": pkgJSON("a", "1.0.0"),
	})

	var logs bytes.Buffer
	c, err := testResolver(&logs).Resolve(dir)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if c.Kind != Multi || c.Source != SourceLinked {
		t.Fatalf("kind %v source %q", c.Kind, c.Source)
	}
	if got := names(c.Packages); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Packages = %v", got)
	}
	if !strings.Contains(logs.String(), "missing") {
		t.Errorf("expected warning about missing link:\n%s", logs.String())
	}
}

func TestResolveErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Resolve(dir); !errors.Is(err, errors.ErrCodeManifestNotFound) {
		t.Errorf("empty dir: got %v", err)
	}

	writeFiles(t, dir, map[string]string{"package.json": `"just a string"`})
	if _, err := Resolve(dir); !errors.Is(err, errors.ErrCodeInvalidManifest) {
		t.Errorf("string manifest: got %v", err)
	}
}

func TestSortByDepth(t *testing.T) {
	load := func(name string, deps ...string) *manifest.Package {
		p, err := manifest.FromBytes("/ws/"+name+"/package.json", []byte(pkgJSON(name, "1.0.0", deps...)))
		if err != nil {
			t.Fatal(err)
		}
		return p
	}

	tests := []struct {
		name string
		pkgs []*manifest.Package
		want []string
	}{
		{
			name: "independent keep order",
			pkgs: []*manifest.Package{load("c"), load("a"), load("b")},
			want: []string{"c", "a", "b"},
		},
		{
			name: "dependency moves first",
			pkgs: []*manifest.Package{load("a", "b"), load("b")},
			want: []string{"b", "a"},
		},
		{
			name: "transitive",
			pkgs: []*manifest.Package{load("r", "p"), load("q"), load("p", "q")},
			want: []string{"q", "p", "r"},
		},
		{
			name: "external and self ignored",
			pkgs: []*manifest.Package{load("a", "a", "react"), load("b")},
			want: []string{"a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, cycles := SortByDepth(tt.pkgs)
			if !reflect.DeepEqual(names(got), tt.want) {
				t.Errorf("SortByDepth = %v, want %v", names(got), tt.want)
			}
			if len(cycles) != 0 {
				t.Errorf("unexpected cycles %v", cycles)
			}
		})
	}
}

func TestSortByDepthOrderInvariant(t *testing.T) {
	// p00 -> p01 -> ... -> p11, declared dependents first, plus a few
	// unrelated packages interleaved.
	var pkgs []*manifest.Package
	for i := 0; i < 12; i++ {
		name := fmt.Sprintf("p%02d", i)
		var deps []string
		if i < 11 {
			deps = append(deps, fmt.Sprintf("p%02d", i+1))
		}
		p, err := manifest.FromBytes("/ws/"+name+"/package.json", []byte(pkgJSON(name, "1.0.0", deps...)))
		if err != nil {
			t.Fatal(err)
		}
		pkgs = append(pkgs, p)
		if i%4 == 0 {
			other, _ := manifest.FromBytes("/ws/x"+name+"/package.json", []byte(pkgJSON("x"+name, "1.0.0")))
			pkgs = append(pkgs, other)
		}
	}

	sorted, _ := SortByDepth(pkgs)
	if len(sorted) != len(pkgs) {
		t.Fatalf("sorted has %d packages, want %d", len(sorted), len(pkgs))
	}
	index := make(map[string]int)
	for i, p := range sorted {
		index[p.Name()] = i
	}
	for _, p := range pkgs {
		for _, dep := range p.Manifest.Deps(manifest.Dependencies) {
			if index[dep.Name] > index[p.Name()] {
				t.Errorf("%s placed after its dependent %s", dep.Name, p.Name())
			}
		}
	}
}

func TestSortByDepthCycle(t *testing.T) {
	a, _ := manifest.FromBytes("/ws/a/package.json", []byte(pkgJSON("a", "1.0.0", "b")))
	b, _ := manifest.FromBytes("/ws/b/package.json", []byte(pkgJSON("b", "1.0.0", "a")))

	sorted, cycles := SortByDepth([]*manifest.Package{a, b})
	if len(sorted) != 2 {
		t.Fatalf("sorted lost packages: %v", names(sorted))
	}
	if !reflect.DeepEqual(cycles, [][]string{{"a", "b", "a"}}) {
		t.Errorf("cycles = %v", cycles)
	}
}
