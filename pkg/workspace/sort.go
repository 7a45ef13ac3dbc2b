package workspace

import (
	"slices"

	"github.com/matzehuels/monopub/pkg/dag"
	"github.com/matzehuels/monopub/pkg/manifest"
)

// dependencySections are the sections that create ordering constraints
// between internal packages.
var dependencySections = []manifest.Section{
	manifest.Dependencies,
	manifest.DevDependencies,
	manifest.PeerDependencies,
}

// Graph builds the internal dependency graph of pkgs. Only dependencies on
// names present in pkgs become edges; self references are ignored. Unnamed
// packages are left out. Node metadata carries "version" and "private".
func Graph(pkgs []*manifest.Package) *dag.DAG {
	g := dag.New()
	for _, p := range pkgs {
		if p.Name() == "" {
			continue
		}
		_ = g.AddNode(dag.Node{ID: p.Name(), Meta: dag.Metadata{
			"version": p.Version(),
			"private": p.Manifest.Private(),
		}})
	}
	for _, p := range pkgs {
		if _, ok := g.Node(p.Name()); !ok {
			continue
		}
		for _, section := range dependencySections {
			for _, dep := range p.Manifest.Deps(section) {
				if dep.Name == p.Name() {
					continue
				}
				if _, internal := g.Node(dep.Name); internal {
					_ = g.AddEdge(dag.Edge{From: p.Name(), To: dep.Name})
				}
			}
		}
	}
	return g
}

// SortByDepth orders pkgs so that every package comes after all of its
// transitive internal dependencies. Each package, in encounter order, is
// inserted right before the earliest already placed package that depends on
// it, or appended otherwise; unconstrained packages keep encounter order.
//
// Packages inside a dependency cycle still terminate, but their relative
// order is not defined. The detected cycles are returned alongside.
func SortByDepth(pkgs []*manifest.Package) ([]*manifest.Package, [][]string) {
	g := Graph(pkgs)
	closures := g.Closures()

	sorted := make([]*manifest.Package, 0, len(pkgs))
	for _, p := range pkgs {
		at := slices.IndexFunc(sorted, func(placed *manifest.Package) bool {
			return placed != p && closures[placed.Name()][p.Name()]
		})
		if at < 0 {
			sorted = append(sorted, p)
			continue
		}
		sorted = slices.Insert(sorted, at, p)
	}
	return sorted, dag.FindCycles(g)
}
