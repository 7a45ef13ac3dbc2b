// Package dag provides the dependency graph between the packages of a
// workspace.
//
// # Overview
//
// Nodes are internal packages, identified by name. An edge From→To means
// From lists To in its dependencies, devDependencies or peerDependencies.
// External packages are never nodes.
//
// # Basic Usage
//
//	g := dag.New()
//	g.AddNode(dag.Node{ID: "app"})
//	g.AddNode(dag.Node{ID: "lib"})
//	g.AddEdge(dag.Edge{From: "app", To: "lib"})
//
//	g.Closure("app") // [lib]
//
// # Cycles
//
// Workspaces can contain mutually dependent packages. [DAG.Closure] visits
// every node once, so it terminates on cycles, and [FindCycles] lists them
// so callers can warn about them. Relative order inside a cycle is not
// defined by anything in this package.
//
// # Export
//
// [ToDOT] emits Graphviz DOT; [RenderSVG] renders it with go-graphviz.
package dag
