package dag

import "slices"

// FindCycles reports the dependency cycles in the graph. Each cycle is
// returned as the path of node IDs from the first node back to itself,
// e.g. [a b a]. Cycles are discovered by depth-first search in insertion
// order, one per back edge, so the result is deterministic.
func FindCycles(g *DAG) [][]string {
	const (
		white = iota
		gray
		black
	)

	color := make(map[string]int, g.NodeCount())
	var stack []string
	var cycles [][]string

	var dfs func(id string)
	dfs = func(id string) {
		color[id] = gray
		stack = append(stack, id)
		for _, child := range g.Children(id) {
			switch color[child] {
			case white:
				dfs(child)
			case gray:
				start := slices.Index(stack, child)
				cycle := slices.Clone(stack[start:])
				cycles = append(cycles, append(cycle, child))
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
	}

	for _, n := range g.Nodes() {
		if color[n.ID] == white {
			dfs(n.ID)
		}
	}
	return cycles
}
