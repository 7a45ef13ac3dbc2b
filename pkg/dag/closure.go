package dag

// Closure returns every node reachable from id through dependency edges,
// in breadth-first order. The start node is only included when it is part
// of a cycle. Each node is visited once, so cycles terminate.
func (d *DAG) Closure(id string) []string {
	visited := map[string]bool{id: true}
	var reach []string
	selfReached := false

	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range d.outgoing[cur] {
			if child == id && !selfReached {
				selfReached = true
				reach = append(reach, child)
			}
			if visited[child] {
				continue
			}
			visited[child] = true
			reach = append(reach, child)
			queue = append(queue, child)
		}
	}
	return reach
}

// Closures computes [DAG.Closure] for every node and returns it as a set
// per node.
func (d *DAG) Closures() map[string]map[string]bool {
	out := make(map[string]map[string]bool, len(d.order))
	for _, id := range d.order {
		set := make(map[string]bool)
		for _, dep := range d.Closure(id) {
			set[dep] = true
		}
		out[id] = set
	}
	return out
}
