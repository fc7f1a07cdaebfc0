package inject

import "slices"

// topoOrder orders n nodes so that every node follows its dependencies.
// Among nodes that are ready at the same time the lower index goes first, so
// an already ordered input comes back unchanged. Nodes on a dependency cycle,
// including a node depending on itself, are left out of order and returned as
// cycles, one sorted member list per strongly connected component. Nodes
// that only depend on a cycle are still ordered.
func topoOrder(n int, deps func(i int) []int) (order []int, cycles [][]int) {
	done := make([]bool, n)
	order = kahn(n, deps, done, nil)
	if len(order) == n {
		return order, nil
	}

	var rest []int
	for i := 0; i < n; i++ {
		if !done[i] {
			rest = append(rest, i)
		}
	}

	onCycle := make([]bool, n)
	for _, scc := range components(rest, deps, done) {
		if len(scc) == 1 && !slices.Contains(deps(scc[0]), scc[0]) {
			continue
		}
		for _, i := range scc {
			onCycle[i] = true
		}
		cycles = append(cycles, scc)
	}

	// Cycle members count as settled so their dependents can be placed.
	for i := range onCycle {
		if onCycle[i] {
			done[i] = true
		}
	}
	order = kahn(n, deps, done, order)
	return order, cycles
}

func kahn(n int, deps func(int) []int, done []bool, order []int) []int {
	for {
		picked := -1
		for i := 0; i < n && picked < 0; i++ {
			if done[i] {
				continue
			}
			ready := true
			for _, d := range deps(i) {
				if d >= 0 && d < n && !done[d] {
					ready = false
					break
				}
			}
			if ready {
				picked = i
			}
		}
		if picked < 0 {
			return order
		}
		done[picked] = true
		order = append(order, picked)
	}
}

// components returns the strongly connected components among nodes, each
// sorted by index. Edges into settled nodes are ignored.
func components(nodes []int, deps func(int) []int, settled []bool) [][]int {
	var (
		index   = make(map[int]int, len(nodes))
		low     = make(map[int]int, len(nodes))
		onStack = make(map[int]bool, len(nodes))
		stack   []int
		next    int
		out     [][]int
	)

	var visit func(v int)
	visit = func(v int) {
		index[v] = next
		low[v] = next
		next++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range deps(v) {
			if w < 0 || w >= len(settled) || settled[w] {
				continue
			}
			if _, seen := index[w]; !seen {
				visit(w)
				low[v] = min(low[v], low[w])
			} else if onStack[w] {
				low[v] = min(low[v], index[w])
			}
		}

		if low[v] != index[v] {
			return
		}
		var scc []int
		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[w] = false
			scc = append(scc, w)
			if w == v {
				break
			}
		}
		slices.Sort(scc)
		out = append(out, scc)
	}

	for _, v := range nodes {
		if _, seen := index[v]; !seen {
			visit(v)
		}
	}
	return out
}

// walkCycle follows dependencies inside scc from its first member until it
// returns to a visited node, and closes the path on its start.
func walkCycle(scc []int, deps func(int) []int) []int {
	member := make(map[int]bool, len(scc))
	for _, i := range scc {
		member[i] = true
	}
	start := scc[0]
	path := []int{start}
	seen := map[int]bool{start: true}
	cur := start
	for {
		next := -1
		for _, d := range deps(cur) {
			if !member[d] {
				continue
			}
			if d == start || !seen[d] {
				next = d
				break
			}
		}
		if next < 0 || next == start {
			return append(path, start)
		}
		seen[next] = true
		path = append(path, next)
		cur = next
	}
}
