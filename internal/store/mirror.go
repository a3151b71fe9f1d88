package store

import (
	"sort"
	"strings"
)

// mirror is the in-memory directed multigraph kept in lockstep with the
// backend. It is owned exclusively by GraphStore; all access happens under the
// store's lock and other components only ever see copies.
type mirror struct {
	nodes map[string]Node
	out   map[string][]Edge
	in    map[string][]Edge
}

func newMirror() *mirror {
	return &mirror{
		nodes: make(map[string]Node),
		out:   make(map[string][]Edge),
		in:    make(map[string][]Edge),
	}
}

func (m *mirror) addNode(n Node) {
	m.nodes[n.ID] = n
}

func (m *mirror) addEdge(e Edge) {
	m.out[e.SourceID] = append(m.out[e.SourceID], e)
	m.in[e.TargetID] = append(m.in[e.TargetID], e)
}

func (m *mirror) removeNode(id string) {
	delete(m.nodes, id)

	touches := func(e Edge) bool { return e.SourceID == id || e.TargetID == id }
	for nid, edges := range m.out {
		kept := edges[:0]
		for _, e := range edges {
			if !touches(e) {
				kept = append(kept, e)
			}
		}
		m.out[nid] = kept
	}
	for nid, edges := range m.in {
		kept := edges[:0]
		for _, e := range edges {
			if !touches(e) {
				kept = append(kept, e)
			}
		}
		m.in[nid] = kept
	}
	delete(m.out, id)
	delete(m.in, id)
}

// findByName returns the first node whose name contains the query,
// case-insensitively, ties broken by lowest ID. Nil if nothing matches.
func (m *mirror) findByName(name string) *Node {
	q := strings.ToLower(strings.TrimSpace(name))
	if q == "" {
		return nil
	}

	var best *Node
	for id, n := range m.nodes {
		if !strings.Contains(strings.ToLower(n.Name), q) {
			continue
		}
		if best == nil || id < best.ID {
			node := n
			best = &node
		}
	}
	return best
}

// neighbors returns the undirected adjacency of a node (edge direction does
// not matter for connectivity queries).
func (m *mirror) neighbors(id string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range m.out[id] {
		if !seen[e.TargetID] {
			seen[e.TargetID] = true
			out = append(out, e.TargetID)
		}
	}
	for _, e := range m.in[id] {
		if !seen[e.SourceID] {
			seen[e.SourceID] = true
			out = append(out, e.SourceID)
		}
	}
	sort.Strings(out)
	return out
}

// shortestPath runs BFS over the undirected projection. Returns nil when no
// path exists or either endpoint is unknown.
func (m *mirror) shortestPath(a, b string) []string {
	if _, ok := m.nodes[a]; !ok {
		return nil
	}
	if _, ok := m.nodes[b]; !ok {
		return nil
	}
	if a == b {
		return []string{a}
	}

	prev := map[string]string{a: ""}
	queue := []string{a}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, v := range m.neighbors(u) {
			if _, visited := prev[v]; visited {
				continue
			}
			prev[v] = u
			if v == b {
				var path []string
				for cur := b; cur != ""; cur = prev[cur] {
					path = append([]string{cur}, path...)
				}
				return path
			}
			queue = append(queue, v)
		}
	}
	return nil
}

// pageRank runs the standard iterative algorithm over the directed graph and
// returns the top n nodes by score. Empty graph yields empty results.
func (m *mirror) pageRank(n int) []RankedNode {
	if len(m.nodes) == 0 || n <= 0 {
		return nil
	}

	const (
		damping    = 0.85
		iterations = 30
	)

	ids := make([]string, 0, len(m.nodes))
	for id := range m.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rank := make(map[string]float64, len(ids))
	base := 1.0 / float64(len(ids))
	for _, id := range ids {
		rank[id] = base
	}

	outDegree := make(map[string]int, len(ids))
	for id, edges := range m.out {
		outDegree[id] = len(edges)
	}

	for i := 0; i < iterations; i++ {
		next := make(map[string]float64, len(ids))
		var sinkMass float64
		for _, id := range ids {
			if outDegree[id] == 0 {
				sinkMass += rank[id]
			}
		}
		for _, id := range ids {
			sum := 0.0
			for _, e := range m.in[id] {
				if d := outDegree[e.SourceID]; d > 0 {
					sum += rank[e.SourceID] / float64(d)
				}
			}
			// Sink mass is spread uniformly, as in the classic formulation.
			next[id] = (1-damping)*base + damping*(sum+sinkMass*base)
		}
		rank = next
	}

	ranked := make([]RankedNode, 0, len(ids))
	for _, id := range ids {
		ranked = append(ranked, RankedNode{Node: m.nodes[id], Score: rank[id]})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Node.ID < ranked[j].Node.ID
	})
	if n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}

// egoNetwork returns the induced subgraph within radius hops of the named
// node, or an empty subgraph if the name resolves to nothing.
func (m *mirror) egoNetwork(name string, radius int) Subgraph {
	center := m.findByName(name)
	if center == nil || radius < 0 {
		return Subgraph{}
	}

	depth := map[string]int{center.ID: 0}
	queue := []string{center.ID}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		if depth[u] >= radius {
			continue
		}
		for _, v := range m.neighbors(u) {
			if _, seen := depth[v]; !seen {
				depth[v] = depth[u] + 1
				queue = append(queue, v)
			}
		}
	}

	ids := make([]string, 0, len(depth))
	for id := range depth {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var sub Subgraph
	for _, id := range ids {
		sub.Nodes = append(sub.Nodes, m.nodes[id])
	}
	for _, id := range ids {
		for _, e := range m.out[id] {
			if _, ok := depth[e.TargetID]; ok {
				sub.Edges = append(sub.Edges, e)
			}
		}
	}
	return sub
}

// snapshot returns copies of all nodes and edges for read-only consumers.
func (m *mirror) snapshot() ([]Node, []Edge) {
	nodes := make([]Node, 0, len(m.nodes))
	for _, n := range m.nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	var edges []Edge
	ids := make([]string, 0, len(m.out))
	for id := range m.out {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		edges = append(edges, m.out[id]...)
	}
	return nodes, edges
}

func (m *mirror) hasEdge(source, target, kindName string) bool {
	for _, e := range m.out[source] {
		if e.TargetID == target && e.Kind.Name == kindName {
			return true
		}
	}
	return false
}
