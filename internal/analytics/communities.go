package analytics

import (
	"fmt"
	"sort"

	"github.com/storyloom/loom/internal/store"
)

const lpaMaxIterations = 20

// DetectCommunities clusters character nodes by label propagation over the
// undirected character subgraph. Fewer than two characters collapse to a
// single "main" bucket; if propagation produces nothing usable, connected
// components serve as the fallback.
func (a *Service) DetectCommunities() map[string][]string {
	nodes, edges := a.store.Snapshot()
	chars, charEdges := characterSubgraph(nodes, edges)

	if len(chars) < 2 {
		names := make([]string, 0, len(chars))
		for _, n := range chars {
			names = append(names, n.Name)
		}
		return map[string][]string{"main": names}
	}

	clusters := labelPropagation(chars, charEdges)
	if len(clusters) == 0 {
		clusters = connectedComponents(chars, charEdges)
	}

	// Largest first, then deterministic by first member.
	sort.Slice(clusters, func(i, j int) bool {
		if len(clusters[i]) != len(clusters[j]) {
			return len(clusters[i]) > len(clusters[j])
		}
		return clusters[i][0] < clusters[j][0]
	})

	out := make(map[string][]string, len(clusters))
	for i, cluster := range clusters {
		out[fmt.Sprintf("community_%d", i+1)] = cluster
	}
	return out
}

// labelPropagation is the standard LPA: every node starts with its own label
// and repeatedly adopts the weighted majority label of its neighbors until no
// label changes. Parallel edges count as stronger connections.
func labelPropagation(nodes []store.Node, edges []store.Edge) [][]string {
	adj := make(map[string]map[string]int)
	names := make(map[string]string, len(nodes))
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		names[n.ID] = n.Name
		adj[n.ID] = make(map[string]int)
		ids = append(ids, n.ID)
	}
	sort.Strings(ids)

	for _, e := range edges {
		adj[e.SourceID][e.TargetID]++
		adj[e.TargetID][e.SourceID]++
	}

	labels := make(map[string]string, len(ids))
	for _, id := range ids {
		labels[id] = id
	}

	for iter := 0; iter < lpaMaxIterations; iter++ {
		changed := 0
		for _, u := range ids {
			neighbors := adj[u]
			if len(neighbors) == 0 {
				continue
			}

			counts := make(map[string]int)
			max := 0
			for v, weight := range neighbors {
				counts[labels[v]] += weight
				if counts[labels[v]] > max {
					max = counts[labels[v]]
				}
			}

			var candidates []string
			for label, count := range counts {
				if count == max {
					candidates = append(candidates, label)
				}
			}
			// Deterministic tie-break: largest label wins.
			sort.Strings(candidates)
			best := candidates[len(candidates)-1]

			if labels[u] != best {
				labels[u] = best
				changed++
			}
		}
		if changed == 0 {
			break
		}
	}

	clusters := make(map[string][]string)
	for _, id := range ids {
		clusters[labels[id]] = append(clusters[labels[id]], names[id])
	}

	var out [][]string
	for _, members := range clusters {
		sort.Strings(members)
		out = append(out, members)
	}
	return out
}

// connectedComponents is the coarse fallback: undirected reachability.
func connectedComponents(nodes []store.Node, edges []store.Edge) [][]string {
	adj := make(map[string][]string)
	names := make(map[string]string, len(nodes))
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		names[n.ID] = n.Name
		ids = append(ids, n.ID)
	}
	sort.Strings(ids)

	for _, e := range edges {
		adj[e.SourceID] = append(adj[e.SourceID], e.TargetID)
		adj[e.TargetID] = append(adj[e.TargetID], e.SourceID)
	}

	visited := make(map[string]bool)
	var out [][]string
	for _, id := range ids {
		if visited[id] {
			continue
		}
		var members []string
		stack := []string{id}
		visited[id] = true
		for len(stack) > 0 {
			u := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			members = append(members, names[u])
			for _, v := range adj[u] {
				if !visited[v] {
					visited[v] = true
					stack = append(stack, v)
				}
			}
		}
		sort.Strings(members)
		out = append(out, members)
	}
	return out
}
