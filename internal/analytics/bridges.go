package analytics

import (
	"sort"

	"github.com/storyloom/loom/internal/store"
)

// Role thresholds. These are editorial judgment calls, not laws; tune freely.
const (
	protagonistCentrality = 0.1
	majorCentrality       = 0.05
	supportingCentrality  = 0.02
	majorRankCutoff       = 3
)

type BridgeCharacter struct {
	Name       string  `json:"name"`
	Centrality float64 `json:"centrality"`
	Role       string  `json:"role"`
}

// FindBridgeCharacters ranks character nodes by betweenness centrality over
// the undirected character subgraph and infers a narrative role from rank and
// score. When every betweenness score is zero (tiny or star-free casts),
// degree centrality stands in so small graphs still rank.
func (a *Service) FindBridgeCharacters(topK int) []BridgeCharacter {
	nodes, edges := a.store.Snapshot()
	chars, charEdges := characterSubgraph(nodes, edges)
	if len(chars) == 0 || topK <= 0 {
		return nil
	}

	scores := betweenness(chars, charEdges)

	allZero := true
	for _, s := range scores {
		if s > 0 {
			allZero = false
			break
		}
	}
	if allZero {
		scores = degreeCentrality(chars, charEdges)
	}

	ranked := make([]BridgeCharacter, 0, len(chars))
	for _, n := range chars {
		ranked = append(ranked, BridgeCharacter{Name: n.Name, Centrality: scores[n.ID]})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Centrality != ranked[j].Centrality {
			return ranked[i].Centrality > ranked[j].Centrality
		}
		return ranked[i].Name < ranked[j].Name
	})

	for i := range ranked {
		ranked[i].Role = inferRole(i, ranked[i].Centrality)
	}
	if topK < len(ranked) {
		ranked = ranked[:topK]
	}
	return ranked
}

func inferRole(rank int, centrality float64) string {
	switch {
	case rank == 0 && centrality > protagonistCentrality:
		return "protagonist"
	case rank < majorRankCutoff && centrality > majorCentrality:
		return "major"
	case centrality > supportingCentrality:
		return "supporting"
	default:
		return "minor"
	}
}

// betweenness is Brandes' algorithm on the undirected unweighted projection,
// normalized by (n-1)(n-2)/2 so scores land in [0,1].
func betweenness(nodes []store.Node, edges []store.Edge) map[string]float64 {
	adj := make(map[string][]string)
	for _, e := range edges {
		adj[e.SourceID] = append(adj[e.SourceID], e.TargetID)
		adj[e.TargetID] = append(adj[e.TargetID], e.SourceID)
	}

	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	sort.Strings(ids)

	score := make(map[string]float64, len(ids))
	for _, s := range ids {
		// Single-source shortest paths.
		var stack []string
		pred := make(map[string][]string)
		sigma := map[string]float64{s: 1}
		dist := map[string]int{s: 0}
		queue := []string{s}

		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			stack = append(stack, v)
			for _, w := range adj[v] {
				if _, seen := dist[w]; !seen {
					dist[w] = dist[v] + 1
					queue = append(queue, w)
				}
				if dist[w] == dist[v]+1 {
					sigma[w] += sigma[v]
					pred[w] = append(pred[w], v)
				}
			}
		}

		// Accumulation.
		delta := make(map[string]float64)
		for i := len(stack) - 1; i >= 0; i-- {
			w := stack[i]
			for _, v := range pred[w] {
				delta[v] += sigma[v] / sigma[w] * (1 + delta[w])
			}
			if w != s {
				score[w] += delta[w]
			}
		}
	}

	n := float64(len(ids))
	if n > 2 {
		// Each pair is counted twice in the undirected accumulation.
		norm := (n - 1) * (n - 2)
		for id := range score {
			score[id] /= norm
		}
	}
	return score
}

func degreeCentrality(nodes []store.Node, edges []store.Edge) map[string]float64 {
	degree := make(map[string]float64)
	for _, e := range edges {
		degree[e.SourceID]++
		degree[e.TargetID]++
	}
	if len(nodes) > 1 {
		norm := float64(len(nodes) - 1)
		for id := range degree {
			degree[id] /= norm
		}
	}
	return degree
}
