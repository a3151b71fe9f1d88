// Package analytics derives narrative metrics from the graph mirror. All
// functions are read-only: they work from snapshot copies handed out by the
// store and never touch mirror internals.
package analytics

import (
	"github.com/storyloom/loom/internal/store"
)

type Service struct {
	store *store.GraphStore
}

func New(s *store.GraphStore) *Service {
	return &Service{store: s}
}

// Summary is the aggregate story-health view downstream agents consume.
type Summary struct {
	Communities map[string][]string `json:"communities"`
	Bridges     []BridgeCharacter   `json:"bridges"`
	Tension     TensionReport       `json:"tension"`
	Pacing      PacingReport        `json:"pacing"`
}

func (a *Service) Summarize(topK int) Summary {
	return Summary{
		Communities: a.DetectCommunities(),
		Bridges:     a.FindBridgeCharacters(topK),
		Tension:     a.CalculateTension(),
		Pacing:      a.AnalyzePacing(),
	}
}

// characterSubgraph projects the snapshot down to character nodes and the
// edges between them.
func characterSubgraph(nodes []store.Node, edges []store.Edge) ([]store.Node, []store.Edge) {
	var chars []store.Node
	isChar := make(map[string]bool)
	for _, n := range nodes {
		if n.Type == store.NodeCharacter {
			chars = append(chars, n)
			isChar[n.ID] = true
		}
	}
	var kept []store.Edge
	for _, e := range edges {
		if isChar[e.SourceID] && isChar[e.TargetID] {
			kept = append(kept, e)
		}
	}
	return chars, kept
}
