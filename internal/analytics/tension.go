package analytics

import (
	"github.com/storyloom/loom/internal/ontology"
)

// Tension-bearing kinds and their weights. Resolved edges stop contributing.
// Tunable; the level cutoffs below partition low/medium/high.
var tensionWeights = map[string]float64{
	ontology.Conflict.Name:      1.0,
	ontology.Obstacle.Name:      1.0,
	ontology.Contradicts.Name:   1.2,
	ontology.FlawChallenge.Name: 0.9,
	ontology.Hinders.Name:       0.8,
	ontology.Foreshadows.Name:   0.5,
}

const (
	tensionSmoothing = 5.0
	tensionMedium    = 0.3
	tensionHigh      = 0.6
)

type TensionReport struct {
	Score     float64        `json:"score"`
	Level     string         `json:"level"`
	Breakdown map[string]int `json:"breakdown"`
}

// CalculateTension sums weighted counts of unresolved tension-bearing edges,
// normalized by total edge count plus a smoothing constant and clamped to
// [0,1]. An empty graph scores 0 / "low".
func (a *Service) CalculateTension() TensionReport {
	_, edges := a.store.Snapshot()

	breakdown := make(map[string]int)
	weighted := 0.0
	for _, e := range edges {
		if e.Resolved {
			continue
		}
		w, bearing := tensionWeights[e.Kind.Name]
		if !bearing {
			continue
		}
		breakdown[e.Kind.Name]++
		edgeWeight := e.Weight
		if edgeWeight <= 0 {
			edgeWeight = 1
		}
		weighted += w * edgeWeight
	}

	score := 0.0
	if len(edges) > 0 {
		score = weighted / (float64(len(edges)) + tensionSmoothing)
	}
	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}

	level := "low"
	switch {
	case score >= tensionHigh:
		level = "high"
	case score >= tensionMedium:
		level = "medium"
	}

	return TensionReport{Score: score, Level: level, Breakdown: breakdown}
}
