package analytics

import (
	"github.com/storyloom/loom/internal/ontology"
)

// Pacing buckets per relationship kind. Custom kinds stay unbucketed and only
// dilute the ratios.
var pacingBuckets = map[string]string{
	ontology.Conflict.Name:      "action",
	ontology.Hinders.Name:       "action",
	ontology.Obstacle.Name:      "action",
	ontology.Causes.Name:        "action",
	ontology.FlawChallenge.Name: "action",
	ontology.Helps.Name:         "action",

	ontology.Introduces.Name:  "setup",
	ontology.AppearsIn.Name:   "setup",
	ontology.LocatedIn.Name:   "setup",
	ontology.Possesses.Name:   "setup",
	ontology.Knows.Name:       "setup",
	ontology.Foreshadows.Name: "setup",
	ontology.Loves.Name:       "setup",
	ontology.Hates.Name:       "setup",
	ontology.Fears.Name:       "setup",

	ontology.Resolves.Name: "resolution",
	ontology.Callback.Name: "resolution",
}

// Label thresholds, checked in order.
const (
	fastActionRatio       = 0.5
	slowSetupRatio        = 0.6
	concludingResolvRatio = 0.3
)

type PacingReport struct {
	Pacing string             `json:"pacing"`
	Ratios map[string]float64 `json:"ratios"`
}

// AnalyzePacing classifies relationship kinds into action/setup/resolution and
// derives a coarse pacing label from the ratios.
func (a *Service) AnalyzePacing() PacingReport {
	_, edges := a.store.Snapshot()

	counts := map[string]int{"action": 0, "setup": 0, "resolution": 0}
	for _, e := range edges {
		if bucket, ok := pacingBuckets[e.Kind.Name]; ok {
			counts[bucket]++
		}
	}

	ratios := map[string]float64{"action": 0, "setup": 0, "resolution": 0}
	if len(edges) > 0 {
		total := float64(len(edges))
		for bucket, c := range counts {
			ratios[bucket] = float64(c) / total
		}
	}

	pacing := "balanced"
	switch {
	case ratios["action"] > fastActionRatio:
		pacing = "fast"
	case ratios["setup"] > slowSetupRatio:
		pacing = "slow"
	case ratios["resolution"] > concludingResolvRatio:
		pacing = "concluding"
	}

	return PacingReport{Pacing: pacing, Ratios: ratios}
}
