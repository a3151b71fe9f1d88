package consolidate

import (
	"github.com/storyloom/loom/internal/store"
)

// CandidateNode is what fact producers hand us. ID doubles as the display
// name; producers do not know stable graph IDs.
type CandidateNode struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// CandidateEdge names its endpoints the way the producer saw them; resolution
// to node IDs happens during digestion. Relation may be any string.
type CandidateEdge struct {
	Source      string `json:"source"`
	Target      string `json:"target"`
	Relation    string `json:"relation"`
	Description string `json:"description"`
}

// Batch is one unit of candidate facts. Missing arrays are fine.
type Batch struct {
	Nodes []CandidateNode `json:"nodes"`
	Edges []CandidateEdge `json:"edges"`
}

// Result aggregates one digest run.
type Result struct {
	NodesAdded int              `json:"nodes_added"`
	EdgesAdded int              `json:"edges_added"`
	Conflicts  []store.Conflict `json:"conflicts"`
}
