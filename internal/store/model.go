package store

import (
	"fmt"
	"time"

	"github.com/storyloom/loom/internal/ontology"
)

// NodeType tags what a node represents. The set below is what the engine
// understands; unknown strings are carried as-is for extensions.
type NodeType string

const (
	NodeCharacter NodeType = "character"
	NodeLocation  NodeType = "location"
	NodeObject    NodeType = "object"
	NodeEvent     NodeType = "event"
	NodeTheme     NodeType = "theme"
	NodeConcept   NodeType = "concept"
)

// NodeMetadata carries the optional side-channel data a node may arrive with.
// Extra is the open-ended extension bag; everything the engine itself reads
// has a named field.
type NodeMetadata struct {
	Embedding []float32         `json:"embedding,omitempty"`
	IndexedAt time.Time         `json:"indexed_at,omitempty"`
	Source    string            `json:"source,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// Node is a persisted story entity.
type Node struct {
	ID          string       `json:"id"`
	Type        NodeType     `json:"type"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Content     string       `json:"content,omitempty"`
	Meta        NodeMetadata `json:"meta,omitempty"`
}

// Edge is a typed, directed relationship between two nodes. Resolved marks an
// obstacle or setup that has already paid off; tension scoring only counts
// unresolved edges.
type Edge struct {
	ID          string        `json:"id"`
	SourceID    string        `json:"source_id"`
	TargetID    string        `json:"target_id"`
	Kind        ontology.Kind `json:"kind"`
	Weight      float64       `json:"weight,omitempty"`
	SceneRef    string        `json:"scene_ref,omitempty"`
	Resolved    bool          `json:"resolved,omitempty"`
	Description string        `json:"description,omitempty"`
}

// ConflictSeverity grades how much a recorded conflict should worry a reviewer.
type ConflictSeverity string

const (
	ConflictInfo        ConflictSeverity = "info"
	ConflictNeedsReview ConflictSeverity = "needs_review"
	ConflictBreaking    ConflictSeverity = "breaking"
)

// Conflict is an append-only record of a candidate fact disagreeing with the
// graph. It is never auto-resolved; it sits in the log until a human or a
// policy decision clears it.
type Conflict struct {
	ID        string           `json:"id"`
	Subject   string           `json:"subject"`
	Existing  string           `json:"existing"`
	Proposed  string           `json:"proposed"`
	Severity  ConflictSeverity `json:"severity"`
	Source    string           `json:"source"`
	Scope     string           `json:"scope"`
	CreatedAt time.Time        `json:"created_at"`
}

// SnapshotMeta describes the persisted graph artifact.
type SnapshotMeta struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Digests   int       `json:"digests"`
}

// RankedNode pairs a node with an analytical score.
type RankedNode struct {
	Node  Node    `json:"node"`
	Score float64 `json:"score"`
}

// Subgraph is an induced node/edge set, the shape ego-network queries return.
type Subgraph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// RejectedEdgeError reports an edge whose endpoint does not exist at commit
// time. The edge is rejected whole; no partial state is written.
type RejectedEdgeError struct {
	SourceID string
	TargetID string
	Missing  string
}

func (e *RejectedEdgeError) Error() string {
	return fmt.Sprintf("edge %s -> %s rejected: endpoint %s does not exist", e.SourceID, e.TargetID, e.Missing)
}
