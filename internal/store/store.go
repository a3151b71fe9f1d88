package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storyloom/loom/internal/ontology"
)

// GraphStore owns node and edge lifecycle. It is the single writer of the
// in-memory mirror: every mutation persists to the backend first and only
// then updates the mirror, so a persistence failure leaves the mirror
// untouched. Readers go through the query methods, which take the read lock
// or hand out copies.
type GraphStore struct {
	backend Backend
	reg     *ontology.Registry
	log     *zap.Logger

	mu sync.RWMutex
	m  *mirror
}

// Open loads the persisted snapshot into a fresh mirror.
func Open(ctx context.Context, backend Backend, reg *ontology.Registry, log *zap.Logger) (*GraphStore, error) {
	nodes, err := backend.LoadNodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot nodes: %w", err)
	}
	edges, err := backend.LoadEdges(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot edges: %w", err)
	}

	m := newMirror()
	for _, n := range nodes {
		m.addNode(n)
	}
	for _, e := range edges {
		m.addEdge(e)
	}

	log.Info("graph snapshot loaded", zap.Int("nodes", len(nodes)), zap.Int("edges", len(edges)))
	return &GraphStore{backend: backend, reg: reg, log: log, m: m}, nil
}

func (s *GraphStore) Close(ctx context.Context) error {
	return s.backend.Close(ctx)
}

// Registry exposes the ontology the store validates against.
func (s *GraphStore) Registry() *ontology.Registry {
	return s.reg
}

// AddNode assigns an ID if absent, persists the node, and mirrors it.
func (s *GraphStore) AddNode(ctx context.Context, n Node) (Node, error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.Type == "" {
		n.Type = NodeConcept
	}
	if n.Meta.IndexedAt.IsZero() {
		n.Meta.IndexedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.InsertNode(ctx, n); err != nil {
		return Node{}, err
	}
	s.m.addNode(n)
	return n, nil
}

// AddEdge validates both endpoints against the mirror, persists, and mirrors.
// A missing endpoint returns *RejectedEdgeError and writes nothing.
func (s *GraphStore) AddEdge(ctx context.Context, e Edge) (Edge, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.m.nodes[e.SourceID]; !ok {
		return Edge{}, &RejectedEdgeError{SourceID: e.SourceID, TargetID: e.TargetID, Missing: e.SourceID}
	}
	if _, ok := s.m.nodes[e.TargetID]; !ok {
		return Edge{}, &RejectedEdgeError{SourceID: e.SourceID, TargetID: e.TargetID, Missing: e.TargetID}
	}

	if err := s.backend.InsertEdge(ctx, e); err != nil {
		return Edge{}, err
	}
	s.m.addEdge(e)
	return e, nil
}

// UpdateDescription rewrites a node's description, persisting first.
func (s *GraphStore) UpdateDescription(ctx context.Context, id, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.m.nodes[id]
	if !ok {
		return fmt.Errorf("node %s does not exist", id)
	}
	if err := s.backend.UpdateNodeDescription(ctx, id, description); err != nil {
		return err
	}
	n.Description = description
	s.m.addNode(n)
	return nil
}

// DeleteNode removes the node and cascades to every edge touching it,
// atomically with respect to the mirror.
func (s *GraphStore) DeleteNode(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.m.nodes[id]; !ok {
		return fmt.Errorf("node %s does not exist", id)
	}
	if err := s.backend.DeleteNode(ctx, id); err != nil {
		return err
	}
	s.m.removeNode(id)
	return nil
}

// FindByName is a case-insensitive partial match; ties go to the lowest ID.
func (s *GraphStore) FindByName(name string) *Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.m.findByName(name)
}

// GetNode returns the node by ID, or nil.
func (s *GraphStore) GetNode(id string) *Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n, ok := s.m.nodes[id]; ok {
		return &n
	}
	return nil
}

// HasEdge reports whether an edge with this exact (source, target, kind)
// triple already exists.
func (s *GraphStore) HasEdge(sourceID, targetID string, kind ontology.Kind) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.m.hasEdge(sourceID, targetID, kind.Name)
}

// ShortestPath returns node IDs along a shortest path between a and b, or nil.
func (s *GraphStore) ShortestPath(a, b string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.m.shortestPath(a, b)
}

// CentralRank returns the top n nodes by PageRank.
func (s *GraphStore) CentralRank(n int) []RankedNode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.m.pageRank(n)
}

// EgoNetwork returns the induced subgraph within radius hops of the named
// node. Unknown names yield an empty subgraph, not an error.
func (s *GraphStore) EgoNetwork(name string, radius int) Subgraph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.m.egoNetwork(name, radius)
}

// Snapshot hands out copies of all nodes and edges for read-only analysis.
func (s *GraphStore) Snapshot() ([]Node, []Edge) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.m.snapshot()
}

// AppendConflict writes to the append-only conflict log.
func (s *GraphStore) AppendConflict(ctx context.Context, c Conflict) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	return s.backend.AppendConflict(ctx, c)
}

// ListConflicts returns the conflict log, optionally filtered by scope.
func (s *GraphStore) ListConflicts(ctx context.Context, scope string) ([]Conflict, error) {
	return s.backend.ListConflicts(ctx, scope)
}

// Meta returns snapshot metadata.
func (s *GraphStore) Meta(ctx context.Context) (SnapshotMeta, error) {
	return s.backend.Meta(ctx)
}

// RecordDigest bumps the consolidation history counter.
func (s *GraphStore) RecordDigest(ctx context.Context, source string) error {
	return s.backend.RecordDigest(ctx, source)
}
