package consolidate

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/storyloom/loom/internal/ontology"
	"github.com/storyloom/loom/internal/store"
)

func newFixture(t *testing.T) (*Consolidator, *store.GraphStore) {
	t.Helper()
	backend, err := store.NewSQLiteBackend(filepath.Join(t.TempDir(), "graph.db"))
	require.NoError(t, err)

	reg := ontology.New(nil)
	s, err := store.Open(context.Background(), backend, reg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close(context.Background()) })

	return New(s, reg, nil, zap.NewNop()), s
}

func TestDigestAddsNodesAndEdges(t *testing.T) {
	c, s := newFixture(t)
	ctx := context.Background()

	res, err := c.Digest(ctx, Batch{
		Nodes: []CandidateNode{
			{ID: "Alice", Type: "CHARACTER", Description: "a knight"},
			{ID: "Bob", Type: "character"},
			{ID: "The Mill", Type: "location"},
		},
		Edges: []CandidateEdge{
			{Source: "Alice", Target: "Bob", Relation: "HINDERS"},
			{Source: "Alice", Target: "The Mill", Relation: "lives in"},
		},
	}, "project-1", "batch-1")
	require.NoError(t, err)

	assert.Equal(t, 3, res.NodesAdded)
	assert.Equal(t, 2, res.EdgesAdded)
	assert.Empty(t, res.Conflicts)

	alice := s.FindByName("Alice")
	require.NotNil(t, alice)
	assert.Equal(t, store.NodeCharacter, alice.Type)
	assert.Equal(t, "batch-1", alice.Meta.Source)

	bob := s.FindByName("Bob")
	require.NotNil(t, bob)
	assert.True(t, s.HasEdge(alice.ID, bob.ID, ontology.Hinders))
}

func TestDigestIdempotent(t *testing.T) {
	c, _ := newFixture(t)
	ctx := context.Background()

	batch := Batch{
		Nodes: []CandidateNode{
			{ID: "Alice", Type: "character", Description: "a knight"},
			{ID: "Bob", Type: "character", Description: "a miller"},
		},
		Edges: []CandidateEdge{
			{Source: "Alice", Target: "Bob", Relation: "BLOCKS"},
		},
	}

	first, err := c.Digest(ctx, batch, "p", "b1")
	require.NoError(t, err)
	assert.Equal(t, 2, first.NodesAdded)
	assert.Equal(t, 1, first.EdgesAdded)

	second, err := c.Digest(ctx, batch, "p", "b2")
	require.NoError(t, err)
	assert.Zero(t, second.NodesAdded)
	assert.Zero(t, second.EdgesAdded)
	assert.Empty(t, second.Conflicts)
}

func TestContradictionFlagsWithoutOverwrite(t *testing.T) {
	c, s := newFixture(t)
	ctx := context.Background()

	_, err := c.Digest(ctx, Batch{
		Nodes: []CandidateNode{{ID: "Alice", Type: "CHARACTER", Description: "loyal and trusting"}},
	}, "p", "batch-1")
	require.NoError(t, err)

	res, err := c.Digest(ctx, Batch{
		Nodes: []CandidateNode{{ID: "Alice", Description: "treacherous and hateful"}},
	}, "p", "batch-2")
	require.NoError(t, err)

	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, "Alice", res.Conflicts[0].Subject)
	assert.Equal(t, "loyal and trusting", res.Conflicts[0].Existing)
	assert.Equal(t, "treacherous and hateful", res.Conflicts[0].Proposed)

	alice := s.FindByName("Alice")
	require.NotNil(t, alice)
	assert.Equal(t, "loyal and trusting", alice.Description)

	logged, err := s.ListConflicts(ctx, "p")
	require.NoError(t, err)
	assert.Len(t, logged, 1)
}

func TestNonContradictoryDescriptionsMerge(t *testing.T) {
	c, s := newFixture(t)
	ctx := context.Background()

	_, err := c.Digest(ctx, Batch{
		Nodes: []CandidateNode{{ID: "Alice", Type: "character", Description: "a knight"}},
	}, "p", "b1")
	require.NoError(t, err)

	res, err := c.Digest(ctx, Batch{
		Nodes: []CandidateNode{{ID: "Alice", Description: "rides a grey mare"}},
	}, "p", "b2")
	require.NoError(t, err)
	assert.Empty(t, res.Conflicts)

	alice := s.FindByName("Alice")
	require.NotNil(t, alice)
	assert.Equal(t, "a knight | rides a grey mare", alice.Description)
}

func TestContradictsRelationBecomesConflictNotEdge(t *testing.T) {
	c, s := newFixture(t)
	ctx := context.Background()

	res, err := c.Digest(ctx, Batch{
		Nodes: []CandidateNode{
			{ID: "Alice", Type: "character"},
			{ID: "Bob", Type: "character"},
		},
		Edges: []CandidateEdge{
			{Source: "Alice", Target: "Bob", Relation: "CONTRADICTS", Description: "Alice cannot be in two places"},
		},
	}, "p", "b1")
	require.NoError(t, err)

	assert.Zero(t, res.EdgesAdded)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, "Alice", res.Conflicts[0].Subject)

	_, edges := s.Snapshot()
	assert.Empty(t, edges)
}

func TestMalformedCandidatesAreAbsorbed(t *testing.T) {
	c, _ := newFixture(t)
	ctx := context.Background()

	res, err := c.Digest(ctx, Batch{
		Nodes: []CandidateNode{
			{ID: "   "},
			{ID: "Alice", Type: "CHARACTER"},
		},
		Edges: []CandidateEdge{
			{Source: "", Target: "Alice", Relation: "HELPS"},
			{Source: "Alice", Target: "Nobody Known", Relation: "HELPS"},
			{Source: "Alice", Target: "Alice", Relation: "??some weird kind??"},
		},
	}, "p", "b1")
	require.NoError(t, err)

	assert.Equal(t, 1, res.NodesAdded)
	// Self-edge with a custom kind is tolerated and committed.
	assert.Equal(t, 1, res.EdgesAdded)
}

func TestEmptyBatch(t *testing.T) {
	c, _ := newFixture(t)

	res, err := c.Digest(context.Background(), Batch{}, "p", "b")
	require.NoError(t, err)
	assert.Zero(t, res.NodesAdded)
	assert.Zero(t, res.EdgesAdded)
}

func TestDisabledKindSkipped(t *testing.T) {
	backend, err := store.NewSQLiteBackend(filepath.Join(t.TempDir(), "graph.db"))
	require.NoError(t, err)
	reg := ontology.New(map[string]bool{"HELPS": false})
	s, err := store.Open(context.Background(), backend, reg, zap.NewNop())
	require.NoError(t, err)
	defer s.Close(context.Background())
	c := New(s, reg, nil, zap.NewNop())

	res, err := c.Digest(context.Background(), Batch{
		Nodes: []CandidateNode{
			{ID: "Alice", Type: "character"},
			{ID: "Bob", Type: "character"},
		},
		Edges: []CandidateEdge{{Source: "Alice", Target: "Bob", Relation: "HELPS"}},
	}, "p", "b")
	require.NoError(t, err)
	assert.Zero(t, res.EdgesAdded)
}

func TestDigestLockContention(t *testing.T) {
	c, _ := newFixture(t)

	lock := c.scopeLock("busy")
	lock.Lock()

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := c.Digest(context.Background(), Batch{}, "busy", "b")
		assert.ErrorIs(t, err, ErrLockContention)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("contended digest should fail fast, not block")
	}
	lock.Unlock()
	wg.Wait()

	// A different scope is unaffected.
	_, err := c.Digest(context.Background(), Batch{}, "other", "b")
	assert.NoError(t, err)
}
