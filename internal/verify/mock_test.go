package verify

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/storyloom/loom/internal/analytics"
	"github.com/storyloom/loom/internal/llm"
	"github.com/storyloom/loom/internal/ontology"
	"github.com/storyloom/loom/internal/store"
)

func openTestStore(t *testing.T) *store.GraphStore {
	t.Helper()
	backend, err := store.NewSQLiteBackend(filepath.Join(t.TempDir(), "graph.db"))
	require.NoError(t, err)

	s, err := store.Open(context.Background(), backend, ontology.New(nil), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

func addCharacter(t *testing.T, s *store.GraphStore, name string, extra map[string]string) store.Node {
	t.Helper()
	n, err := s.AddNode(context.Background(), store.Node{
		Type: store.NodeCharacter,
		Name: name,
		Meta: store.NodeMetadata{Extra: extra},
	})
	require.NoError(t, err)
	return n
}

func addEdge(t *testing.T, s *store.GraphStore, src, dst store.Node, kind ontology.Kind, sceneRef string) store.Edge {
	t.Helper()
	e, err := s.AddEdge(context.Background(), store.Edge{
		SourceID: src.ID,
		TargetID: dst.ID,
		Kind:     kind,
		SceneRef: sceneRef,
	})
	require.NoError(t, err)
	return e
}

// slowGraph injects latency in front of every read so deadline behavior can
// be exercised deterministically.
type slowGraph struct {
	inner GraphReader
	delay time.Duration
}

func (g *slowGraph) Snapshot() ([]store.Node, []store.Edge) {
	time.Sleep(g.delay)
	return g.inner.Snapshot()
}

func (g *slowGraph) FindByName(name string) *store.Node {
	time.Sleep(g.delay)
	return g.inner.FindByName(name)
}

func (g *slowGraph) EgoNetwork(name string, radius int) store.Subgraph {
	time.Sleep(g.delay)
	return g.inner.EgoNetwork(name, radius)
}

// stubAnalyzer returns a canned report or error.
type stubAnalyzer struct {
	report *llm.Report
	err    error
	called bool
}

func (a *stubAnalyzer) Analyze(ctx context.Context, content, graphContext string) (*llm.Report, error) {
	a.called = true
	if a.err != nil {
		return nil, a.err
	}
	return a.report, nil
}

func newTestEngine(t *testing.T, s *store.GraphStore, analyzer llm.Analyzer, opts Options) *Engine {
	t.Helper()
	queue := NewQueue(8, zap.NewNop())
	return NewEngine(s, analytics.New(s), analyzer, queue, opts, zap.NewNop())
}
