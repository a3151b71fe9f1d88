package analytics

import (
	"context"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/storyloom/loom/internal/ontology"
	"github.com/storyloom/loom/internal/store"
)

type fixture struct {
	svc   *Service
	store *store.GraphStore
	ids   map[string]string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend, err := store.NewSQLiteBackend(filepath.Join(t.TempDir(), "graph.db"))
	require.NoError(t, err)
	s, err := store.Open(context.Background(), backend, ontology.New(nil), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close(context.Background()) })
	return &fixture{svc: New(s), store: s, ids: make(map[string]string)}
}

func (f *fixture) addCharacter(t *testing.T, name string) {
	t.Helper()
	n, err := f.store.AddNode(context.Background(), store.Node{Type: store.NodeCharacter, Name: name})
	require.NoError(t, err)
	f.ids[name] = n.ID
}

func (f *fixture) addEdge(t *testing.T, src, tgt string, kind ontology.Kind) {
	t.Helper()
	_, err := f.store.AddEdge(context.Background(), store.Edge{
		SourceID: f.ids[src], TargetID: f.ids[tgt], Kind: kind,
	})
	require.NoError(t, err)
}

func TestDetectCommunitiesTwoClusters(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"A1", "A2", "A3", "B1", "B2", "B3"} {
		f.addCharacter(t, name)
	}
	// Two triangles, no bridge.
	f.addEdge(t, "A1", "A2", ontology.Loves)
	f.addEdge(t, "A2", "A3", ontology.Loves)
	f.addEdge(t, "A3", "A1", ontology.Loves)
	f.addEdge(t, "B1", "B2", ontology.Hates)
	f.addEdge(t, "B2", "B3", ontology.Hates)
	f.addEdge(t, "B3", "B1", ontology.Hates)

	communities := f.svc.DetectCommunities()
	assert.Len(t, communities, 2)

	total := 0
	for _, members := range communities {
		total += len(members)
	}
	assert.Equal(t, 6, total)
}

func TestDetectCommunitiesFewCharacters(t *testing.T) {
	f := newFixture(t)
	communities := f.svc.DetectCommunities()
	require.Contains(t, communities, "main")
	assert.Empty(t, communities["main"])

	f.addCharacter(t, "Alice")
	communities = f.svc.DetectCommunities()
	assert.Equal(t, []string{"Alice"}, communities["main"])
}

func TestDetectCommunitiesIgnoresNonCharacters(t *testing.T) {
	f := newFixture(t)
	f.addCharacter(t, "Alice")
	f.addCharacter(t, "Bob")
	_, err := f.store.AddNode(context.Background(), store.Node{Type: store.NodeLocation, Name: "The Mill"})
	require.NoError(t, err)

	f.addEdge(t, "Alice", "Bob", ontology.Knows)

	communities := f.svc.DetectCommunities()
	for _, members := range communities {
		assert.NotContains(t, members, "The Mill")
	}
}

func TestBridgeCharactersChain(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"Left", "Mid", "Right", "FarLeft", "FarRight"} {
		f.addCharacter(t, name)
	}
	// FarLeft - Left - Mid - Right - FarRight: Mid carries the most paths.
	f.addEdge(t, "FarLeft", "Left", ontology.Knows)
	f.addEdge(t, "Left", "Mid", ontology.Knows)
	f.addEdge(t, "Mid", "Right", ontology.Knows)
	f.addEdge(t, "Right", "FarRight", ontology.Knows)

	ranked := f.svc.FindBridgeCharacters(5)
	require.Len(t, ranked, 5)
	assert.Equal(t, "Mid", ranked[0].Name)
	assert.Greater(t, ranked[0].Centrality, ranked[1].Centrality)
	assert.Equal(t, "protagonist", ranked[0].Role)
}

func TestBridgeCharactersPairFallsBackToDegree(t *testing.T) {
	f := newFixture(t)
	f.addCharacter(t, "Alice")
	f.addCharacter(t, "Bob")
	f.addEdge(t, "Alice", "Bob", ontology.Hinders)

	ranked := f.svc.FindBridgeCharacters(1)
	require.Len(t, ranked, 1)
	assert.Contains(t, []string{"Alice", "Bob"}, ranked[0].Name)
	assert.Greater(t, ranked[0].Centrality, 0.0)
}

func TestBridgeCharactersTopK(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"A", "B", "C", "D"} {
		f.addCharacter(t, name)
	}
	f.addEdge(t, "A", "B", ontology.Knows)
	f.addEdge(t, "B", "C", ontology.Knows)
	f.addEdge(t, "C", "D", ontology.Knows)

	assert.Len(t, f.svc.FindBridgeCharacters(2), 2)
	assert.Empty(t, f.svc.FindBridgeCharacters(0))
}

func TestTensionEmptyGraph(t *testing.T) {
	f := newFixture(t)
	report := f.svc.CalculateTension()
	assert.Zero(t, report.Score)
	assert.Equal(t, "low", report.Level)
}

func TestTensionIncreasesWithHinderingEdge(t *testing.T) {
	f := newFixture(t)
	f.addCharacter(t, "Alice")
	f.addCharacter(t, "Bob")

	before := f.svc.CalculateTension().Score
	f.addEdge(t, "Alice", "Bob", ontology.Hinders)
	after := f.svc.CalculateTension()

	assert.Greater(t, after.Score, before)
	assert.Equal(t, 1, after.Breakdown[ontology.Hinders.Name])
}

func TestTensionIgnoresResolvedEdges(t *testing.T) {
	f := newFixture(t)
	f.addCharacter(t, "Alice")
	f.addCharacter(t, "Bob")
	_, err := f.store.AddEdge(context.Background(), store.Edge{
		SourceID: f.ids["Alice"], TargetID: f.ids["Bob"],
		Kind: ontology.Obstacle, Resolved: true,
	})
	require.NoError(t, err)

	report := f.svc.CalculateTension()
	assert.Zero(t, report.Score)
	assert.Empty(t, report.Breakdown)
}

// Property: the score stays in [0,1] for arbitrary graphs, including ones
// stacked with maximum-weight tension edges.
func TestTensionScoreBounds(t *testing.T) {
	f := newFixture(t)
	names := []string{"A", "B", "C", "D", "E"}
	for _, n := range names {
		f.addCharacter(t, n)
	}

	kinds := []ontology.Kind{
		ontology.Conflict, ontology.Obstacle, ontology.Contradicts,
		ontology.FlawChallenge, ontology.Hinders, ontology.Knows,
	}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		src := names[rng.Intn(len(names))]
		tgt := names[rng.Intn(len(names))]
		_, err := f.store.AddEdge(context.Background(), store.Edge{
			SourceID: f.ids[src], TargetID: f.ids[tgt],
			Kind:   kinds[rng.Intn(len(kinds))],
			Weight: rng.Float64() * 10,
		})
		require.NoError(t, err)

		score := f.svc.CalculateTension().Score
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
	}
}

func TestPacingLabels(t *testing.T) {
	f := newFixture(t)
	f.addCharacter(t, "Alice")
	f.addCharacter(t, "Bob")

	report := f.svc.AnalyzePacing()
	assert.Equal(t, "balanced", report.Pacing)

	f.addEdge(t, "Alice", "Bob", ontology.Conflict)
	f.addEdge(t, "Alice", "Bob", ontology.Causes)
	f.addEdge(t, "Bob", "Alice", ontology.Hinders)
	report = f.svc.AnalyzePacing()
	assert.Equal(t, "fast", report.Pacing)
	assert.Equal(t, 1.0, report.Ratios["action"])
}

func TestPacingSlowAndConcluding(t *testing.T) {
	f := newFixture(t)
	f.addCharacter(t, "Alice")
	f.addCharacter(t, "Bob")

	for i := 0; i < 7; i++ {
		f.addEdge(t, "Alice", "Bob", ontology.Knows)
	}
	f.addEdge(t, "Alice", "Bob", ontology.Conflict)
	assert.Equal(t, "slow", f.svc.AnalyzePacing().Pacing)

	f2 := newFixture(t)
	f2.addCharacter(t, "Alice")
	f2.addCharacter(t, "Bob")
	f2.addEdge(t, "Alice", "Bob", ontology.Resolves)
	f2.addEdge(t, "Alice", "Bob", ontology.Callback)
	f2.addEdge(t, "Alice", "Bob", ontology.Knows)
	assert.Equal(t, "concluding", f2.svc.AnalyzePacing().Pacing)
}

func TestSummarize(t *testing.T) {
	f := newFixture(t)
	f.addCharacter(t, "Alice")
	f.addCharacter(t, "Bob")
	f.addEdge(t, "Alice", "Bob", ontology.Hinders)

	summary := f.svc.Summarize(3)
	assert.NotEmpty(t, summary.Communities)
	assert.NotEmpty(t, summary.Bridges)
	assert.Greater(t, summary.Tension.Score, 0.0)
	assert.NotEmpty(t, summary.Pacing.Pacing)
}
