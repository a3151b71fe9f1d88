package verify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyloom/loom/internal/llm"
	"github.com/storyloom/loom/internal/ontology"
)

func TestRunSlowUsesAnalyzerReport(t *testing.T) {
	s := openTestStore(t)
	addCharacter(t, s, "Alice", nil)

	analyzer := &stubAnalyzer{report: &llm.Report{Issues: []llm.ReportIssue{
		{Check: "character_behavior", Severity: "critical", Message: "Alice betrays Bob without setup."},
		{Check: "tone", Severity: "info", Message: "Sudden register shift."},
	}}}
	e := newTestEngine(t, s, analyzer, Options{})

	result := e.RunSlow(context.Background(), Request{SceneRef: "scene-3", Content: "Alice drew her blade."})

	assert.True(t, analyzer.called)
	assert.Equal(t, TierSlow, result.Tier)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.False(t, result.Passed)
	require.Len(t, result.Issues, 2)
	assert.Equal(t, SeverityCritical, result.Issues[0].Severity)
	assert.Equal(t, SeverityInfo, result.Issues[1].Severity)
}

func TestRunSlowDegradesWhenAnalyzerUnavailable(t *testing.T) {
	s := openTestStore(t)
	analyzer := &stubAnalyzer{err: llm.ErrUnavailable}
	e := newTestEngine(t, s, analyzer, Options{})

	result := e.RunSlow(context.Background(), Request{Content: "A scene."})

	assert.Equal(t, StatusDegraded, result.Status)
	assert.Contains(t, result.Skipped, "semantic_analysis")
	assert.True(t, result.Passed)
}

func TestRunSlowDegradesOnAnalyzerError(t *testing.T) {
	s := openTestStore(t)
	analyzer := &stubAnalyzer{err: errors.New("upstream 500")}
	e := newTestEngine(t, s, analyzer, Options{})

	result := e.RunSlow(context.Background(), Request{Content: "A scene."})

	assert.Equal(t, StatusDegraded, result.Status)
	assert.Contains(t, result.Skipped, "semantic_analysis")
}

func TestRunSlowCancelledMarksPartial(t *testing.T) {
	s := openTestStore(t)
	analyzer := &stubAnalyzer{err: context.Canceled}
	e := newTestEngine(t, s, analyzer, Options{})

	result := e.RunSlow(context.Background(), Request{Content: "A scene."})

	assert.Equal(t, StatusDegraded, result.Status)
	assert.True(t, result.Partial)
	assert.Contains(t, result.Skipped, "semantic_analysis")
}

func TestRunSlowPOVConsistency(t *testing.T) {
	s := openTestStore(t)
	addCharacter(t, s, "Alice", nil)
	addCharacter(t, s, "Bob", nil)

	analyzer := &stubAnalyzer{report: &llm.Report{}}
	e := newTestEngine(t, s, analyzer, Options{})

	result := e.RunSlow(context.Background(), Request{
		SceneRef: "scene-7",
		POV:      "Alice",
		Content:  "Alice watched the gate. Bob wondered if she had seen him.",
	})

	checks := issueChecks(result.Issues)
	assert.Contains(t, checks, "pov_consistency")

	clean := e.RunSlow(context.Background(), Request{
		POV:     "Alice",
		Content: "Alice wondered if Bob had seen her.",
	})
	assert.NotContains(t, issueChecks(clean.Issues), "pov_consistency")
}

func TestBuildGraphContextIncludesMentionedCharacters(t *testing.T) {
	s := openTestStore(t)
	a := addCharacter(t, s, "Alice", nil)
	b := addCharacter(t, s, "Bob", nil)
	addCharacter(t, s, "Cara", nil)
	addEdge(t, s, a, b, ontology.Loves, "scene-1")

	e := newTestEngine(t, s, nil, Options{})
	graphContext := e.buildGraphContext(Request{POV: "Alice", Content: "Bob waited by the gate."})

	assert.Contains(t, graphContext, "Alice")
	assert.Contains(t, graphContext, "Bob")
	assert.Contains(t, graphContext, "LOVES")
	assert.NotContains(t, graphContext, "Cara")
}

func TestRunSlowNilAnalyzer(t *testing.T) {
	s := openTestStore(t)
	e := newTestEngine(t, s, nil, Options{})

	result := e.RunSlow(context.Background(), Request{Content: "A scene."})
	assert.Equal(t, StatusDegraded, result.Status)
	assert.Contains(t, result.Skipped, "semantic_analysis")
}
