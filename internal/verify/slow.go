package verify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/storyloom/loom/internal/llm"
	"github.com/storyloom/loom/internal/store"
)

// Verbs that narrate interior state. Third-person interiority for anyone but
// the viewpoint character is a POV break.
var interiorityVerbs = []string{"thought", "realized", "felt", "wondered", "remembered", "knew"}

// RunSlow performs deep semantic verification through the analyzer. When the
// analyzer is unreachable it falls back to local heuristics and reports the
// degradation instead of failing the request.
func (e *Engine) RunSlow(ctx context.Context, req Request) Result {
	start := time.Now()

	result := Result{Tier: TierSlow, Status: StatusCompleted}

	var report *llm.Report
	err := llm.ErrUnavailable
	if e.analyzer != nil {
		report, err = e.analyzer.Analyze(ctx, req.Content, e.buildGraphContext(req))
	}
	switch {
	case err == nil:
		for _, ri := range report.Issues {
			result.Issues = append(result.Issues, issueFromReport(ri))
		}
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		result.Status = StatusDegraded
		result.Partial = true
		result.Skipped = append(result.Skipped, "semantic_analysis")
	case errors.Is(err, llm.ErrUnavailable):
		e.log.Warn("semantic analyzer unavailable, using local heuristics",
			zap.String("scene_ref", req.SceneRef))
		result.Status = StatusDegraded
		result.Skipped = append(result.Skipped, "semantic_analysis")
	default:
		e.log.Error("semantic analysis failed", zap.Error(err))
		result.Status = StatusDegraded
		result.Skipped = append(result.Skipped, "semantic_analysis")
	}

	// Local checks always run so a degraded pass still says something useful.
	result.Issues = append(result.Issues, e.checkPOVConsistency(req)...)

	result.Passed = passed(result.Issues)
	result.DurationMs = time.Since(start).Milliseconds()
	return result
}

// buildGraphContext renders the ego networks of the viewpoint character and
// every graph character the content mentions, as prompt-ready text.
func (e *Engine) buildGraphContext(req Request) string {
	content := strings.ToLower(req.Content)
	seen := map[string]bool{}
	var focus []string
	if req.POV != "" {
		focus = append(focus, req.POV)
		seen[strings.ToLower(req.POV)] = true
	}
	nodes, _ := e.graph.Snapshot()
	for _, n := range nodes {
		if n.Type != store.NodeCharacter || n.Name == "" {
			continue
		}
		key := strings.ToLower(n.Name)
		if !seen[key] && strings.Contains(content, key) {
			seen[key] = true
			focus = append(focus, n.Name)
		}
	}

	var b strings.Builder
	for _, name := range focus {
		sub := e.graph.EgoNetwork(name, 2)
		if len(sub.Nodes) == 0 {
			continue
		}
		names := make(map[string]string, len(sub.Nodes))
		fmt.Fprintf(&b, "## Around %s\n", name)
		for _, n := range sub.Nodes {
			names[n.ID] = n.Name
			fmt.Fprintf(&b, "- %s (%s): %s\n", n.Name, n.Type, n.Description)
		}
		for _, edge := range sub.Edges {
			fmt.Fprintf(&b, "- %s %s %s", names[edge.SourceID], edge.Kind.Name, names[edge.TargetID])
			if edge.Description != "" {
				fmt.Fprintf(&b, ": %s", edge.Description)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		return "(empty graph)"
	}
	return b.String()
}

// checkPOVConsistency flags interiority narrated for characters other than
// the declared viewpoint.
func (e *Engine) checkPOVConsistency(req Request) []Issue {
	if req.POV == "" {
		return nil
	}

	content := strings.ToLower(req.Content)
	pov := strings.ToLower(req.POV)
	nodes, _ := e.graph.Snapshot()

	var issues []Issue
	for _, n := range nodes {
		if n.Type != store.NodeCharacter || n.Name == "" {
			continue
		}
		name := strings.ToLower(n.Name)
		if name == pov {
			continue
		}
		for _, verb := range interiorityVerbs {
			if strings.Contains(content, name+" "+verb) {
				issues = append(issues, Issue{
					Check:    "pov_consistency",
					Severity: SeverityWarning,
					Message:  fmt.Sprintf("interior state of %s narrated in a scene with %s viewpoint", n.Name, req.POV),
					Location: req.SceneRef,
				})
				break
			}
		}
	}
	return issues
}

func issueFromReport(ri llm.ReportIssue) Issue {
	sev := SeverityInfo
	switch strings.ToLower(ri.Severity) {
	case "critical":
		sev = SeverityCritical
	case "warning":
		sev = SeverityWarning
	}
	return Issue{
		Check:      ri.Check,
		Severity:   sev,
		Message:    ri.Message,
		Location:   ri.Location,
		Suggestion: ri.Suggestion,
	}
}
