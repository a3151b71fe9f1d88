package verify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/storyloom/loom/internal/store"
)

// Opposite-meaning pairs that should not both appear in one piece of content
// about the same beat. Coarse on purpose; a hit is a warning, not a block.
var contentContradictionPairs = [][2]string{
	{"alive", "dead"},
	{"morning", "midnight"},
	{"summer", "winter"},
	{"married", "widowed"},
	{"blind", "saw"},
}

var fastCheckNames = []string{"deceased_reference", "required_callback", "content_contradiction"}

// RunFast executes the store-local checks under a hard deadline. It never
// blocks the caller past the deadline: on overrun it returns whatever checks
// completed as a degraded result and logs the overrun.
func (e *Engine) RunFast(ctx context.Context, req Request) Result {
	start := time.Now()
	deadline := time.NewTimer(e.opts.FastDeadline)
	defer deadline.Stop()

	type checkResult struct {
		name   string
		issues []Issue
	}
	results := make(chan checkResult, len(fastCheckNames))

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		checks := []struct {
			name string
			fn   func(Request) []Issue
		}{
			{"deceased_reference", e.checkDeceasedReferences},
			{"required_callback", e.checkRequiredCallbacks},
			{"content_contradiction", e.checkContentContradictions},
		}
		for _, c := range checks {
			if cctx.Err() != nil {
				return
			}
			results <- checkResult{name: c.name, issues: c.fn(req)}
		}
	}()

	var issues []Issue
	completed := make(map[string]bool)
	for len(completed) < len(fastCheckNames) {
		select {
		case r := <-results:
			completed[r.name] = true
			issues = append(issues, r.issues...)
		case <-deadline.C:
			var skipped []string
			for _, name := range fastCheckNames {
				if !completed[name] {
					skipped = append(skipped, name)
				}
			}
			e.log.Warn("fast verification deadline exceeded",
				zap.String("scene_ref", req.SceneRef),
				zap.Duration("deadline", e.opts.FastDeadline),
				zap.Strings("skipped", skipped))
			return Result{
				Tier:       TierFast,
				Status:     StatusDegraded,
				Passed:     passed(issues),
				Issues:     issues,
				Skipped:    skipped,
				Partial:    true,
				DurationMs: time.Since(start).Milliseconds(),
			}
		case <-ctx.Done():
			return Result{
				Tier:       TierFast,
				Status:     StatusDegraded,
				Passed:     passed(issues),
				Issues:     issues,
				Partial:    true,
				DurationMs: time.Since(start).Milliseconds(),
			}
		}
	}

	return Result{
		Tier:       TierFast,
		Status:     StatusCompleted,
		Passed:     passed(issues),
		Issues:     issues,
		DurationMs: time.Since(start).Milliseconds(),
	}
}

// checkDeceasedReferences flags content that has a character known to be dead
// speaking or acting.
func (e *Engine) checkDeceasedReferences(req Request) []Issue {
	nodes, _ := e.graph.Snapshot()
	content := strings.ToLower(req.Content)

	var issues []Issue
	for _, n := range nodes {
		if n.Type != store.NodeCharacter || !isDeceased(n) {
			continue
		}
		if n.Name != "" && strings.Contains(content, strings.ToLower(n.Name)) {
			issues = append(issues, Issue{
				Check:    "deceased_reference",
				Severity: SeverityCritical,
				Message:  fmt.Sprintf("%s is recorded as deceased but appears in this content", n.Name),
				Location: req.SceneRef,
			})
		}
	}
	return issues
}

func isDeceased(n store.Node) bool {
	switch strings.ToLower(n.Meta.Extra["status"]) {
	case "dead", "deceased":
		return true
	}
	return false
}

// checkRequiredCallbacks verifies the configured callback phrases appear.
func (e *Engine) checkRequiredCallbacks(req Request) []Issue {
	content := strings.ToLower(req.Content)

	var issues []Issue
	for _, phrase := range e.opts.RequiredCallbacks {
		if !strings.Contains(content, strings.ToLower(phrase)) {
			issues = append(issues, Issue{
				Check:      "required_callback",
				Severity:   SeverityWarning,
				Message:    fmt.Sprintf("required callback phrase %q is missing", phrase),
				Location:   req.SceneRef,
				Suggestion: fmt.Sprintf("work the phrase %q back in", phrase),
			})
		}
	}
	return issues
}

// checkContentContradictions scans for known contradiction pairs co-occurring
// in the same content.
func (e *Engine) checkContentContradictions(req Request) []Issue {
	content := strings.ToLower(req.Content)

	var issues []Issue
	for _, pair := range contentContradictionPairs {
		if strings.Contains(content, pair[0]) && strings.Contains(content, pair[1]) {
			issues = append(issues, Issue{
				Check:    "content_contradiction",
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("content contains both %q and %q", pair[0], pair[1]),
				Location: req.SceneRef,
			})
		}
	}
	return issues
}
