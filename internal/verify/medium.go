package verify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/storyloom/loom/internal/ontology"
)

// Tunable gaps, in scenes.
const (
	flawChallengeGap = 5
	foreshadowMaxAge = 10
)

var actionWords = []string{"fought", "ran", "struck", "chased", "leapt", "screamed", "grabbed", "attacked"}

// RunMediumAsync schedules the medium-tier checks off the request path. The
// result lands on the notification queue; nothing is returned synchronously.
func (e *Engine) RunMediumAsync(ctx context.Context, req Request) {
	go func() {
		mctx, cancel := context.WithTimeout(ctx, e.opts.MediumTimeout)
		defer cancel()

		result := e.RunMedium(mctx, req)
		e.queue.Publish(Notification{SceneRef: req.SceneRef, Result: result})
	}()
}

// RunMedium runs the traversal-heavy checks. Cancellation delivers whatever
// completed, tagged partial.
func (e *Engine) RunMedium(ctx context.Context, req Request) Result {
	start := time.Now()

	var mu sync.Mutex
	var issues []Issue
	add := func(found []Issue) {
		mu.Lock()
		issues = append(issues, found...)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	checks := []func(context.Context, Request) []Issue{
		e.checkFlawChallengeGap,
		e.checkBeatAlignment,
		e.checkTimelineOrder,
		e.checkUnresolvedForeshadow,
	}
	for _, check := range checks {
		check := check
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			add(check(gctx, req))
			return nil
		})
	}

	status := StatusCompleted
	partial := false
	if err := g.Wait(); err != nil {
		e.log.Info("medium verification cancelled, delivering partial results",
			zap.String("scene_ref", req.SceneRef), zap.Error(err))
		status = StatusDegraded
		partial = true
	}

	return Result{
		Tier:       TierMedium,
		Status:     status,
		Passed:     passed(issues),
		Issues:     issues,
		Partial:    partial,
		DurationMs: time.Since(start).Milliseconds(),
	}
}

// sceneNumber pulls a trailing integer out of a scene reference like
// "scene-12" or "ch3/s7". Returns -1 when there is none.
func sceneNumber(ref string) int {
	end := len(ref)
	for end > 0 && !isDigit(ref[end-1]) {
		end--
	}
	begin := end
	for begin > 0 && isDigit(ref[begin-1]) {
		begin--
	}
	if begin == end {
		return -1
	}
	n, err := strconv.Atoi(ref[begin:end])
	if err != nil {
		return -1
	}
	return n
}

func isDigit(b byte) bool { return '0' <= b && b <= '9' }

// checkFlawChallengeGap warns when no flaw-challenge edge has fired for a
// while: characters who stop being tested go flat.
func (e *Engine) checkFlawChallengeGap(ctx context.Context, req Request) []Issue {
	current := sceneNumber(req.SceneRef)
	if current < 0 {
		return nil
	}

	_, edges := e.graph.Snapshot()
	latest := -1
	found := false
	for _, edge := range edges {
		if edge.Kind != ontology.FlawChallenge {
			continue
		}
		found = true
		if n := sceneNumber(edge.SceneRef); n > latest {
			latest = n
		}
	}
	if !found {
		return nil
	}

	if latest >= 0 && current-latest > flawChallengeGap {
		return []Issue{{
			Check:    "flaw_challenge_gap",
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("no character flaw has been challenged since scene %d (%d scenes ago)", latest, current-latest),
			Location: req.SceneRef,
		}}
	}
	return nil
}

// checkBeatAlignment compares content texture against the graph's pacing
// read: an action-dense scene inside a slow stretch is worth a note.
func (e *Engine) checkBeatAlignment(ctx context.Context, req Request) []Issue {
	pacing := e.analytics.AnalyzePacing()
	content := strings.ToLower(req.Content)

	hits := 0
	for _, w := range actionWords {
		if strings.Contains(content, w) {
			hits++
		}
	}

	if pacing.Pacing == "slow" && hits >= 3 {
		return []Issue{{
			Check:    "beat_alignment",
			Severity: SeverityInfo,
			Message:  fmt.Sprintf("action-heavy scene (%d action cues) inside a setup-heavy stretch", hits),
			Location: req.SceneRef,
		}}
	}
	if pacing.Pacing == "fast" && hits == 0 && len(content) > 200 {
		return []Issue{{
			Check:    "beat_alignment",
			Severity: SeverityInfo,
			Message:  "quiet scene inside an action-heavy stretch; deliberate breather or drift?",
			Location: req.SceneRef,
		}}
	}
	return nil
}

// checkTimelineOrder flags causal edges that run backwards in scene order.
func (e *Engine) checkTimelineOrder(ctx context.Context, req Request) []Issue {
	nodes, edges := e.graph.Snapshot()
	names := make(map[string]string, len(nodes))
	for _, n := range nodes {
		names[n.ID] = n.Name
	}

	var issues []Issue
	for _, edge := range edges {
		if edge.Kind != ontology.Causes || edge.SceneRef == "" {
			continue
		}
		src := sceneNumber(edge.SceneRef)
		if src < 0 {
			continue
		}
		// The effect must not be established in an earlier scene than its
		// cause; compare against any scene ref carried by the target's edges.
		for _, other := range edges {
			if other.SourceID != edge.TargetID || other.SceneRef == "" {
				continue
			}
			if tgt := sceneNumber(other.SceneRef); tgt >= 0 && tgt < src {
				issues = append(issues, Issue{
					Check:    "timeline_order",
					Severity: SeverityWarning,
					Message: fmt.Sprintf("%s causes %s in scene %d, but %s already acts on it in scene %d",
						names[edge.SourceID], names[edge.TargetID], src, names[edge.TargetID], tgt),
				})
			}
		}
	}
	return issues
}

// checkUnresolvedForeshadow lists foreshadowing edges that have aged past the
// payoff window without being resolved.
func (e *Engine) checkUnresolvedForeshadow(ctx context.Context, req Request) []Issue {
	current := sceneNumber(req.SceneRef)
	nodes, edges := e.graph.Snapshot()
	names := make(map[string]string, len(nodes))
	for _, n := range nodes {
		names[n.ID] = n.Name
	}

	var issues []Issue
	for _, edge := range edges {
		if edge.Kind != ontology.Foreshadows || edge.Resolved {
			continue
		}
		planted := sceneNumber(edge.SceneRef)
		if current >= 0 && planted >= 0 && current-planted <= foreshadowMaxAge {
			continue
		}
		issues = append(issues, Issue{
			Check:    "unresolved_foreshadow",
			Severity: SeverityInfo,
			Message: fmt.Sprintf("foreshadowing from %s toward %s is still unresolved",
				names[edge.SourceID], names[edge.TargetID]),
			Location: edge.SceneRef,
		})
	}
	return issues
}
