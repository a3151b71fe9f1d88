package consolidate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/storyloom/loom/internal/ontology"
	"github.com/storyloom/loom/internal/store"
)

// ErrLockContention means another digest is in flight for the same scope.
// Callers retry with backoff; proceeding unsynchronized would let two merges
// read the same before-state and silently drop one side's additions.
var ErrLockContention = errors.New("another digest is in flight for this scope")

const descriptionSeparator = " | "

// Consolidator merges candidate fact batches into the graph. It is the only
// component that calls the store's write operations on behalf of ingested
// facts.
type Consolidator struct {
	store    *store.GraphStore
	reg      *ontology.Registry
	detector Detector
	log      *zap.Logger

	mu     sync.Mutex
	scopes map[string]*sync.Mutex
}

func New(s *store.GraphStore, reg *ontology.Registry, detector Detector, log *zap.Logger) *Consolidator {
	if detector == nil {
		detector = NewKeywordDetector()
	}
	return &Consolidator{
		store:    s,
		reg:      reg,
		detector: detector,
		log:      log,
		scopes:   make(map[string]*sync.Mutex),
	}
}

func (c *Consolidator) scopeLock(scope string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.scopes[scope]
	if !ok {
		lock = &sync.Mutex{}
		c.scopes[scope] = lock
	}
	return lock
}

// Digest merges one batch under mutual exclusion for the scope. Node commits
// happen before edge commits. Item-level problems become conflicts or skips;
// only store-level I/O failures come back as errors.
func (c *Consolidator) Digest(ctx context.Context, batch Batch, scope, sourceLabel string) (Result, error) {
	lock := c.scopeLock(scope)
	if !lock.TryLock() {
		return Result{}, fmt.Errorf("scope %s: %w", scope, ErrLockContention)
	}
	defer lock.Unlock()

	var res Result
	start := time.Now()

	if err := c.digestNodes(ctx, batch.Nodes, scope, sourceLabel, &res); err != nil {
		return res, err
	}
	if err := c.digestEdges(ctx, batch.Edges, scope, sourceLabel, &res); err != nil {
		return res, err
	}

	if err := c.store.RecordDigest(ctx, sourceLabel); err != nil {
		return res, err
	}

	c.log.Info("digest complete",
		zap.String("scope", scope),
		zap.String("source", sourceLabel),
		zap.Int("nodes_added", res.NodesAdded),
		zap.Int("edges_added", res.EdgesAdded),
		zap.Int("conflicts", len(res.Conflicts)),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

func (c *Consolidator) digestNodes(ctx context.Context, candidates []CandidateNode, scope, sourceLabel string, res *Result) error {
	for _, cand := range candidates {
		name := strings.TrimSpace(cand.ID)
		if name == "" {
			continue
		}

		existing := c.store.FindByName(name)
		if existing == nil {
			_, err := c.store.AddNode(ctx, store.Node{
				Type:        nodeType(cand.Type),
				Name:        name,
				Description: cand.Description,
				Meta:        store.NodeMetadata{Source: sourceLabel},
			})
			if err != nil {
				return err
			}
			res.NodesAdded++
			continue
		}

		proposed := strings.TrimSpace(cand.Description)
		if proposed == "" || proposed == existing.Description {
			continue
		}

		if existing.Description != "" && c.detector.Contradicts(existing.Description, proposed) {
			conflict := store.Conflict{
				Subject:  name,
				Existing: existing.Description,
				Proposed: proposed,
				Severity: store.ConflictNeedsReview,
				Source:   sourceLabel,
				Scope:    scope,
			}
			if err := c.store.AppendConflict(ctx, conflict); err != nil {
				return err
			}
			res.Conflicts = append(res.Conflicts, conflict)
			// Existing description stays as it was.
			continue
		}

		merged := proposed
		if existing.Description != "" {
			merged = existing.Description + descriptionSeparator + proposed
		}
		if err := c.store.UpdateDescription(ctx, existing.ID, merged); err != nil {
			return err
		}
	}
	return nil
}

func (c *Consolidator) digestEdges(ctx context.Context, candidates []CandidateEdge, scope, sourceLabel string, res *Result) error {
	for _, cand := range candidates {
		if strings.TrimSpace(cand.Source) == "" || strings.TrimSpace(cand.Target) == "" {
			continue
		}

		kind := c.reg.Normalize(cand.Relation)

		// A contradiction is a finding, not a relationship; it goes to the
		// review log instead of the graph.
		if kind == ontology.Contradicts {
			conflict := store.Conflict{
				Subject:  cand.Source,
				Existing: cand.Target,
				Proposed: cand.Description,
				Severity: store.ConflictNeedsReview,
				Source:   sourceLabel,
				Scope:    scope,
			}
			if err := c.store.AppendConflict(ctx, conflict); err != nil {
				return err
			}
			res.Conflicts = append(res.Conflicts, conflict)
			continue
		}

		if !c.reg.IsEnabled(kind) {
			c.log.Debug("skipping disabled relation kind",
				zap.String("kind", kind.Name), zap.String("source", cand.Source))
			continue
		}

		src := c.store.FindByName(cand.Source)
		tgt := c.store.FindByName(cand.Target)
		if src == nil || tgt == nil {
			c.log.Warn("edge endpoint not found, skipping",
				zap.String("source", cand.Source), zap.String("target", cand.Target),
				zap.String("kind", kind.Name))
			continue
		}

		if c.store.HasEdge(src.ID, tgt.ID, kind) {
			continue
		}

		_, err := c.store.AddEdge(ctx, store.Edge{
			SourceID:    src.ID,
			TargetID:    tgt.ID,
			Kind:        kind,
			Weight:      1,
			Description: cand.Description,
		})
		if err != nil {
			var rejected *store.RejectedEdgeError
			if errors.As(err, &rejected) {
				c.log.Warn("edge rejected", zap.Error(rejected))
				continue
			}
			return err
		}
		res.EdgesAdded++
	}
	return nil
}

func nodeType(raw string) store.NodeType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "character", "person":
		return store.NodeCharacter
	case "location", "place":
		return store.NodeLocation
	case "object", "item":
		return store.NodeObject
	case "event":
		return store.NodeEvent
	case "theme":
		return store.NodeTheme
	case "concept", "":
		return store.NodeConcept
	default:
		return store.NodeType(strings.ToLower(strings.TrimSpace(raw)))
	}
}
