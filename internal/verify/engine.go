package verify

import (
	"time"

	"go.uber.org/zap"

	"github.com/storyloom/loom/internal/analytics"
	"github.com/storyloom/loom/internal/llm"
	"github.com/storyloom/loom/internal/store"
)

// GraphReader is the slice of the store's query interface the engine needs.
// The engine only ever reads.
type GraphReader interface {
	Snapshot() ([]store.Node, []store.Edge)
	FindByName(name string) *store.Node
	EgoNetwork(name string, radius int) store.Subgraph
}

// Options tune the engine. Zero values fall back to the defaults below.
type Options struct {
	FastDeadline      time.Duration
	MediumTimeout     time.Duration
	RequiredCallbacks []string
}

const (
	defaultFastDeadline  = 500 * time.Millisecond
	defaultMediumTimeout = 5 * time.Second
)

// Engine runs the three-tier consistency pipeline. Fast tier answers on the
// request path under a hard deadline; medium runs in the background and
// reports through the notification queue; slow is on-demand and is the only
// tier allowed to call out to the semantic analyzer.
type Engine struct {
	graph     GraphReader
	analytics *analytics.Service
	analyzer  llm.Analyzer
	queue     *Queue
	opts      Options
	log       *zap.Logger
}

func NewEngine(graph GraphReader, analyticsSvc *analytics.Service, analyzer llm.Analyzer, queue *Queue, opts Options, log *zap.Logger) *Engine {
	if opts.FastDeadline <= 0 {
		opts.FastDeadline = defaultFastDeadline
	}
	if opts.MediumTimeout <= 0 {
		opts.MediumTimeout = defaultMediumTimeout
	}
	return &Engine{
		graph:     graph,
		analytics: analyticsSvc,
		analyzer:  analyzer,
		queue:     queue,
		opts:      opts,
		log:       log,
	}
}

// Queue exposes the notification queue for consumers.
func (e *Engine) Queue() *Queue {
	return e.queue
}
