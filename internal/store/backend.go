package store

import (
	"context"
)

// Backend is the durable side of the graph. The engine treats it as a generic
// transactional store: every method either fully applies or returns an error
// with nothing written. The in-memory mirror is layered on top by GraphStore
// and is never the backend's concern.
type Backend interface {
	LoadNodes(ctx context.Context) ([]Node, error)
	LoadEdges(ctx context.Context) ([]Edge, error)

	InsertNode(ctx context.Context, n Node) error
	UpdateNodeDescription(ctx context.Context, id, description string) error
	InsertEdge(ctx context.Context, e Edge) error
	// DeleteNode removes the node and every edge touching it in one transaction.
	DeleteNode(ctx context.Context, id string) error

	AppendConflict(ctx context.Context, c Conflict) error
	ListConflicts(ctx context.Context, scope string) ([]Conflict, error)

	Meta(ctx context.Context) (SnapshotMeta, error)
	RecordDigest(ctx context.Context, source string) error

	Close(ctx context.Context) error
}
