package store

import (
	"context"
	"errors"
)

// failingBackend errors on every write; used to assert the mirror stays
// untouched when persistence fails.
type failingBackend struct{}

var errBackendDown = errors.New("backend down")

func (f *failingBackend) LoadNodes(ctx context.Context) ([]Node, error) { return nil, nil }
func (f *failingBackend) LoadEdges(ctx context.Context) ([]Edge, error) { return nil, nil }
func (f *failingBackend) InsertNode(ctx context.Context, n Node) error  { return errBackendDown }
func (f *failingBackend) UpdateNodeDescription(ctx context.Context, id, d string) error {
	return errBackendDown
}
func (f *failingBackend) InsertEdge(ctx context.Context, e Edge) error { return errBackendDown }
func (f *failingBackend) DeleteNode(ctx context.Context, id string) error {
	return errBackendDown
}
func (f *failingBackend) AppendConflict(ctx context.Context, c Conflict) error {
	return errBackendDown
}
func (f *failingBackend) ListConflicts(ctx context.Context, scope string) ([]Conflict, error) {
	return nil, nil
}
func (f *failingBackend) Meta(ctx context.Context) (SnapshotMeta, error) {
	return SnapshotMeta{}, nil
}
func (f *failingBackend) RecordDigest(ctx context.Context, source string) error {
	return errBackendDown
}
func (f *failingBackend) Close(ctx context.Context) error { return nil }
