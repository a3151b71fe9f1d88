package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteBackend persists the graph snapshot in a single SQLite file. It is the
// default backend: pure Go, transactional, good enough for a single-process
// deployment.
type SQLiteBackend struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS nodes (
	id          TEXT PRIMARY KEY,
	type        TEXT NOT NULL,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	content     TEXT NOT NULL DEFAULT '',
	meta        TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_nodes_name ON nodes(name COLLATE NOCASE);

CREATE TABLE IF NOT EXISTS edges (
	id          TEXT PRIMARY KEY,
	source_id   TEXT NOT NULL REFERENCES nodes(id),
	target_id   TEXT NOT NULL REFERENCES nodes(id),
	kind        TEXT NOT NULL,
	custom_kind INTEGER NOT NULL DEFAULT 0,
	weight      REAL NOT NULL DEFAULT 0,
	scene_ref   TEXT NOT NULL DEFAULT '',
	resolved    INTEGER NOT NULL DEFAULT 0,
	description TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id);
CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id);

CREATE TABLE IF NOT EXISTS conflicts (
	id         TEXT PRIMARY KEY,
	subject    TEXT NOT NULL,
	existing   TEXT NOT NULL,
	proposed   TEXT NOT NULL,
	severity   TEXT NOT NULL,
	source     TEXT NOT NULL,
	scope      TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conflicts_scope ON conflicts(scope);

CREATE TABLE IF NOT EXISTS snapshot_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite at %s: %w", path, err)
	}

	// Single writer; serialize at the pool level rather than fighting
	// SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;"); err != nil {
		return nil, fmt.Errorf("failed to set pragmas: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	b := &SQLiteBackend{db: db}
	if err := b.ensureMeta(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *SQLiteBackend) ensureMeta() error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := b.db.Exec(
		`INSERT INTO snapshot_meta (key, value) VALUES ('created_at', ?), ('updated_at', ?), ('digests', '0')
		 ON CONFLICT(key) DO NOTHING`, now, now)
	return err
}

func (b *SQLiteBackend) Close(ctx context.Context) error {
	return b.db.Close()
}

func (b *SQLiteBackend) LoadNodes(ctx context.Context) ([]Node, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT id, type, name, description, content, meta FROM nodes`)
	if err != nil {
		return nil, fmt.Errorf("failed to load nodes: %w", err)
	}
	defer rows.Close()

	var nodes []Node
	for rows.Next() {
		var n Node
		var metaJSON string
		if err := rows.Scan(&n.ID, &n.Type, &n.Name, &n.Description, &n.Content, &metaJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(metaJSON), &n.Meta); err != nil {
			return nil, fmt.Errorf("corrupt meta for node %s: %w", n.ID, err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

func (b *SQLiteBackend) LoadEdges(ctx context.Context) ([]Edge, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT id, source_id, target_id, kind, custom_kind, weight, scene_ref, resolved, description FROM edges`)
	if err != nil {
		return nil, fmt.Errorf("failed to load edges: %w", err)
	}
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		var e Edge
		var custom, resolved int
		if err := rows.Scan(&e.ID, &e.SourceID, &e.TargetID, &e.Kind.Name, &custom, &e.Weight, &e.SceneRef, &resolved, &e.Description); err != nil {
			return nil, err
		}
		e.Kind.Custom = custom != 0
		e.Resolved = resolved != 0
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

func (b *SQLiteBackend) InsertNode(ctx context.Context, n Node) error {
	metaJSON, err := json.Marshal(n.Meta)
	if err != nil {
		return fmt.Errorf("failed to encode node meta: %w", err)
	}
	_, err = b.db.ExecContext(ctx,
		`INSERT INTO nodes (id, type, name, description, content, meta) VALUES (?, ?, ?, ?, ?, ?)`,
		n.ID, string(n.Type), n.Name, n.Description, n.Content, string(metaJSON))
	if err != nil {
		return fmt.Errorf("failed to insert node %s: %w", n.ID, err)
	}
	return b.touch(ctx)
}

func (b *SQLiteBackend) UpdateNodeDescription(ctx context.Context, id, description string) error {
	_, err := b.db.ExecContext(ctx, `UPDATE nodes SET description = ? WHERE id = ?`, description, id)
	if err != nil {
		return fmt.Errorf("failed to update node %s: %w", id, err)
	}
	return b.touch(ctx)
}

func (b *SQLiteBackend) InsertEdge(ctx context.Context, e Edge) error {
	custom := 0
	if e.Kind.Custom {
		custom = 1
	}
	resolved := 0
	if e.Resolved {
		resolved = 1
	}
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO edges (id, source_id, target_id, kind, custom_kind, weight, scene_ref, resolved, description)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SourceID, e.TargetID, e.Kind.Name, custom, e.Weight, e.SceneRef, resolved, e.Description)
	if err != nil {
		return fmt.Errorf("failed to insert edge %s: %w", e.ID, err)
	}
	return b.touch(ctx)
}

func (b *SQLiteBackend) DeleteNode(ctx context.Context, id string) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM edges WHERE source_id = ? OR target_id = ?`, id, id); err != nil {
		return fmt.Errorf("failed to cascade edges for %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete node %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete of %s: %w", id, err)
	}
	return b.touch(ctx)
}

func (b *SQLiteBackend) AppendConflict(ctx context.Context, c Conflict) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO conflicts (id, subject, existing, proposed, severity, source, scope, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Subject, c.Existing, c.Proposed, string(c.Severity), c.Source, c.Scope,
		c.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to append conflict for %s: %w", c.Subject, err)
	}
	return nil
}

func (b *SQLiteBackend) ListConflicts(ctx context.Context, scope string) ([]Conflict, error) {
	query := `SELECT id, subject, existing, proposed, severity, source, scope, created_at FROM conflicts`
	args := []any{}
	if scope != "" {
		query += ` WHERE scope = ?`
		args = append(args, scope)
	}
	query += ` ORDER BY created_at`

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list conflicts: %w", err)
	}
	defer rows.Close()

	var out []Conflict
	for rows.Next() {
		var c Conflict
		var created string
		if err := rows.Scan(&c.ID, &c.Subject, &c.Existing, &c.Proposed, &c.Severity, &c.Source, &c.Scope, &created); err != nil {
			return nil, err
		}
		c.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (b *SQLiteBackend) Meta(ctx context.Context) (SnapshotMeta, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT key, value FROM snapshot_meta`)
	if err != nil {
		return SnapshotMeta{}, fmt.Errorf("failed to read snapshot meta: %w", err)
	}
	defer rows.Close()

	var meta SnapshotMeta
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return SnapshotMeta{}, err
		}
		switch key {
		case "created_at":
			meta.CreatedAt, _ = time.Parse(time.RFC3339, value)
		case "updated_at":
			meta.UpdatedAt, _ = time.Parse(time.RFC3339, value)
		case "digests":
			fmt.Sscanf(value, "%d", &meta.Digests)
		}
	}
	return meta, rows.Err()
}

func (b *SQLiteBackend) RecordDigest(ctx context.Context, source string) error {
	_, err := b.db.ExecContext(ctx,
		`UPDATE snapshot_meta SET value = CAST(CAST(value AS INTEGER) + 1 AS TEXT) WHERE key = 'digests'`)
	if err != nil {
		return fmt.Errorf("failed to record digest: %w", err)
	}
	return b.touch(ctx)
}

func (b *SQLiteBackend) touch(ctx context.Context) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := b.db.ExecContext(ctx, `UPDATE snapshot_meta SET value = ? WHERE key = 'updated_at'`, now)
	return err
}

var _ Backend = (*SQLiteBackend)(nil)
