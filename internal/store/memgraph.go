package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// MemgraphBackend persists the graph in Memgraph over bolt. Optional backend
// for deployments that want the snapshot queryable with Cypher alongside this
// engine.
type MemgraphBackend struct {
	driver neo4j.DriverWithContext
	log    *zap.Logger
}

func NewMemgraphBackend(ctx context.Context, uri, username, password string, log *zap.Logger) (*MemgraphBackend, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, err
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, err
	}

	b := &MemgraphBackend{driver: driver, log: log}
	b.buildIndices(ctx)
	return b, nil
}

func (b *MemgraphBackend) buildIndices(ctx context.Context) {
	queries := []string{
		"CREATE INDEX ON :Entity(id);",
		"CREATE INDEX ON :Entity(name);",
		"CREATE INDEX ON :Conflict(scope);",
	}
	for _, q := range queries {
		if _, err := b.run(ctx, q, nil); err != nil {
			// Index may already exist; keep going.
			b.log.Warn("index creation failed", zap.String("query", q), zap.Error(err))
		}
	}
}

func (b *MemgraphBackend) run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	result, err := neo4j.ExecuteQuery(ctx, b.driver, query, params, neo4j.EagerResultTransformer)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return result, nil
}

func (b *MemgraphBackend) Close(ctx context.Context) error {
	return b.driver.Close(ctx)
}

func (b *MemgraphBackend) LoadNodes(ctx context.Context) ([]Node, error) {
	res, err := b.run(ctx, `MATCH (n:Entity)
		RETURN n.id AS id, n.type AS type, n.name AS name,
		       n.description AS description, n.content AS content, n.source AS source`, nil)
	if err != nil {
		return nil, err
	}

	var nodes []Node
	for _, rec := range res.Records {
		n := Node{
			ID:          stringField(rec, "id"),
			Type:        NodeType(stringField(rec, "type")),
			Name:        stringField(rec, "name"),
			Description: stringField(rec, "description"),
			Content:     stringField(rec, "content"),
		}
		n.Meta.Source = stringField(rec, "source")
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func (b *MemgraphBackend) LoadEdges(ctx context.Context) ([]Edge, error) {
	res, err := b.run(ctx, `MATCH (s:Entity)-[r:RELATES]->(t:Entity)
		RETURN r.id AS id, s.id AS source_id, t.id AS target_id, r.kind AS kind,
		       r.custom_kind AS custom, r.weight AS weight, r.scene_ref AS scene_ref,
		       r.resolved AS resolved, r.description AS description`, nil)
	if err != nil {
		return nil, err
	}

	var edges []Edge
	for _, rec := range res.Records {
		e := Edge{
			ID:          stringField(rec, "id"),
			SourceID:    stringField(rec, "source_id"),
			TargetID:    stringField(rec, "target_id"),
			SceneRef:    stringField(rec, "scene_ref"),
			Description: stringField(rec, "description"),
		}
		e.Kind.Name = stringField(rec, "kind")
		e.Kind.Custom = boolField(rec, "custom")
		e.Resolved = boolField(rec, "resolved")
		if w, ok := rec.Get("weight"); ok {
			if f, ok := w.(float64); ok {
				e.Weight = f
			}
		}
		edges = append(edges, e)
	}
	return edges, nil
}

func (b *MemgraphBackend) InsertNode(ctx context.Context, n Node) error {
	_, err := b.run(ctx, `CREATE (n:Entity {
		id: $id, type: $type, name: $name,
		description: $description, content: $content, source: $source})`,
		map[string]any{
			"id": n.ID, "type": string(n.Type), "name": n.Name,
			"description": n.Description, "content": n.Content, "source": n.Meta.Source,
		})
	return err
}

func (b *MemgraphBackend) UpdateNodeDescription(ctx context.Context, id, description string) error {
	_, err := b.run(ctx, `MATCH (n:Entity {id: $id}) SET n.description = $description`,
		map[string]any{"id": id, "description": description})
	return err
}

func (b *MemgraphBackend) InsertEdge(ctx context.Context, e Edge) error {
	_, err := b.run(ctx, `MATCH (s:Entity {id: $source_id}), (t:Entity {id: $target_id})
		CREATE (s)-[:RELATES {
			id: $id, kind: $kind, custom_kind: $custom, weight: $weight,
			scene_ref: $scene_ref, resolved: $resolved, description: $description}]->(t)`,
		map[string]any{
			"id": e.ID, "source_id": e.SourceID, "target_id": e.TargetID,
			"kind": e.Kind.Name, "custom": e.Kind.Custom, "weight": e.Weight,
			"scene_ref": e.SceneRef, "resolved": e.Resolved, "description": e.Description,
		})
	return err
}

func (b *MemgraphBackend) DeleteNode(ctx context.Context, id string) error {
	_, err := b.run(ctx, `MATCH (n:Entity {id: $id}) DETACH DELETE n`, map[string]any{"id": id})
	return err
}

func (b *MemgraphBackend) AppendConflict(ctx context.Context, c Conflict) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	_, err := b.run(ctx, `CREATE (:Conflict {
		id: $id, subject: $subject, existing: $existing, proposed: $proposed,
		severity: $severity, source: $source, scope: $scope, created_at: $created_at})`,
		map[string]any{
			"id": c.ID, "subject": c.Subject, "existing": c.Existing, "proposed": c.Proposed,
			"severity": string(c.Severity), "source": c.Source, "scope": c.Scope,
			"created_at": c.CreatedAt.UTC().Format(time.RFC3339),
		})
	return err
}

func (b *MemgraphBackend) ListConflicts(ctx context.Context, scope string) ([]Conflict, error) {
	query := `MATCH (c:Conflict)`
	params := map[string]any{}
	if scope != "" {
		query = `MATCH (c:Conflict {scope: $scope})`
		params["scope"] = scope
	}
	query += ` RETURN c.id AS id, c.subject AS subject, c.existing AS existing,
		c.proposed AS proposed, c.severity AS severity, c.source AS source,
		c.scope AS scope, c.created_at AS created_at ORDER BY c.created_at`

	res, err := b.run(ctx, query, params)
	if err != nil {
		return nil, err
	}

	var out []Conflict
	for _, rec := range res.Records {
		c := Conflict{
			ID:       stringField(rec, "id"),
			Subject:  stringField(rec, "subject"),
			Existing: stringField(rec, "existing"),
			Proposed: stringField(rec, "proposed"),
			Severity: ConflictSeverity(stringField(rec, "severity")),
			Source:   stringField(rec, "source"),
			Scope:    stringField(rec, "scope"),
		}
		c.CreatedAt, _ = time.Parse(time.RFC3339, stringField(rec, "created_at"))
		out = append(out, c)
	}
	return out, nil
}

func (b *MemgraphBackend) Meta(ctx context.Context) (SnapshotMeta, error) {
	res, err := b.run(ctx, `MERGE (m:SnapshotMeta {id: "meta"})
		ON CREATE SET m.created_at = $now, m.updated_at = $now, m.digests = 0
		RETURN m.created_at AS created_at, m.updated_at AS updated_at, m.digests AS digests`,
		map[string]any{"now": time.Now().UTC().Format(time.RFC3339)})
	if err != nil {
		return SnapshotMeta{}, err
	}

	var meta SnapshotMeta
	if len(res.Records) > 0 {
		rec := res.Records[0]
		meta.CreatedAt, _ = time.Parse(time.RFC3339, stringField(rec, "created_at"))
		meta.UpdatedAt, _ = time.Parse(time.RFC3339, stringField(rec, "updated_at"))
		if d, ok := rec.Get("digests"); ok {
			if i, ok := d.(int64); ok {
				meta.Digests = int(i)
			}
		}
	}
	return meta, nil
}

func (b *MemgraphBackend) RecordDigest(ctx context.Context, source string) error {
	_, err := b.run(ctx, `MERGE (m:SnapshotMeta {id: "meta"})
		SET m.digests = coalesce(m.digests, 0) + 1, m.updated_at = $now`,
		map[string]any{"now": time.Now().UTC().Format(time.RFC3339)})
	return err
}

func stringField(rec *neo4j.Record, key string) string {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func boolField(rec *neo4j.Record, key string) bool {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return false
	}
	b, _ := v.(bool)
	return b
}

var _ Backend = (*MemgraphBackend)(nil)
