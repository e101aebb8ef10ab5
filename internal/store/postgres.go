package store

import (
	"context"
	"database/sql"
	"fmt"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ── Canvases ──

func (s *PostgresStore) InsertCanvas(ctx context.Context, item Canvas) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO canvases (id, organization_id, title, description, created_by)
		VALUES ($1, $2, $3, $4, $5)
	`, item.ID, item.OrganizationID, item.Title, item.Description, item.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert canvas: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetCanvas(ctx context.Context, canvasID string) (Canvas, error) {
	var item Canvas
	err := s.db.QueryRowContext(ctx, `
		SELECT id, organization_id, title, description, created_by, created_at, updated_at
		FROM canvases
		WHERE id=$1
	`, canvasID).Scan(&item.ID, &item.OrganizationID, &item.Title, &item.Description, &item.CreatedBy, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Canvas{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListCanvases(ctx context.Context, organizationID string) ([]Canvas, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, organization_id, title, description, created_by, created_at, updated_at
		FROM canvases
		WHERE organization_id=$1
		ORDER BY updated_at DESC
	`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("list canvases: %w", err)
	}
	defer rows.Close()

	items := make([]Canvas, 0)
	for rows.Next() {
		var item Canvas
		if err := rows.Scan(&item.ID, &item.OrganizationID, &item.Title, &item.Description, &item.CreatedBy, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan canvas: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate canvases: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateCanvas(ctx context.Context, canvasID, title, description string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE canvases SET title=$2, description=$3, updated_at=NOW() WHERE id=$1
	`, canvasID, title, description)
	if err != nil {
		return fmt.Errorf("update canvas: %w", err)
	}
	return nil
}

func (s *PostgresStore) TouchCanvas(ctx context.Context, canvasID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE canvases SET updated_at=NOW() WHERE id=$1`, canvasID)
	if err != nil {
		return fmt.Errorf("touch canvas: %w", err)
	}
	return nil
}

// DeleteCanvasCascade removes a canvas together with its nodes, their typed
// payloads, and all edges, in one transaction. Thread records survive with
// their canvas reference cleared; they belong to the conversation service.
func (s *PostgresStore) DeleteCanvasCascade(ctx context.Context, canvasID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete canvas tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for nodeType, table := range payloadTables {
		query := fmt.Sprintf(`
			DELETE FROM %s
			WHERE id IN (SELECT data_node_id FROM canvas_nodes WHERE canvas_id=$1 AND node_type=$2)
		`, table)
		if _, err := tx.ExecContext(ctx, query, canvasID, nodeType); err != nil {
			return fmt.Errorf("delete %s payloads: %w", nodeType, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM canvas_edges WHERE canvas_id=$1`, canvasID); err != nil {
		return fmt.Errorf("delete canvas edges: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM canvas_nodes WHERE canvas_id=$1`, canvasID); err != nil {
		return fmt.Errorf("delete canvas nodes: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE threads SET canvas_id=NULL WHERE canvas_id=$1`, canvasID); err != nil {
		return fmt.Errorf("detach threads: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM canvases WHERE id=$1`, canvasID); err != nil {
		return fmt.Errorf("delete canvas: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete canvas: %w", err)
	}
	return nil
}

// ── Nodes ──

const canvasNodeColumns = `id, canvas_id, organization_id, node_type, x, y, width, height, data_node_id, parent_group_id, notes, created_at, updated_at`

func scanCanvasNode(row interface{ Scan(...any) error }) (CanvasNode, error) {
	var item CanvasNode
	err := row.Scan(
		&item.ID, &item.CanvasID, &item.OrganizationID, &item.NodeType,
		&item.X, &item.Y, &item.Width, &item.Height,
		&item.DataNodeID, &item.ParentGroupID, &item.Notes,
		&item.CreatedAt, &item.UpdatedAt,
	)
	return item, err
}

// CreateNode inserts the typed payload row and the CanvasNode record in one
// transaction; the two never exist independently.
func (s *PostgresStore) CreateNode(ctx context.Context, node CanvasNode, payload NodePayload) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create node tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query, args := payload.insertQuery()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert %s payload: %w", node.NodeType, err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO canvas_nodes (id, canvas_id, organization_id, node_type, x, y, width, height, data_node_id, parent_group_id, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, node.ID, node.CanvasID, node.OrganizationID, node.NodeType, node.X, node.Y, node.Width, node.Height, node.DataNodeID, node.ParentGroupID, node.Notes); err != nil {
		return fmt.Errorf("insert canvas node: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE canvases SET updated_at=NOW() WHERE id=$1`, node.CanvasID); err != nil {
		return fmt.Errorf("touch canvas: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create node: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetCanvasNode(ctx context.Context, nodeID string) (CanvasNode, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+canvasNodeColumns+` FROM canvas_nodes WHERE id=$1`, nodeID)
	return scanCanvasNode(row)
}

// CanvasNodeByDataID resolves the CanvasNode owning a typed payload row.
func (s *PostgresStore) CanvasNodeByDataID(ctx context.Context, dataNodeID string) (CanvasNode, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+canvasNodeColumns+` FROM canvas_nodes WHERE data_node_id=$1`, dataNodeID)
	return scanCanvasNode(row)
}

func (s *PostgresStore) ListCanvasNodes(ctx context.Context, canvasID string) ([]CanvasNode, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+canvasNodeColumns+` FROM canvas_nodes WHERE canvas_id=$1 ORDER BY created_at ASC
	`, canvasID)
	if err != nil {
		return nil, fmt.Errorf("list canvas nodes: %w", err)
	}
	defer rows.Close()

	items := make([]CanvasNode, 0)
	for rows.Next() {
		item, err := scanCanvasNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan canvas node: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate canvas nodes: %w", err)
	}
	return items, nil
}

// ListGroupNodes returns group-typed nodes on the canvas, in creation order.
// Containment relies on this order: the first matching group wins.
func (s *PostgresStore) ListGroupNodes(ctx context.Context, canvasID string) ([]CanvasNode, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+canvasNodeColumns+` FROM canvas_nodes WHERE canvas_id=$1 AND node_type=$2 ORDER BY created_at ASC
	`, canvasID, NodeTypeGroup)
	if err != nil {
		return nil, fmt.Errorf("list group nodes: %w", err)
	}
	defer rows.Close()

	items := make([]CanvasNode, 0)
	for rows.Next() {
		item, err := scanCanvasNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan group node: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate group nodes: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateNodePosition(ctx context.Context, nodeID string, x, y float64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE canvas_nodes SET x=$2, y=$3, updated_at=NOW() WHERE id=$1
	`, nodeID, x, y)
	if err != nil {
		return fmt.Errorf("update node position: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetNodeParentGroup(ctx context.Context, nodeID string, parentGroupID *string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE canvas_nodes SET parent_group_id=$2, updated_at=NOW() WHERE id=$1
	`, nodeID, parentGroupID)
	if err != nil {
		return fmt.Errorf("set node parent group: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateNodeNotes(ctx context.Context, nodeID, notes string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE canvas_nodes SET notes=$2, updated_at=NOW() WHERE id=$1
	`, nodeID, notes)
	if err != nil {
		return fmt.Errorf("update node notes: %w", err)
	}
	return nil
}

// DeleteNodeCascade removes a node, its typed payload, and every incident
// edge inside one transaction, then touches the canvas.
func (s *PostgresStore) DeleteNodeCascade(ctx context.Context, node CanvasNode) error {
	table, ok := payloadTables[node.NodeType]
	if !ok {
		return fmt.Errorf("delete node: unknown node type %q", node.NodeType)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete node tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM canvas_edges WHERE source=$1 OR target=$1`, node.ID); err != nil {
		return fmt.Errorf("delete incident edges: %w", err)
	}
	if node.NodeType == NodeTypeGroup {
		// Members must rejoin top-level traversal when their container goes.
		if _, err := tx.ExecContext(ctx, `UPDATE canvas_nodes SET parent_group_id=NULL, updated_at=NOW() WHERE parent_group_id=$1`, node.ID); err != nil {
			return fmt.Errorf("release group members: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id=$1`, table), node.DataNodeID); err != nil {
		return fmt.Errorf("delete %s payload: %w", node.NodeType, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM canvas_nodes WHERE id=$1`, node.ID); err != nil {
		return fmt.Errorf("delete canvas node: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE canvases SET updated_at=NOW() WHERE id=$1`, node.CanvasID); err != nil {
		return fmt.Errorf("touch canvas: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete node: %w", err)
	}
	return nil
}

// ── Edges ──

func (s *PostgresStore) InsertEdge(ctx context.Context, item CanvasEdge) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO canvas_edges (id, canvas_id, source, target, source_handle, target_handle)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, item.ID, item.CanvasID, item.Source, item.Target, item.SourceHandle, item.TargetHandle)
	if err != nil {
		return fmt.Errorf("insert edge: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetEdge(ctx context.Context, edgeID string) (CanvasEdge, error) {
	var item CanvasEdge
	err := s.db.QueryRowContext(ctx, `
		SELECT id, canvas_id, source, target, source_handle, target_handle, created_at
		FROM canvas_edges WHERE id=$1
	`, edgeID).Scan(&item.ID, &item.CanvasID, &item.Source, &item.Target, &item.SourceHandle, &item.TargetHandle, &item.CreatedAt)
	if err != nil {
		return CanvasEdge{}, err
	}
	return item, nil
}

func (s *PostgresStore) DeleteEdge(ctx context.Context, edgeID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM canvas_edges WHERE id=$1`, edgeID)
	if err != nil {
		return fmt.Errorf("delete edge: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListEdgesByCanvas(ctx context.Context, canvasID string) ([]CanvasEdge, error) {
	return s.listEdges(ctx, `SELECT id, canvas_id, source, target, source_handle, target_handle, created_at FROM canvas_edges WHERE canvas_id=$1 ORDER BY created_at ASC`, canvasID)
}

// ListEdgesByTarget returns the incoming edges of a node in creation order.
// The context aggregator emits blocks in exactly this order.
func (s *PostgresStore) ListEdgesByTarget(ctx context.Context, targetNodeID string) ([]CanvasEdge, error) {
	return s.listEdges(ctx, `SELECT id, canvas_id, source, target, source_handle, target_handle, created_at FROM canvas_edges WHERE target=$1 ORDER BY created_at ASC`, targetNodeID)
}

func (s *PostgresStore) listEdges(ctx context.Context, query string, arg any) ([]CanvasEdge, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}
	defer rows.Close()

	items := make([]CanvasEdge, 0)
	for rows.Next() {
		var item CanvasEdge
		if err := rows.Scan(&item.ID, &item.CanvasID, &item.Source, &item.Target, &item.SourceHandle, &item.TargetHandle, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate edges: %w", err)
	}
	return items, nil
}

// ── Threads ──

func (s *PostgresStore) InsertThread(ctx context.Context, item Thread) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO threads (id, organization_id, canvas_id, agent_thread_id, title)
		VALUES ($1, $2, $3, $4, $5)
	`, item.ID, item.OrganizationID, item.CanvasID, item.AgentThreadID, item.Title)
	if err != nil {
		return fmt.Errorf("insert thread: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetThread(ctx context.Context, threadID string) (Thread, error) {
	var item Thread
	err := s.db.QueryRowContext(ctx, `
		SELECT id, organization_id, canvas_id, agent_thread_id, title, created_at, updated_at
		FROM threads WHERE id=$1
	`, threadID).Scan(&item.ID, &item.OrganizationID, &item.CanvasID, &item.AgentThreadID, &item.Title, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Thread{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListThreadsByCanvas(ctx context.Context, canvasID string) ([]Thread, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, organization_id, canvas_id, agent_thread_id, title, created_at, updated_at
		FROM threads WHERE canvas_id=$1 ORDER BY updated_at DESC
	`, canvasID)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()

	items := make([]Thread, 0)
	for rows.Next() {
		var item Thread
		if err := rows.Scan(&item.ID, &item.OrganizationID, &item.CanvasID, &item.AgentThreadID, &item.Title, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate threads: %w", err)
	}
	return items, nil
}
