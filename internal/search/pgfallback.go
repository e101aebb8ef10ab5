package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFallback serves node search straight from Postgres with ILIKE matching.
// Slower and unranked, but keeps search working when Meilisearch is down.
type PgFallback struct {
	db *sql.DB
}

func NewPgFallback(db *sql.DB) *PgFallback {
	return &PgFallback{db: db}
}

// nodeContentCTE flattens the per-type payload tables into (node id, canvas,
// type, title, body) rows. Only completed enriched content is searchable.
const nodeContentCTE = `
	WITH node_content AS (
		SELECT cn.id, cn.canvas_id, cn.node_type, '' AS title, p.content AS body
		FROM canvas_nodes cn JOIN text_nodes p ON p.id = cn.data_node_id
		UNION ALL
		SELECT cn.id, cn.canvas_id, cn.node_type, p.title, p.transcript
		FROM canvas_nodes cn JOIN youtube_nodes p ON p.id = cn.data_node_id
		WHERE p.status = 'completed'
		UNION ALL
		SELECT cn.id, cn.canvas_id, cn.node_type, p.title, p.transcript
		FROM canvas_nodes cn JOIN tiktok_nodes p ON p.id = cn.data_node_id
		WHERE p.status = 'completed'
		UNION ALL
		SELECT cn.id, cn.canvas_id, cn.node_type, p.author, p.full_text
		FROM canvas_nodes cn JOIN twitter_nodes p ON p.id = cn.data_node_id
		WHERE p.status = 'completed'
		UNION ALL
		SELECT cn.id, cn.canvas_id, cn.node_type, p.title, p.markdown
		FROM canvas_nodes cn JOIN website_nodes p ON p.id = cn.data_node_id
		WHERE p.status = 'completed'
		UNION ALL
		SELECT cn.id, cn.canvas_id, cn.node_type, p.page_name, p.body
		FROM canvas_nodes cn JOIN facebook_ad_nodes p ON p.id = cn.data_node_id
		WHERE p.status = 'completed'
		UNION ALL
		SELECT cn.id, cn.canvas_id, cn.node_type, '' AS title, p.prompt
		FROM canvas_nodes cn JOIN image_nodes p ON p.id = cn.data_node_id
		WHERE p.status = 'completed'
	)
`

// Search runs an ILIKE query over the flattened node content.
func (f *PgFallback) Search(ctx context.Context, q Query) ([]Result, int, error) {
	limit := q.Limit
	if limit == 0 {
		limit = 20
	}

	conditions := []string{"(title ILIKE $1 OR body ILIKE $1)"}
	args := []any{"%" + q.Text + "%"}
	if q.FilterCanvasID != "" {
		args = append(args, q.FilterCanvasID)
		conditions = append(conditions, fmt.Sprintf("canvas_id = $%d", len(args)))
	}
	if q.FilterNodeType != "" {
		args = append(args, q.FilterNodeType)
		conditions = append(conditions, fmt.Sprintf("node_type = $%d", len(args)))
	}
	where := strings.Join(conditions, " AND ")

	var total int
	countQuery := nodeContentCTE + `SELECT COUNT(*) FROM node_content WHERE ` + where
	if err := f.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count search results: %w", err)
	}

	args = append(args, limit, q.Offset)
	listQuery := nodeContentCTE + fmt.Sprintf(`
		SELECT id, canvas_id, node_type, title, LEFT(body, 200) FROM node_content
		WHERE %s ORDER BY id LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args))

	rows, err := f.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search nodes: %w", err)
	}
	defer rows.Close()

	results := make([]Result, 0)
	for rows.Next() {
		var item Result
		if err := rows.Scan(&item.ID, &item.CanvasID, &item.NodeType, &item.Title, &item.Snippet); err != nil {
			return nil, 0, fmt.Errorf("scan search result: %w", err)
		}
		results = append(results, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate search results: %w", err)
	}
	return results, total, nil
}
