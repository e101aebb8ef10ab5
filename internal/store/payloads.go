package store

import (
	"context"
	"fmt"
)

// NodePayload is implemented by every typed payload record so CreateNode can
// insert the payload and the CanvasNode inside one transaction.
type NodePayload interface {
	insertQuery() (string, []any)
}

func (p TextNode) insertQuery() (string, []any) {
	return `INSERT INTO text_nodes (id, content) VALUES ($1, $2)`, []any{p.ID, p.Content}
}

func (p ChatNode) insertQuery() (string, []any) {
	return `INSERT INTO chat_nodes (id, canvas_id, selected_thread_id) VALUES ($1, $2, $3)`,
		[]any{p.ID, p.CanvasID, p.SelectedThreadID}
}

func (p YoutubeNode) insertQuery() (string, []any) {
	return `INSERT INTO youtube_nodes (id, url, status) VALUES ($1, $2, $3)`, []any{p.ID, p.URL, p.Status}
}

func (p TikTokNode) insertQuery() (string, []any) {
	return `INSERT INTO tiktok_nodes (id, url, status) VALUES ($1, $2, $3)`, []any{p.ID, p.URL, p.Status}
}

func (p TwitterNode) insertQuery() (string, []any) {
	return `INSERT INTO twitter_nodes (id, url, status) VALUES ($1, $2, $3)`, []any{p.ID, p.URL, p.Status}
}

func (p WebsiteNode) insertQuery() (string, []any) {
	return `INSERT INTO website_nodes (id, url, status) VALUES ($1, $2, $3)`, []any{p.ID, p.URL, p.Status}
}

func (p FacebookAdNode) insertQuery() (string, []any) {
	return `INSERT INTO facebook_ad_nodes (id, ad_id, status) VALUES ($1, $2, $3)`, []any{p.ID, p.AdID, p.Status}
}

func (p ImageNode) insertQuery() (string, []any) {
	return `INSERT INTO image_nodes (id, prompt, is_ai_generated, status) VALUES ($1, $2, $3, $4)`,
		[]any{p.ID, p.Prompt, p.IsAIGenerated, p.Status}
}

func (p GroupNode) insertQuery() (string, []any) {
	return `INSERT INTO group_nodes (id, title) VALUES ($1, $2)`, []any{p.ID, p.Title}
}

// ── Payload reads ──

func (s *PostgresStore) GetTextNode(ctx context.Context, id string) (TextNode, error) {
	var p TextNode
	err := s.db.QueryRowContext(ctx, `SELECT id, content FROM text_nodes WHERE id=$1`, id).Scan(&p.ID, &p.Content)
	if err != nil {
		return TextNode{}, err
	}
	return p, nil
}

func (s *PostgresStore) GetChatNode(ctx context.Context, id string) (ChatNode, error) {
	var p ChatNode
	err := s.db.QueryRowContext(ctx, `SELECT id, canvas_id, selected_thread_id FROM chat_nodes WHERE id=$1`, id).
		Scan(&p.ID, &p.CanvasID, &p.SelectedThreadID)
	if err != nil {
		return ChatNode{}, err
	}
	return p, nil
}

func (s *PostgresStore) GetYoutubeNode(ctx context.Context, id string) (YoutubeNode, error) {
	var p YoutubeNode
	err := s.db.QueryRowContext(ctx, `SELECT id, url, status, title, author, transcript, error FROM youtube_nodes WHERE id=$1`, id).
		Scan(&p.ID, &p.URL, &p.Status, &p.Title, &p.Author, &p.Transcript, &p.Error)
	if err != nil {
		return YoutubeNode{}, err
	}
	return p, nil
}

func (s *PostgresStore) GetTikTokNode(ctx context.Context, id string) (TikTokNode, error) {
	var p TikTokNode
	err := s.db.QueryRowContext(ctx, `SELECT id, url, status, title, author, transcript, error FROM tiktok_nodes WHERE id=$1`, id).
		Scan(&p.ID, &p.URL, &p.Status, &p.Title, &p.Author, &p.Transcript, &p.Error)
	if err != nil {
		return TikTokNode{}, err
	}
	return p, nil
}

func (s *PostgresStore) GetTwitterNode(ctx context.Context, id string) (TwitterNode, error) {
	var p TwitterNode
	err := s.db.QueryRowContext(ctx, `SELECT id, url, status, author, full_text, error FROM twitter_nodes WHERE id=$1`, id).
		Scan(&p.ID, &p.URL, &p.Status, &p.Author, &p.FullText, &p.Error)
	if err != nil {
		return TwitterNode{}, err
	}
	return p, nil
}

func (s *PostgresStore) GetWebsiteNode(ctx context.Context, id string) (WebsiteNode, error) {
	var p WebsiteNode
	err := s.db.QueryRowContext(ctx, `SELECT id, url, status, title, markdown, error FROM website_nodes WHERE id=$1`, id).
		Scan(&p.ID, &p.URL, &p.Status, &p.Title, &p.Markdown, &p.Error)
	if err != nil {
		return WebsiteNode{}, err
	}
	return p, nil
}

func (s *PostgresStore) GetFacebookAdNode(ctx context.Context, id string) (FacebookAdNode, error) {
	var p FacebookAdNode
	err := s.db.QueryRowContext(ctx, `SELECT id, ad_id, status, page_name, body, media_type, error FROM facebook_ad_nodes WHERE id=$1`, id).
		Scan(&p.ID, &p.AdID, &p.Status, &p.PageName, &p.Body, &p.MediaType, &p.Error)
	if err != nil {
		return FacebookAdNode{}, err
	}
	return p, nil
}

func (s *PostgresStore) GetImageNode(ctx context.Context, id string) (ImageNode, error) {
	var p ImageNode
	err := s.db.QueryRowContext(ctx, `SELECT id, prompt, is_ai_generated, status, blob_ref, provider_task_id, width, height, error FROM image_nodes WHERE id=$1`, id).
		Scan(&p.ID, &p.Prompt, &p.IsAIGenerated, &p.Status, &p.BlobRef, &p.ProviderTaskID, &p.Width, &p.Height, &p.Error)
	if err != nil {
		return ImageNode{}, err
	}
	return p, nil
}

func (s *PostgresStore) GetGroupNode(ctx context.Context, id string) (GroupNode, error) {
	var p GroupNode
	err := s.db.QueryRowContext(ctx, `SELECT id, title FROM group_nodes WHERE id=$1`, id).Scan(&p.ID, &p.Title)
	if err != nil {
		return GroupNode{}, err
	}
	return p, nil
}

// ── Payload writes ──

func (s *PostgresStore) UpdateTextContent(ctx context.Context, id, content string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE text_nodes SET content=$2 WHERE id=$1`, id, content)
	if err != nil {
		return fmt.Errorf("update text content: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetChatSelectedThread(ctx context.Context, id string, threadID *string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE chat_nodes SET selected_thread_id=$2 WHERE id=$1`, id, threadID)
	if err != nil {
		return fmt.Errorf("set chat selected thread: %w", err)
	}
	return nil
}

// SetEnrichmentStatus patches the status and error message of an enriching
// payload row. This is the only way workers move a node through the state
// machine, so transitions stay single-row atomic.
func (s *PostgresStore) SetEnrichmentStatus(ctx context.Context, nodeType, id, status, message string) error {
	table, ok := payloadTables[nodeType]
	if !ok || !EnrichingType(nodeType) {
		return fmt.Errorf("set status: node type %q does not enrich", nodeType)
	}
	query := fmt.Sprintf(`UPDATE %s SET status=$2, error=$3 WHERE id=$1`, table)
	if _, err := s.db.ExecContext(ctx, query, id, status, message); err != nil {
		return fmt.Errorf("set %s status: %w", nodeType, err)
	}
	return nil
}

func (s *PostgresStore) CompleteYoutubeNode(ctx context.Context, id, title, author, transcript string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE youtube_nodes SET status=$2, title=$3, author=$4, transcript=$5, error='' WHERE id=$1
	`, id, StatusCompleted, title, author, transcript)
	if err != nil {
		return fmt.Errorf("complete youtube node: %w", err)
	}
	return nil
}

func (s *PostgresStore) CompleteTikTokNode(ctx context.Context, id, title, author, transcript string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tiktok_nodes SET status=$2, title=$3, author=$4, transcript=$5, error='' WHERE id=$1
	`, id, StatusCompleted, title, author, transcript)
	if err != nil {
		return fmt.Errorf("complete tiktok node: %w", err)
	}
	return nil
}

func (s *PostgresStore) CompleteTwitterNode(ctx context.Context, id, author, fullText string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE twitter_nodes SET status=$2, author=$3, full_text=$4, error='' WHERE id=$1
	`, id, StatusCompleted, author, fullText)
	if err != nil {
		return fmt.Errorf("complete twitter node: %w", err)
	}
	return nil
}

func (s *PostgresStore) CompleteWebsiteNode(ctx context.Context, id, title, markdown string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE website_nodes SET status=$2, title=$3, markdown=$4, error='' WHERE id=$1
	`, id, StatusCompleted, title, markdown)
	if err != nil {
		return fmt.Errorf("complete website node: %w", err)
	}
	return nil
}

func (s *PostgresStore) CompleteFacebookAdNode(ctx context.Context, id, pageName, body, mediaType string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE facebook_ad_nodes SET status=$2, page_name=$3, body=$4, media_type=$5, error='' WHERE id=$1
	`, id, StatusCompleted, pageName, body, mediaType)
	if err != nil {
		return fmt.Errorf("complete facebook ad node: %w", err)
	}
	return nil
}

// SetImageProviderTask records the provider task handle; the node remains in
// processing until the webhook finalizes it.
func (s *PostgresStore) SetImageProviderTask(ctx context.Context, id, taskID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE image_nodes SET provider_task_id=$2, status=$3 WHERE id=$1
	`, id, taskID, StatusProcessing)
	if err != nil {
		return fmt.Errorf("set image provider task: %w", err)
	}
	return nil
}

// CompleteImageNode is idempotent by construction: a duplicate webhook
// delivery overwrites the same columns with the same values.
func (s *PostgresStore) CompleteImageNode(ctx context.Context, id, blobRef string, width, height int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE image_nodes SET status=$2, blob_ref=$3, width=$4, height=$5, error='' WHERE id=$1
	`, id, StatusCompleted, blobRef, width, height)
	if err != nil {
		return fmt.Errorf("complete image node: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertFacebookAdMedia(ctx context.Context, item FacebookAdMedia) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO facebook_ad_media (id, ad_node_id, kind, blob_ref, position)
		VALUES ($1, $2, $3, $4, $5)
	`, item.ID, item.AdNodeID, item.Kind, item.BlobRef, item.Position)
	if err != nil {
		return fmt.Errorf("insert facebook ad media: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListFacebookAdMedia(ctx context.Context, adNodeID string) ([]FacebookAdMedia, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ad_node_id, kind, blob_ref, position
		FROM facebook_ad_media WHERE ad_node_id=$1 ORDER BY position ASC
	`, adNodeID)
	if err != nil {
		return nil, fmt.Errorf("list facebook ad media: %w", err)
	}
	defer rows.Close()

	items := make([]FacebookAdMedia, 0)
	for rows.Next() {
		var item FacebookAdMedia
		if err := rows.Scan(&item.ID, &item.AdNodeID, &item.Kind, &item.BlobRef, &item.Position); err != nil {
			return nil, fmt.Errorf("scan facebook ad media: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate facebook ad media: %w", err)
	}
	return items, nil
}
