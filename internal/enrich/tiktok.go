package enrich

import (
	"context"
	"fmt"
	"log"
	"net/url"

	"tapestry/api/internal/store"
)

// EnrichTikTok fetches the video transcript and metadata for one node.
func (e *Engine) EnrichTikTok(ctx context.Context, nodeID string) {
	node, err := e.store.GetTikTokNode(ctx, nodeID)
	if err != nil {
		log.Printf("enrich: tiktok node %s not found, aborting: %v", nodeID, err)
		return
	}

	e.transition(ctx, store.NodeTypeTikTok, nodeID, store.StatusProcessing, "")

	if e.social == nil || !e.social.Configured() {
		e.fail(ctx, store.NodeTypeTikTok, nodeID, fmt.Errorf("no content provider configured"))
		return
	}

	doc, err := e.social.FetchJSON(ctx, "/v1/tiktok/video/transcript", url.Values{"url": {node.URL}})
	if err != nil {
		e.fail(ctx, store.NodeTypeTikTok, nodeID, err)
		return
	}

	title := firstString(doc, "title", "desc", "aweme_detail.desc")
	author := firstString(doc, "author.nickname", "author.unique_id", "aweme_detail.author.nickname")
	transcript := firstString(doc, "transcript", "transcript_only_text", "subtitle")
	if transcript == "" {
		transcript = joinSegments(firstList(doc, "segments", "subtitles"))
	}
	transcript = normalizeTranscript(transcript)

	if err := e.store.CompleteTikTokNode(ctx, nodeID, title, author, transcript); err != nil {
		log.Printf("enrich: complete tiktok node %s: %v", nodeID, err)
		return
	}
	e.publish(ctx, store.NodeTypeTikTok, nodeID, store.StatusCompleted, "")
	e.indexNode(ctx, store.NodeTypeTikTok, nodeID, title, transcript)
}
