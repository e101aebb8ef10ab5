package enrich

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"

	"tapestry/api/internal/store"
)

// EnrichYoutube fetches the video transcript and metadata for one node.
func (e *Engine) EnrichYoutube(ctx context.Context, nodeID string) {
	node, err := e.store.GetYoutubeNode(ctx, nodeID)
	if err != nil {
		log.Printf("enrich: youtube node %s not found, aborting: %v", nodeID, err)
		return
	}

	e.transition(ctx, store.NodeTypeYoutube, nodeID, store.StatusProcessing, "")

	if e.social == nil || !e.social.Configured() {
		e.fail(ctx, store.NodeTypeYoutube, nodeID, fmt.Errorf("no content provider configured"))
		return
	}

	doc, err := e.social.FetchJSON(ctx, "/v1/youtube/video/transcript", url.Values{"url": {node.URL}})
	if err != nil {
		e.fail(ctx, store.NodeTypeYoutube, nodeID, err)
		return
	}

	title := firstString(doc, "title", "videoTitle", "video.title")
	author := firstString(doc, "channelName", "channel.title", "author")
	transcript := firstString(doc, "transcript_only_text", "transcriptText")
	if transcript == "" {
		transcript = joinSegments(firstList(doc, "transcript", "segments"))
	}
	transcript = normalizeTranscript(transcript)

	if err := e.store.CompleteYoutubeNode(ctx, nodeID, title, author, transcript); err != nil {
		log.Printf("enrich: complete youtube node %s: %v", nodeID, err)
		return
	}
	e.publish(ctx, store.NodeTypeYoutube, nodeID, store.StatusCompleted, "")
	e.indexNode(ctx, store.NodeTypeYoutube, nodeID, title, transcript)
}

// joinSegments concatenates the text field of transcript segment objects.
func joinSegments(segments []any) string {
	parts := make([]string, 0, len(segments))
	for _, segment := range segments {
		item, ok := segment.(map[string]any)
		if !ok {
			continue
		}
		text, _ := item["text"].(string)
		if strings.TrimSpace(text) != "" {
			parts = append(parts, strings.TrimSpace(text))
		}
	}
	return strings.Join(parts, " ")
}
