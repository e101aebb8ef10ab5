package enrich

import (
	"context"
	"fmt"
	"log"
	"net/url"

	"tapestry/api/internal/store"
)

// EnrichTwitter fetches the tweet text and author for one node.
func (e *Engine) EnrichTwitter(ctx context.Context, nodeID string) {
	node, err := e.store.GetTwitterNode(ctx, nodeID)
	if err != nil {
		log.Printf("enrich: twitter node %s not found, aborting: %v", nodeID, err)
		return
	}

	e.transition(ctx, store.NodeTypeTwitter, nodeID, store.StatusProcessing, "")

	if e.social == nil || !e.social.Configured() {
		e.fail(ctx, store.NodeTypeTwitter, nodeID, fmt.Errorf("no content provider configured"))
		return
	}

	doc, err := e.social.FetchJSON(ctx, "/v1/twitter/tweet", url.Values{"url": {node.URL}})
	if err != nil {
		e.fail(ctx, store.NodeTypeTwitter, nodeID, err)
		return
	}

	author := firstString(doc,
		"author.screen_name",
		"user.screen_name",
		"core.user_results.result.legacy.screen_name",
	)
	fullText := firstString(doc, "full_text", "legacy.full_text", "text")

	if err := e.store.CompleteTwitterNode(ctx, nodeID, author, fullText); err != nil {
		log.Printf("enrich: complete twitter node %s: %v", nodeID, err)
		return
	}
	e.publish(ctx, store.NodeTypeTwitter, nodeID, store.StatusCompleted, "")
	e.indexNode(ctx, store.NodeTypeTwitter, nodeID, author, fullText)
}
