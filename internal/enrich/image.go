package enrich

import (
	"context"
	"fmt"
	"log"
	"net/url"

	"tapestry/api/internal/store"
)

// DispatchImage submits the generation job and records the provider task
// id. The node stays in processing; the webhook completion path finalizes
// it when the provider calls back.
func (e *Engine) DispatchImage(ctx context.Context, nodeID string) {
	node, err := e.store.GetImageNode(ctx, nodeID)
	if err != nil {
		log.Printf("enrich: image node %s not found, aborting: %v", nodeID, err)
		return
	}

	e.transition(ctx, store.NodeTypeImage, nodeID, store.StatusProcessing, "")

	if e.imagegen == nil || !e.imagegen.Configured() {
		e.fail(ctx, store.NodeTypeImage, nodeID, fmt.Errorf("no image generation provider configured"))
		return
	}

	callbackURL := e.publicBaseURL + "/enrichment/image-callback?nodeId=" + url.QueryEscape(nodeID)
	taskID, err := e.imagegen.Dispatch(ctx, node.Prompt, callbackURL)
	if err != nil {
		e.fail(ctx, store.NodeTypeImage, nodeID, err)
		return
	}

	if err := e.store.SetImageProviderTask(ctx, nodeID, taskID); err != nil {
		log.Printf("enrich: record image task for %s: %v", nodeID, err)
	}
}
