package enrich

import (
	"context"
	"fmt"
	"log"
	"net/url"

	"tapestry/api/internal/store"
	"tapestry/api/internal/util"
)

const maxAdImages = 5

// EnrichFacebookAd fetches an ad-library record, classifies its media, and
// downloads the media into the blob store. Video takes priority over
// images; at most one video thumbnail or five images are stored.
func (e *Engine) EnrichFacebookAd(ctx context.Context, nodeID string) {
	node, err := e.store.GetFacebookAdNode(ctx, nodeID)
	if err != nil {
		log.Printf("enrich: facebook ad node %s not found, aborting: %v", nodeID, err)
		return
	}

	e.transition(ctx, store.NodeTypeFacebookAd, nodeID, store.StatusProcessing, "")

	if e.ads == nil || !e.ads.Configured() {
		e.fail(ctx, store.NodeTypeFacebookAd, nodeID, fmt.Errorf("no ad library provider configured"))
		return
	}

	doc, err := e.ads.FetchJSON(ctx, "/v1/facebook/adLibrary/ad", url.Values{"id": {node.AdID}})
	if err != nil {
		e.fail(ctx, store.NodeTypeFacebookAd, nodeID, err)
		return
	}

	pageName := firstString(doc, "page_name", "pageName", "snapshot.page_name")
	body := firstString(doc, "snapshot.body.text", "body.text", "body", "creative_bodies.0")

	videos := firstList(doc, "snapshot.videos", "videos")
	images := firstList(doc, "snapshot.images", "images")

	mediaType := store.MediaTypeNone
	switch {
	case len(videos) > 0:
		mediaType = store.MediaTypeVideo
	case len(images) > 0:
		mediaType = store.MediaTypeImage
	}

	if err := e.storeAdMedia(ctx, nodeID, mediaType, videos, images); err != nil {
		e.fail(ctx, store.NodeTypeFacebookAd, nodeID, err)
		return
	}

	if err := e.store.CompleteFacebookAdNode(ctx, nodeID, pageName, body, mediaType); err != nil {
		log.Printf("enrich: complete facebook ad node %s: %v", nodeID, err)
		return
	}
	e.publish(ctx, store.NodeTypeFacebookAd, nodeID, store.StatusCompleted, "")
	e.indexNode(ctx, store.NodeTypeFacebookAd, nodeID, pageName, body)
}

func (e *Engine) storeAdMedia(ctx context.Context, nodeID, mediaType string, videos, images []any) error {
	if e.blobs == nil || mediaType == store.MediaTypeNone {
		return nil
	}

	var sources []string
	switch mediaType {
	case store.MediaTypeVideo:
		if item, ok := videos[0].(map[string]any); ok {
			thumb := firstString(item, "video_preview_image_url", "thumbnail_url", "preview_image_url")
			if thumb != "" {
				sources = append(sources, thumb)
			}
		}
	case store.MediaTypeImage:
		for _, raw := range images {
			if len(sources) >= maxAdImages {
				break
			}
			item, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			imageURL := firstString(item, "original_image_url", "resized_image_url", "url")
			if imageURL != "" {
				sources = append(sources, imageURL)
			}
		}
	}

	for position, source := range sources {
		data, contentType, err := e.ads.DownloadBytes(ctx, source)
		if err != nil {
			return fmt.Errorf("download ad media: %w", err)
		}
		ref, err := e.blobs.Put(ctx, data, contentType)
		if err != nil {
			return fmt.Errorf("store ad media: %w", err)
		}
		media := store.FacebookAdMedia{
			ID:       util.NewID("media"),
			AdNodeID: nodeID,
			Kind:     mediaType,
			BlobRef:  ref,
			Position: position,
		}
		if err := e.store.InsertFacebookAdMedia(ctx, media); err != nil {
			return fmt.Errorf("record ad media: %w", err)
		}
	}
	return nil
}
