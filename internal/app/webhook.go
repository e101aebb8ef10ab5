package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"tapestry/api/internal/notify"
	"tapestry/api/internal/store"
)

// ImageCallback is the payload the image-generation provider posts to
// /enrichment/image-callback?nodeId=.
type ImageCallback struct {
	Code int `json:"code"`
	Data struct {
		State      string `json:"state"`
		TaskID     string `json:"taskId"`
		ResultJSON string `json:"resultJson"`
		FailMsg    string `json:"failMsg"`
	} `json:"data"`
}

// imageResult is the normalized outcome both completion paths funnel into
// finalizeImageNode.
type imageResult struct {
	success   bool
	resultURL string
	failMsg   string
}

// ErrUnrecognizedCallback marks a payload shape that is neither a success
// nor a failure; the handler answers 400 and mutates nothing.
var ErrUnrecognizedCallback = fmt.Errorf("unrecognized callback payload")

// HandleImageCallback processes one provider delivery. Delivery is
// at-least-once, so the whole path is idempotent: a duplicate success or
// failure overwrites the node with the same terminal state.
func (s *Service) HandleImageCallback(ctx context.Context, nodeID string, callback ImageCallback) error {
	if strings.TrimSpace(nodeID) == "" {
		return validationError("nodeId is required")
	}
	node, err := s.store.GetImageNode(ctx, nodeID)
	if err != nil {
		return err
	}

	switch {
	case callback.Code == 200 && callback.Data.State == "success":
		resultURL := firstResultURL(callback.Data.ResultJSON)
		if resultURL == "" {
			return ErrUnrecognizedCallback
		}
		// Duplicate delivery for a node that already holds its image: keep
		// the stored reference instead of downloading again.
		if node.Status == store.StatusCompleted && node.BlobRef != "" {
			if err := s.store.CompleteImageNode(ctx, nodeID, node.BlobRef, node.Width, node.Height); err != nil {
				return err
			}
			s.publishImageStatus(ctx, nodeID, store.StatusCompleted, "")
			return nil
		}
		return s.finalizeImageNode(ctx, nodeID, imageResult{success: true, resultURL: resultURL})
	case callback.Code == 501 || callback.Data.State == "fail":
		failMsg := callback.Data.FailMsg
		if failMsg == "" {
			failMsg = "Image generation failed."
		}
		return s.finalizeImageNode(ctx, nodeID, imageResult{failMsg: failMsg})
	default:
		return ErrUnrecognizedCallback
	}
}

// finalizeImageNode is the single funnel for terminal image transitions:
// the webhook success path, the webhook failure path, and nothing else.
func (s *Service) finalizeImageNode(ctx context.Context, nodeID string, result imageResult) error {
	if !result.success {
		if err := s.store.SetEnrichmentStatus(ctx, store.NodeTypeImage, nodeID, store.StatusFailed, result.failMsg); err != nil {
			return err
		}
		s.publishImageStatus(ctx, nodeID, store.StatusFailed, result.failMsg)
		return nil
	}

	if s.download == nil || s.blobs == nil {
		return domainError(503, "BLOB_UNAVAILABLE", "Blob storage is not configured", nil)
	}
	data, contentType, err := s.download.DownloadBytes(ctx, result.resultURL)
	if err != nil {
		// Storage trouble on our side stays on the node, per the worker
		// contract: the provider finished its part.
		message := "Failed to download the generated image."
		if statusErr := s.store.SetEnrichmentStatus(ctx, store.NodeTypeImage, nodeID, store.StatusFailed, message); statusErr != nil {
			return statusErr
		}
		s.publishImageStatus(ctx, nodeID, store.StatusFailed, message)
		return nil
	}
	ref, err := s.blobs.Put(ctx, data, contentType)
	if err != nil {
		message := "Failed to store the generated image."
		if statusErr := s.store.SetEnrichmentStatus(ctx, store.NodeTypeImage, nodeID, store.StatusFailed, message); statusErr != nil {
			return statusErr
		}
		s.publishImageStatus(ctx, nodeID, store.StatusFailed, message)
		return nil
	}

	if err := s.store.CompleteImageNode(ctx, nodeID, ref, 512, 512); err != nil {
		return err
	}
	s.publishImageStatus(ctx, nodeID, store.StatusCompleted, "")
	return nil
}

func (s *Service) publishImageStatus(ctx context.Context, typedID, status, message string) {
	if s.notifier == nil {
		return
	}
	node, err := s.store.CanvasNodeByDataID(ctx, typedID)
	if err != nil {
		log.Printf("app: resolve canvas node for image %s: %v", typedID, err)
		return
	}
	event := notify.StatusEvent{
		CanvasID: node.CanvasID,
		NodeID:   node.ID,
		NodeType: store.NodeTypeImage,
		Status:   status,
		Error:    message,
	}
	if err := s.notifier.PublishStatus(ctx, event); err != nil {
		log.Printf("app: publish image status for %s: %v", node.ID, err)
	}
}

// firstResultURL digs the first image URL out of the provider's nested
// resultJson string.
func firstResultURL(resultJSON string) string {
	if strings.TrimSpace(resultJSON) == "" {
		return ""
	}
	var parsed map[string]any
	if err := json.Unmarshal([]byte(resultJSON), &parsed); err != nil {
		return ""
	}
	for _, key := range []string{"resultUrls", "result_urls", "urls"} {
		list, _ := parsed[key].([]any)
		if len(list) > 0 {
			if first, ok := list[0].(string); ok && strings.TrimSpace(first) != "" {
				return first
			}
		}
	}
	return ""
}
