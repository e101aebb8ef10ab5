package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"tapestry/api/internal/store"
)

// ContextBlock is one role-tagged text block assembled for the chat call.
type ContextBlock struct {
	NodeID   string `json:"nodeId"`
	NodeType string `json:"nodeType"`
	Text     string `json:"text"`
}

// BuildContext walks the incoming edges of the target node and turns each
// completed source payload into a text block, in edge order. Sources whose
// enrichment is not completed, or whose extracted text is empty, emit
// nothing. A source with free-text notes gets one extra block after its
// primary block.
func (s *Service) BuildContext(ctx context.Context, session Session, nodeID string) ([]ContextBlock, error) {
	if _, err := s.nodeForOrg(ctx, nodeID, session.OrgID); err != nil {
		return nil, err
	}

	edges, err := s.store.ListEdgesByTarget(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	blocks := make([]ContextBlock, 0, len(edges))
	for _, edge := range edges {
		source, err := s.store.GetCanvasNode(ctx, edge.Source)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, err
		}

		text, err := s.contextText(ctx, source)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				log.Printf("app: source node %s has no payload, skipping", source.ID)
				continue
			}
			return nil, err
		}
		if text == "" {
			continue
		}

		blocks = append(blocks, ContextBlock{NodeID: source.ID, NodeType: source.NodeType, Text: text})
		if strings.TrimSpace(source.Notes) != "" {
			blocks = append(blocks, ContextBlock{
				NodeID:   source.ID,
				NodeType: source.NodeType,
				Text:     "Notes:\n" + source.Notes,
			})
		}
	}
	return blocks, nil
}

// contextText renders the type-specific block, or "" when the source
// contributes nothing.
func (s *Service) contextText(ctx context.Context, node store.CanvasNode) (string, error) {
	switch node.NodeType {
	case store.NodeTypeText:
		p, err := s.store.GetTextNode(ctx, node.DataNodeID)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(p.Content) == "" {
			return "", nil
		}
		return "Text Note:\n" + p.Content, nil

	case store.NodeTypeYoutube:
		p, err := s.store.GetYoutubeNode(ctx, node.DataNodeID)
		if err != nil {
			return "", err
		}
		if p.Status != store.StatusCompleted || strings.TrimSpace(p.Transcript) == "" {
			return "", nil
		}
		return fmt.Sprintf("YouTube Video: %s\nURL: %s\n\nTranscript:\n%s", p.Title, p.URL, p.Transcript), nil

	case store.NodeTypeTikTok:
		p, err := s.store.GetTikTokNode(ctx, node.DataNodeID)
		if err != nil {
			return "", err
		}
		if p.Status != store.StatusCompleted || strings.TrimSpace(p.Transcript) == "" {
			return "", nil
		}
		return fmt.Sprintf("TikTok Video: %s\nURL: %s\n\nTranscript:\n%s", p.Title, p.URL, p.Transcript), nil

	case store.NodeTypeTwitter:
		p, err := s.store.GetTwitterNode(ctx, node.DataNodeID)
		if err != nil {
			return "", err
		}
		if p.Status != store.StatusCompleted || strings.TrimSpace(p.FullText) == "" {
			return "", nil
		}
		return fmt.Sprintf("Tweet from @%s:\n%s", p.Author, p.FullText), nil

	case store.NodeTypeWebsite:
		p, err := s.store.GetWebsiteNode(ctx, node.DataNodeID)
		if err != nil {
			return "", err
		}
		if p.Status != store.StatusCompleted || strings.TrimSpace(p.Markdown) == "" {
			return "", nil
		}
		title := p.Title
		if strings.TrimSpace(title) == "" {
			title = p.URL
		}
		return fmt.Sprintf("Website: %s\nURL: %s\n\nContent:\n%s", title, p.URL, p.Markdown), nil

	case store.NodeTypeFacebookAd:
		p, err := s.store.GetFacebookAdNode(ctx, node.DataNodeID)
		if err != nil {
			return "", err
		}
		if p.Status != store.StatusCompleted || strings.TrimSpace(p.Body) == "" {
			return "", nil
		}
		return fmt.Sprintf("Facebook Ad: %s\nAd ID: %s\n\nBody:\n%s", p.PageName, p.AdID, p.Body), nil

	case store.NodeTypeImage:
		p, err := s.store.GetImageNode(ctx, node.DataNodeID)
		if err != nil {
			return "", err
		}
		if p.Status != store.StatusCompleted || strings.TrimSpace(p.Prompt) == "" {
			return "", nil
		}
		if p.IsAIGenerated {
			return "Image (AI generated): " + p.Prompt, nil
		}
		return "Image: " + p.Prompt, nil
	}

	// chat and group sources contribute no context
	return "", nil
}
