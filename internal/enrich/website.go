package enrich

import (
	"context"
	"fmt"
	"log"

	"tapestry/api/internal/store"
)

// EnrichWebsite scrapes the page into markdown. A hosted scrape provider is
// preferred; without one the local headless-Chrome fetcher is used.
func (e *Engine) EnrichWebsite(ctx context.Context, nodeID string) {
	node, err := e.store.GetWebsiteNode(ctx, nodeID)
	if err != nil {
		log.Printf("enrich: website node %s not found, aborting: %v", nodeID, err)
		return
	}

	e.transition(ctx, store.NodeTypeWebsite, nodeID, store.StatusProcessing, "")

	title, markdown, err := e.scrapePage(ctx, node.URL)
	if err != nil {
		e.fail(ctx, store.NodeTypeWebsite, nodeID, err)
		return
	}
	if title == "" {
		title = node.URL
	}

	if err := e.store.CompleteWebsiteNode(ctx, nodeID, title, markdown); err != nil {
		log.Printf("enrich: complete website node %s: %v", nodeID, err)
		return
	}
	e.publish(ctx, store.NodeTypeWebsite, nodeID, store.StatusCompleted, "")
	e.indexNode(ctx, store.NodeTypeWebsite, nodeID, title, markdown)
}

func (e *Engine) scrapePage(ctx context.Context, pageURL string) (string, string, error) {
	if e.webscrape != nil && e.webscrape.Configured() {
		doc, err := e.webscrape.PostJSON(ctx, "/v1/scrape", map[string]any{
			"url":     pageURL,
			"formats": []string{"markdown"},
		})
		if err != nil {
			return "", "", err
		}
		title := firstString(doc, "data.metadata.title", "metadata.title", "title")
		markdown := firstString(doc, "data.markdown", "markdown", "content")
		return title, markdown, nil
	}

	if e.chrome != nil {
		page, err := e.chrome.Fetch(ctx, pageURL)
		if err != nil {
			return "", "", err
		}
		return page.Title, page.Text, nil
	}

	return "", "", fmt.Errorf("no scrape engine configured")
}
