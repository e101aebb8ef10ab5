// Package scrape extracts page title and visible text with headless Chrome.
// It is the fallback scrape engine used by the website worker when no hosted
// scrape provider is configured.
package scrape

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/chromedp/chromedp"
)

var ErrChromeMissing = fmt.Errorf("chromium not installed")

type Page struct {
	Title string
	Text  string
}

type Chrome struct {
	timeout time.Duration
}

func NewChrome() *Chrome {
	return &Chrome{timeout: 30 * time.Second}
}

// Fetch navigates to the URL and returns the document title and body text.
func (c *Chrome) Fetch(ctx context.Context, url string) (Page, error) {
	if _, err := exec.LookPath("chromium-browser"); err != nil {
		if _, fallbackErr := exec.LookPath("chromium"); fallbackErr != nil {
			return Page{}, ErrChromeMissing
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
	)

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	defer cancel()

	taskCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	var page Page
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Title(&page.Title),
		chromedp.Text("body", &page.Text, chromedp.ByQuery),
	)
	if err != nil {
		return Page{}, fmt.Errorf("chrome page fetch failed: %w", err)
	}
	return page, nil
}
