package enrich

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"

	"tapestry/api/internal/notify"
	"tapestry/api/internal/scrape"
	"tapestry/api/internal/search"
	"tapestry/api/internal/store"
)

// fakeEnrichStore backs the engine tests with in-memory records and call
// logs, one field per payload family the workers touch.
type fakeEnrichStore struct {
	youtube  map[string]store.YoutubeNode
	tiktok   map[string]store.TikTokNode
	twitter  map[string]store.TwitterNode
	website  map[string]store.WebsiteNode
	fbad     map[string]store.FacebookAdNode
	image    map[string]store.ImageNode
	canvas   map[string]store.CanvasNode // keyed by data node id
	media    []store.FacebookAdMedia
	statuses []string // "type:id:status:message" in call order
}

func newFakeEnrichStore() *fakeEnrichStore {
	return &fakeEnrichStore{
		youtube: map[string]store.YoutubeNode{},
		tiktok:  map[string]store.TikTokNode{},
		twitter: map[string]store.TwitterNode{},
		website: map[string]store.WebsiteNode{},
		fbad:    map[string]store.FacebookAdNode{},
		image:   map[string]store.ImageNode{},
		canvas:  map[string]store.CanvasNode{},
	}
}

func (f *fakeEnrichStore) GetYoutubeNode(ctx context.Context, id string) (store.YoutubeNode, error) {
	node, ok := f.youtube[id]
	if !ok {
		return store.YoutubeNode{}, sql.ErrNoRows
	}
	return node, nil
}

func (f *fakeEnrichStore) GetTikTokNode(ctx context.Context, id string) (store.TikTokNode, error) {
	node, ok := f.tiktok[id]
	if !ok {
		return store.TikTokNode{}, sql.ErrNoRows
	}
	return node, nil
}

func (f *fakeEnrichStore) GetTwitterNode(ctx context.Context, id string) (store.TwitterNode, error) {
	node, ok := f.twitter[id]
	if !ok {
		return store.TwitterNode{}, sql.ErrNoRows
	}
	return node, nil
}

func (f *fakeEnrichStore) GetWebsiteNode(ctx context.Context, id string) (store.WebsiteNode, error) {
	node, ok := f.website[id]
	if !ok {
		return store.WebsiteNode{}, sql.ErrNoRows
	}
	return node, nil
}

func (f *fakeEnrichStore) GetFacebookAdNode(ctx context.Context, id string) (store.FacebookAdNode, error) {
	node, ok := f.fbad[id]
	if !ok {
		return store.FacebookAdNode{}, sql.ErrNoRows
	}
	return node, nil
}

func (f *fakeEnrichStore) GetImageNode(ctx context.Context, id string) (store.ImageNode, error) {
	node, ok := f.image[id]
	if !ok {
		return store.ImageNode{}, sql.ErrNoRows
	}
	return node, nil
}

func (f *fakeEnrichStore) SetEnrichmentStatus(ctx context.Context, nodeType, id, status, message string) error {
	f.statuses = append(f.statuses, fmt.Sprintf("%s:%s:%s:%s", nodeType, id, status, message))
	switch nodeType {
	case store.NodeTypeYoutube:
		node := f.youtube[id]
		node.Status, node.Error = status, message
		f.youtube[id] = node
	case store.NodeTypeTikTok:
		node := f.tiktok[id]
		node.Status, node.Error = status, message
		f.tiktok[id] = node
	case store.NodeTypeTwitter:
		node := f.twitter[id]
		node.Status, node.Error = status, message
		f.twitter[id] = node
	case store.NodeTypeWebsite:
		node := f.website[id]
		node.Status, node.Error = status, message
		f.website[id] = node
	case store.NodeTypeFacebookAd:
		node := f.fbad[id]
		node.Status, node.Error = status, message
		f.fbad[id] = node
	case store.NodeTypeImage:
		node := f.image[id]
		node.Status, node.Error = status, message
		f.image[id] = node
	}
	return nil
}

func (f *fakeEnrichStore) CompleteYoutubeNode(ctx context.Context, id, title, author, transcript string) error {
	node := f.youtube[id]
	node.Status, node.Error = store.StatusCompleted, ""
	node.Title, node.Author, node.Transcript = title, author, transcript
	f.youtube[id] = node
	return nil
}

func (f *fakeEnrichStore) CompleteTikTokNode(ctx context.Context, id, title, author, transcript string) error {
	node := f.tiktok[id]
	node.Status, node.Error = store.StatusCompleted, ""
	node.Title, node.Author, node.Transcript = title, author, transcript
	f.tiktok[id] = node
	return nil
}

func (f *fakeEnrichStore) CompleteTwitterNode(ctx context.Context, id, author, fullText string) error {
	node := f.twitter[id]
	node.Status, node.Error = store.StatusCompleted, ""
	node.Author, node.FullText = author, fullText
	f.twitter[id] = node
	return nil
}

func (f *fakeEnrichStore) CompleteWebsiteNode(ctx context.Context, id, title, markdown string) error {
	node := f.website[id]
	node.Status, node.Error = store.StatusCompleted, ""
	node.Title, node.Markdown = title, markdown
	f.website[id] = node
	return nil
}

func (f *fakeEnrichStore) CompleteFacebookAdNode(ctx context.Context, id, pageName, body, mediaType string) error {
	node := f.fbad[id]
	node.Status, node.Error = store.StatusCompleted, ""
	node.PageName, node.Body, node.MediaType = pageName, body, mediaType
	f.fbad[id] = node
	return nil
}

func (f *fakeEnrichStore) SetImageProviderTask(ctx context.Context, id, taskID string) error {
	node := f.image[id]
	node.Status, node.ProviderTaskID = store.StatusProcessing, taskID
	f.image[id] = node
	return nil
}

func (f *fakeEnrichStore) InsertFacebookAdMedia(ctx context.Context, item store.FacebookAdMedia) error {
	f.media = append(f.media, item)
	return nil
}

func (f *fakeEnrichStore) CanvasNodeByDataID(ctx context.Context, dataNodeID string) (store.CanvasNode, error) {
	node, ok := f.canvas[dataNodeID]
	if !ok {
		return store.CanvasNode{}, sql.ErrNoRows
	}
	return node, nil
}

// fakeProvider scripts FetchJSON/PostJSON/DownloadBytes responses.
type fakeProvider struct {
	doc        map[string]any
	err        error
	downloads  []string
	downloaded []byte
	lastPath   string
	lastParams url.Values
}

func (f *fakeProvider) FetchJSON(ctx context.Context, path string, params url.Values) (map[string]any, error) {
	f.lastPath, f.lastParams = path, params
	return f.doc, f.err
}

func (f *fakeProvider) PostJSON(ctx context.Context, path string, body any) (map[string]any, error) {
	f.lastPath = path
	return f.doc, f.err
}

func (f *fakeProvider) DownloadBytes(ctx context.Context, rawURL string) ([]byte, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	f.downloads = append(f.downloads, rawURL)
	if f.downloaded == nil {
		return []byte("bytes"), "image/jpeg", nil
	}
	return f.downloaded, "image/jpeg", nil
}

func (f *fakeProvider) Configured() bool { return true }

type fakeBlobs struct {
	puts int
}

func (f *fakeBlobs) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	f.puts++
	return fmt.Sprintf("blob_%d", f.puts), nil
}

type fakeNotify struct {
	events []notify.StatusEvent
}

func (f *fakeNotify) PublishStatus(ctx context.Context, event notify.StatusEvent) error {
	f.events = append(f.events, event)
	return nil
}

type fakeIndex struct {
	records []search.NodeRecord
}

func (f *fakeIndex) IndexNode(record search.NodeRecord) {
	f.records = append(f.records, record)
}

type fakeDispatcher struct {
	taskID      string
	err         error
	lastPrompt  string
	callbackURL string
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, prompt, callbackURL string) (string, error) {
	f.lastPrompt, f.callbackURL = prompt, callbackURL
	return f.taskID, f.err
}

func (f *fakeDispatcher) Configured() bool { return true }

type fakeChrome struct {
	page scrape.Page
	err  error
}

func (f *fakeChrome) Fetch(ctx context.Context, url string) (scrape.Page, error) {
	return f.page, f.err
}

func seedCanvasNode(fs *fakeEnrichStore, dataID, nodeType string) {
	fs.canvas[dataID] = store.CanvasNode{
		ID:         "cnode_" + dataID,
		CanvasID:   "canvas_1",
		NodeType:   nodeType,
		DataNodeID: dataID,
	}
}

func TestEnrichYoutubeCompletes(t *testing.T) {
	fs := newFakeEnrichStore()
	fs.youtube["yt_1"] = store.YoutubeNode{ID: "yt_1", URL: "https://youtube.com/watch?v=abc", Status: store.StatusPending}
	seedCanvasNode(fs, "yt_1", store.NodeTypeYoutube)

	social := &fakeProvider{doc: map[string]any{
		"title":                "How to Garden",
		"channelName":          "GreenThumb",
		"transcript_only_text": "WEBVTT\n\n00:00:01.000 --> 00:00:02.000\nHello world",
	}}
	notifier := &fakeNotify{}
	index := &fakeIndex{}
	engine := NewEngine(EngineDeps{Store: fs, Social: social, Notifier: notifier, Index: index})

	engine.EnrichYoutube(context.Background(), "yt_1")

	node := fs.youtube["yt_1"]
	if node.Status != store.StatusCompleted {
		t.Fatalf("status = %q, want completed", node.Status)
	}
	if node.Title != "How to Garden" || node.Author != "GreenThumb" {
		t.Fatalf("metadata = %q/%q", node.Title, node.Author)
	}
	if node.Transcript != "Hello world" {
		t.Fatalf("transcript = %q, want normalized plain text", node.Transcript)
	}
	if social.lastPath != "/v1/youtube/video/transcript" {
		t.Fatalf("path = %q", social.lastPath)
	}
	if got := social.lastParams.Get("url"); got != "https://youtube.com/watch?v=abc" {
		t.Fatalf("url param = %q", got)
	}

	// processing then completed, both published
	if len(notifier.events) != 2 {
		t.Fatalf("got %d events, want 2", len(notifier.events))
	}
	if notifier.events[0].Status != store.StatusProcessing || notifier.events[1].Status != store.StatusCompleted {
		t.Fatalf("event statuses = %q, %q", notifier.events[0].Status, notifier.events[1].Status)
	}
	if notifier.events[1].NodeID != "cnode_yt_1" || notifier.events[1].CanvasID != "canvas_1" {
		t.Fatalf("event ids = %+v", notifier.events[1])
	}

	if len(index.records) != 1 || index.records[0].Body != "Hello world" {
		t.Fatalf("index records = %+v", index.records)
	}
}

func TestEnrichYoutubeSegmentFallback(t *testing.T) {
	fs := newFakeEnrichStore()
	fs.youtube["yt_1"] = store.YoutubeNode{ID: "yt_1", URL: "https://youtu.be/abc", Status: store.StatusPending}
	social := &fakeProvider{doc: map[string]any{
		"transcript": []any{
			map[string]any{"text": "first"},
			map[string]any{"text": "second"},
		},
	}}
	engine := NewEngine(EngineDeps{Store: fs, Social: social})

	engine.EnrichYoutube(context.Background(), "yt_1")

	if got := fs.youtube["yt_1"].Transcript; got != "first second" {
		t.Fatalf("transcript = %q, want joined segments", got)
	}
}

func TestEnrichYoutubeProviderErrorClassified(t *testing.T) {
	fs := newFakeEnrichStore()
	fs.youtube["yt_1"] = store.YoutubeNode{ID: "yt_1", URL: "https://youtube.com/watch?v=abc", Status: store.StatusPending}
	social := &fakeProvider{err: errors.New("provider returned status 404")}
	engine := NewEngine(EngineDeps{Store: fs, Social: social})

	engine.EnrichYoutube(context.Background(), "yt_1")

	node := fs.youtube["yt_1"]
	if node.Status != store.StatusFailed {
		t.Fatalf("status = %q, want failed", node.Status)
	}
	if node.Error != "Content not found. It may have been removed or made private." {
		t.Fatalf("error = %q", node.Error)
	}
}

func TestEnrichYoutubeMissingNodeAborts(t *testing.T) {
	fs := newFakeEnrichStore()
	engine := NewEngine(EngineDeps{Store: fs, Social: &fakeProvider{}})
	engine.EnrichYoutube(context.Background(), "yt_missing")
	if len(fs.statuses) != 0 {
		t.Fatalf("statuses = %v, want no writes", fs.statuses)
	}
}

func TestEnrichTwitterCompletes(t *testing.T) {
	fs := newFakeEnrichStore()
	fs.twitter["tw_1"] = store.TwitterNode{ID: "tw_1", URL: "https://x.com/someone/status/1", Status: store.StatusPending}
	social := &fakeProvider{doc: map[string]any{
		"legacy": map[string]any{"full_text": "Hot take about gardening."},
		"core": map[string]any{"user_results": map[string]any{"result": map[string]any{
			"legacy": map[string]any{"screen_name": "greenthumb"},
		}}},
	}}
	engine := NewEngine(EngineDeps{Store: fs, Social: social})

	engine.EnrichTwitter(context.Background(), "tw_1")

	node := fs.twitter["tw_1"]
	if node.Status != store.StatusCompleted {
		t.Fatalf("status = %q", node.Status)
	}
	if node.Author != "greenthumb" || node.FullText != "Hot take about gardening." {
		t.Fatalf("tweet = %q by @%s", node.FullText, node.Author)
	}
}

func TestEnrichWebsitePrefersScrapeProvider(t *testing.T) {
	fs := newFakeEnrichStore()
	fs.website["web_1"] = store.WebsiteNode{ID: "web_1", URL: "https://example.com", Status: store.StatusPending}
	webscrape := &fakeProvider{doc: map[string]any{
		"data": map[string]any{
			"metadata": map[string]any{"title": "Example Domain"},
			"markdown": "# Example\n\nbody text",
		},
	}}
	chrome := &fakeChrome{err: errors.New("chrome must not be used")}
	engine := NewEngine(EngineDeps{Store: fs, WebScrape: webscrape, Chrome: chrome})

	engine.EnrichWebsite(context.Background(), "web_1")

	node := fs.website["web_1"]
	if node.Status != store.StatusCompleted {
		t.Fatalf("status = %q (error %q)", node.Status, node.Error)
	}
	if node.Title != "Example Domain" || !strings.Contains(node.Markdown, "body text") {
		t.Fatalf("page = %q / %q", node.Title, node.Markdown)
	}
	if webscrape.lastPath != "/v1/scrape" {
		t.Fatalf("path = %q", webscrape.lastPath)
	}
}

func TestEnrichWebsiteChromeFallback(t *testing.T) {
	fs := newFakeEnrichStore()
	fs.website["web_1"] = store.WebsiteNode{ID: "web_1", URL: "https://example.com", Status: store.StatusPending}
	chrome := &fakeChrome{page: scrape.Page{Title: "Rendered Title", Text: "rendered body"}}
	engine := NewEngine(EngineDeps{Store: fs, Chrome: chrome})

	engine.EnrichWebsite(context.Background(), "web_1")

	node := fs.website["web_1"]
	if node.Status != store.StatusCompleted {
		t.Fatalf("status = %q (error %q)", node.Status, node.Error)
	}
	if node.Title != "Rendered Title" || node.Markdown != "rendered body" {
		t.Fatalf("page = %q / %q", node.Title, node.Markdown)
	}
}

func TestEnrichWebsiteNoEngineFails(t *testing.T) {
	fs := newFakeEnrichStore()
	fs.website["web_1"] = store.WebsiteNode{ID: "web_1", URL: "https://example.com", Status: store.StatusPending}
	engine := NewEngine(EngineDeps{Store: fs})

	engine.EnrichWebsite(context.Background(), "web_1")

	if got := fs.website["web_1"].Status; got != store.StatusFailed {
		t.Fatalf("status = %q, want failed", got)
	}
}

func TestEnrichFacebookAdVideoPriority(t *testing.T) {
	fs := newFakeEnrichStore()
	fs.fbad["fbad_1"] = store.FacebookAdNode{ID: "fbad_1", AdID: "12345", Status: store.StatusPending}
	ads := &fakeProvider{doc: map[string]any{
		"page_name": "Plant Shop",
		"snapshot": map[string]any{
			"body": map[string]any{"text": "Buy plants."},
			"videos": []any{
				map[string]any{"video_preview_image_url": "https://cdn.example/video-thumb.jpg"},
			},
			"images": []any{
				map[string]any{"original_image_url": "https://cdn.example/img0.jpg"},
				map[string]any{"original_image_url": "https://cdn.example/img1.jpg"},
			},
		},
	}}
	blobs := &fakeBlobs{}
	engine := NewEngine(EngineDeps{Store: fs, Ads: ads, Blobs: blobs})

	engine.EnrichFacebookAd(context.Background(), "fbad_1")

	node := fs.fbad["fbad_1"]
	if node.Status != store.StatusCompleted {
		t.Fatalf("status = %q (error %q)", node.Status, node.Error)
	}
	if node.MediaType != store.MediaTypeVideo {
		t.Fatalf("mediaType = %q, want video over images", node.MediaType)
	}
	if node.PageName != "Plant Shop" || node.Body != "Buy plants." {
		t.Fatalf("ad = %q / %q", node.PageName, node.Body)
	}
	if len(fs.media) != 1 || fs.media[0].Kind != store.MediaTypeVideo {
		t.Fatalf("media = %+v, want one video thumbnail", fs.media)
	}
	if len(ads.downloads) != 1 || ads.downloads[0] != "https://cdn.example/video-thumb.jpg" {
		t.Fatalf("downloads = %v", ads.downloads)
	}
}

func TestEnrichFacebookAdImageCap(t *testing.T) {
	fs := newFakeEnrichStore()
	fs.fbad["fbad_1"] = store.FacebookAdNode{ID: "fbad_1", AdID: "12345", Status: store.StatusPending}
	images := make([]any, 0, 7)
	for i := 0; i < 7; i++ {
		images = append(images, map[string]any{"original_image_url": fmt.Sprintf("https://cdn.example/img%d.jpg", i)})
	}
	ads := &fakeProvider{doc: map[string]any{
		"page_name": "Plant Shop",
		"snapshot":  map[string]any{"body": map[string]any{"text": "b"}, "images": images},
	}}
	blobs := &fakeBlobs{}
	engine := NewEngine(EngineDeps{Store: fs, Ads: ads, Blobs: blobs})

	engine.EnrichFacebookAd(context.Background(), "fbad_1")

	if len(fs.media) != maxAdImages {
		t.Fatalf("stored %d media, want %d", len(fs.media), maxAdImages)
	}
	for i, item := range fs.media {
		if item.Position != i {
			t.Fatalf("media[%d].Position = %d", i, item.Position)
		}
	}
	if got := fs.fbad["fbad_1"].MediaType; got != store.MediaTypeImage {
		t.Fatalf("mediaType = %q", got)
	}
}

func TestEnrichFacebookAdDownloadFailureFailsNode(t *testing.T) {
	fs := newFakeEnrichStore()
	fs.fbad["fbad_1"] = store.FacebookAdNode{ID: "fbad_1", AdID: "12345", Status: store.StatusPending}
	ads := &fakeProvider{doc: map[string]any{
		"page_name": "Plant Shop",
		"snapshot": map[string]any{
			"images": []any{map[string]any{"original_image_url": "https://cdn.example/img0.jpg"}},
		},
	}}
	engine := NewEngine(EngineDeps{Store: fs, Ads: &failingDownloads{fakeProvider: ads}, Blobs: &fakeBlobs{}})

	engine.EnrichFacebookAd(context.Background(), "fbad_1")

	node := fs.fbad["fbad_1"]
	if node.Status != store.StatusFailed {
		t.Fatalf("status = %q, want failed", node.Status)
	}
	if len(fs.media) != 0 {
		t.Fatalf("media = %+v, want none recorded", fs.media)
	}
}

// failingDownloads serves the ad document but refuses media downloads.
type failingDownloads struct {
	*fakeProvider
}

func (f *failingDownloads) DownloadBytes(ctx context.Context, rawURL string) ([]byte, string, error) {
	return nil, "", errors.New("connection reset")
}

func TestDispatchImageRecordsTask(t *testing.T) {
	fs := newFakeEnrichStore()
	fs.image["img_1"] = store.ImageNode{ID: "img_1", Prompt: "a watercolor fox", Status: store.StatusPending}
	dispatcher := &fakeDispatcher{taskID: "task_42"}
	engine := NewEngine(EngineDeps{Store: fs, ImageGen: dispatcher, PublicBaseURL: "https://api.tapestry.dev"})

	engine.DispatchImage(context.Background(), "img_1")

	node := fs.image["img_1"]
	if node.Status != store.StatusProcessing {
		t.Fatalf("status = %q, want processing until the callback lands", node.Status)
	}
	if node.ProviderTaskID != "task_42" {
		t.Fatalf("taskID = %q", node.ProviderTaskID)
	}
	if dispatcher.lastPrompt != "a watercolor fox" {
		t.Fatalf("prompt = %q", dispatcher.lastPrompt)
	}
	want := "https://api.tapestry.dev/enrichment/image-callback?nodeId=img_1"
	if dispatcher.callbackURL != want {
		t.Fatalf("callbackURL = %q, want %q", dispatcher.callbackURL, want)
	}
}

func TestDispatchImageProviderErrorFailsNode(t *testing.T) {
	fs := newFakeEnrichStore()
	fs.image["img_1"] = store.ImageNode{ID: "img_1", Prompt: "a watercolor fox", Status: store.StatusPending}
	dispatcher := &fakeDispatcher{err: errors.New("provider returned status 429")}
	engine := NewEngine(EngineDeps{Store: fs, ImageGen: dispatcher})

	engine.DispatchImage(context.Background(), "img_1")

	node := fs.image["img_1"]
	if node.Status != store.StatusFailed {
		t.Fatalf("status = %q, want failed", node.Status)
	}
	if node.Error != "The content provider is rate limiting requests. Try again later." {
		t.Fatalf("error = %q", node.Error)
	}
}
