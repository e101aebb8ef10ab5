package enrich

import (
	"context"
	"log"
	"net/url"

	"tapestry/api/internal/notify"
	"tapestry/api/internal/scrape"
	"tapestry/api/internal/search"
	"tapestry/api/internal/store"
)

type dataStore interface {
	GetYoutubeNode(ctx context.Context, id string) (store.YoutubeNode, error)
	GetTikTokNode(ctx context.Context, id string) (store.TikTokNode, error)
	GetTwitterNode(ctx context.Context, id string) (store.TwitterNode, error)
	GetWebsiteNode(ctx context.Context, id string) (store.WebsiteNode, error)
	GetFacebookAdNode(ctx context.Context, id string) (store.FacebookAdNode, error)
	GetImageNode(ctx context.Context, id string) (store.ImageNode, error)
	SetEnrichmentStatus(ctx context.Context, nodeType, id, status, message string) error
	CompleteYoutubeNode(ctx context.Context, id, title, author, transcript string) error
	CompleteTikTokNode(ctx context.Context, id, title, author, transcript string) error
	CompleteTwitterNode(ctx context.Context, id, author, fullText string) error
	CompleteWebsiteNode(ctx context.Context, id, title, markdown string) error
	CompleteFacebookAdNode(ctx context.Context, id, pageName, body, mediaType string) error
	SetImageProviderTask(ctx context.Context, id, taskID string) error
	InsertFacebookAdMedia(ctx context.Context, item store.FacebookAdMedia) error
	CanvasNodeByDataID(ctx context.Context, dataNodeID string) (store.CanvasNode, error)
}

type contentAPI interface {
	FetchJSON(ctx context.Context, path string, params url.Values) (map[string]any, error)
	PostJSON(ctx context.Context, path string, body any) (map[string]any, error)
	DownloadBytes(ctx context.Context, rawURL string) ([]byte, string, error)
	Configured() bool
}

type pageFetcher interface {
	Fetch(ctx context.Context, url string) (scrape.Page, error)
}

type imageDispatcher interface {
	Dispatch(ctx context.Context, prompt, callbackURL string) (string, error)
	Configured() bool
}

type blobStore interface {
	Put(ctx context.Context, data []byte, contentType string) (string, error)
}

type statusNotifier interface {
	PublishStatus(ctx context.Context, event notify.StatusEvent) error
}

type nodeIndexer interface {
	IndexNode(record search.NodeRecord)
}

// Engine holds the enrichment workers and their collaborators. Any
// collaborator except the store may be nil; the matching worker then fails
// its nodes with a configuration message instead of crashing.
type Engine struct {
	store         dataStore
	social        contentAPI
	webscrape     contentAPI
	ads           contentAPI
	chrome        pageFetcher
	imagegen      imageDispatcher
	blobs         blobStore
	notifier      statusNotifier
	index         nodeIndexer
	publicBaseURL string
}

type EngineDeps struct {
	Store         dataStore
	Social        contentAPI
	WebScrape     contentAPI
	Ads           contentAPI
	Chrome        pageFetcher
	ImageGen      imageDispatcher
	Blobs         blobStore
	Notifier      statusNotifier
	Index         nodeIndexer
	PublicBaseURL string
}

func NewEngine(deps EngineDeps) *Engine {
	return &Engine{
		store:         deps.Store,
		social:        deps.Social,
		webscrape:     deps.WebScrape,
		ads:           deps.Ads,
		chrome:        deps.Chrome,
		imagegen:      deps.ImageGen,
		blobs:         deps.Blobs,
		notifier:      deps.Notifier,
		index:         deps.Index,
		publicBaseURL: deps.PublicBaseURL,
	}
}

// Bind registers every worker on the queue under its node type tag.
func (e *Engine) Bind(q *Queue) {
	q.Register(store.NodeTypeYoutube, e.EnrichYoutube)
	q.Register(store.NodeTypeTikTok, e.EnrichTikTok)
	q.Register(store.NodeTypeTwitter, e.EnrichTwitter)
	q.Register(store.NodeTypeWebsite, e.EnrichWebsite)
	q.Register(store.NodeTypeFacebookAd, e.EnrichFacebookAd)
	q.Register(store.NodeTypeImage, e.DispatchImage)
}

// transition patches the payload status and publishes the change. Store
// failures are logged, never propagated: a worker has nobody to return to.
func (e *Engine) transition(ctx context.Context, nodeType, typedID, status, message string) {
	if err := e.store.SetEnrichmentStatus(ctx, nodeType, typedID, status, message); err != nil {
		log.Printf("enrich: set %s status=%s for %s: %v", nodeType, status, typedID, err)
		return
	}
	e.publish(ctx, nodeType, typedID, status, message)
}

func (e *Engine) fail(ctx context.Context, nodeType, typedID string, err error) {
	message := classifyError(err)
	log.Printf("enrich: %s job for %s failed: %v", nodeType, typedID, err)
	e.transition(ctx, nodeType, typedID, store.StatusFailed, message)
}

func (e *Engine) publish(ctx context.Context, nodeType, typedID, status, message string) {
	if e.notifier == nil {
		return
	}
	node, err := e.store.CanvasNodeByDataID(ctx, typedID)
	if err != nil {
		log.Printf("enrich: resolve canvas node for %s: %v", typedID, err)
		return
	}
	event := notify.StatusEvent{
		CanvasID: node.CanvasID,
		NodeID:   node.ID,
		NodeType: nodeType,
		Status:   status,
		Error:    message,
	}
	if err := e.notifier.PublishStatus(ctx, event); err != nil {
		log.Printf("enrich: publish status for %s: %v", node.ID, err)
	}
}

// indexNode pushes completed content into the search index.
func (e *Engine) indexNode(ctx context.Context, nodeType, typedID, title, body string) {
	if e.index == nil {
		return
	}
	node, err := e.store.CanvasNodeByDataID(ctx, typedID)
	if err != nil {
		log.Printf("enrich: resolve canvas node for %s: %v", typedID, err)
		return
	}
	e.index.IndexNode(search.NodeRecord{
		ID:       node.ID,
		CanvasID: node.CanvasID,
		NodeType: nodeType,
		Title:    title,
		Body:     body,
	})
}
