package app

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/url"
	"strings"
	"time"

	"tapestry/api/internal/auth"
	"tapestry/api/internal/blob"
	"tapestry/api/internal/canvasrepo"
	"tapestry/api/internal/config"
	"tapestry/api/internal/enrich"
	"tapestry/api/internal/notify"
	"tapestry/api/internal/provider"
	"tapestry/api/internal/search"
	"tapestry/api/internal/store"
	"tapestry/api/internal/util"
)

// Session is the authenticated caller. OrgID scopes every read and write.
type Session struct {
	UserID    string
	UserName  string
	OrgID     string
	JTI       string
	ExpiresAt time.Time
}

type dataStore interface {
	InsertCanvas(ctx context.Context, item store.Canvas) error
	GetCanvas(ctx context.Context, canvasID string) (store.Canvas, error)
	ListCanvases(ctx context.Context, organizationID string) ([]store.Canvas, error)
	UpdateCanvas(ctx context.Context, canvasID, title, description string) error
	DeleteCanvasCascade(ctx context.Context, canvasID string) error

	CreateNode(ctx context.Context, node store.CanvasNode, payload store.NodePayload) error
	GetCanvasNode(ctx context.Context, nodeID string) (store.CanvasNode, error)
	ListCanvasNodes(ctx context.Context, canvasID string) ([]store.CanvasNode, error)
	ListGroupNodes(ctx context.Context, canvasID string) ([]store.CanvasNode, error)
	UpdateNodePosition(ctx context.Context, nodeID string, x, y float64) error
	SetNodeParentGroup(ctx context.Context, nodeID string, parentGroupID *string) error
	UpdateNodeNotes(ctx context.Context, nodeID, notes string) error
	DeleteNodeCascade(ctx context.Context, node store.CanvasNode) error

	InsertEdge(ctx context.Context, item store.CanvasEdge) error
	GetEdge(ctx context.Context, edgeID string) (store.CanvasEdge, error)
	DeleteEdge(ctx context.Context, edgeID string) error
	ListEdgesByCanvas(ctx context.Context, canvasID string) ([]store.CanvasEdge, error)
	ListEdgesByTarget(ctx context.Context, targetNodeID string) ([]store.CanvasEdge, error)

	InsertThread(ctx context.Context, item store.Thread) error
	GetThread(ctx context.Context, threadID string) (store.Thread, error)
	ListThreadsByCanvas(ctx context.Context, canvasID string) ([]store.Thread, error)

	GetTextNode(ctx context.Context, id string) (store.TextNode, error)
	GetChatNode(ctx context.Context, id string) (store.ChatNode, error)
	GetYoutubeNode(ctx context.Context, id string) (store.YoutubeNode, error)
	GetTikTokNode(ctx context.Context, id string) (store.TikTokNode, error)
	GetTwitterNode(ctx context.Context, id string) (store.TwitterNode, error)
	GetWebsiteNode(ctx context.Context, id string) (store.WebsiteNode, error)
	GetFacebookAdNode(ctx context.Context, id string) (store.FacebookAdNode, error)
	GetImageNode(ctx context.Context, id string) (store.ImageNode, error)
	GetGroupNode(ctx context.Context, id string) (store.GroupNode, error)
	ListFacebookAdMedia(ctx context.Context, adNodeID string) ([]store.FacebookAdMedia, error)

	UpdateTextContent(ctx context.Context, id, content string) error
	SetChatSelectedThread(ctx context.Context, id string, threadID *string) error
	SetEnrichmentStatus(ctx context.Context, nodeType, id, status, message string) error
	CompleteImageNode(ctx context.Context, id, blobRef string, width, height int) error
	CanvasNodeByDataID(ctx context.Context, dataNodeID string) (store.CanvasNode, error)

	Ping(ctx context.Context) error
}

type taskQueue interface {
	Enqueue(task enrich.Task) error
}

type snapshotRepo interface {
	CommitSnapshot(canvasID string, snapshot canvasrepo.Snapshot, author, message string) (canvasrepo.CommitInfo, error)
	History(canvasID string, limit int) ([]canvasrepo.CommitInfo, error)
	GetSnapshotByHash(canvasID, hash string) (canvasrepo.Snapshot, error)
}

type nodeSearcher interface {
	Search(ctx context.Context, q search.Query) search.Response
	DeleteNode(id string)
}

type blobStore interface {
	Put(ctx context.Context, data []byte, contentType string) (string, error)
	URL(ctx context.Context, ref string) (string, error)
}

type downloader interface {
	DownloadBytes(ctx context.Context, rawURL string) ([]byte, string, error)
}

type statusNotifier interface {
	PublishStatus(ctx context.Context, event notify.StatusEvent) error
	Ping(ctx context.Context) error
}

type Service struct {
	cfg       config.Config
	store     dataStore
	queue     taskQueue
	snapshots snapshotRepo
	search    nodeSearcher
	blobs     blobStore
	download  downloader
	notifier  statusNotifier
}

// New wires the service from the concrete collaborators. Everything but the
// store may be nil; the matching endpoints then return unavailable-style
// domain errors or degrade (no presigned URLs in views, no status events).
func New(cfg config.Config, dataStore *store.PostgresStore, queue *enrich.Queue, snapshots *canvasrepo.Service, searcher *search.Service, blobs *blob.Store, download *provider.Client, notifier *notify.RedisNotifier) *Service {
	s := &Service{cfg: cfg, store: dataStore}
	if queue != nil {
		s.queue = queue
	}
	if snapshots != nil {
		s.snapshots = snapshots
	}
	if searcher != nil {
		s.search = searcher
	}
	if blobs != nil {
		s.blobs = blobs
	}
	if download != nil {
		s.download = download
	}
	if notifier != nil {
		s.notifier = notifier
	}
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// NotifierConfigured reports whether status notifications are enabled.
func (s *Service) NotifierConfigured() bool {
	return s.notifier != nil
}

// PingNotifier checks that the status notifier backend is reachable.
func (s *Service) PingNotifier(ctx context.Context) error {
	return s.notifier.Ping(ctx)
}

// SessionFromToken validates the bearer token and builds the session.
func (s *Service) SessionFromToken(token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.SessionSecret), token)
	if err != nil {
		return Session{}, err
	}
	return Session{
		UserID:    claims.Sub,
		UserName:  claims.Name,
		OrgID:     claims.Org,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

// canvasForOrg loads a canvas and enforces organization ownership.
func (s *Service) canvasForOrg(ctx context.Context, canvasID, orgID string) (store.Canvas, error) {
	canvas, err := s.store.GetCanvas(ctx, canvasID)
	if err != nil {
		return store.Canvas{}, err
	}
	if canvas.OrganizationID != orgID {
		return store.Canvas{}, forbidden("Canvas belongs to a different organization")
	}
	return canvas, nil
}

// nodeForOrg loads a canvas node and enforces organization ownership.
func (s *Service) nodeForOrg(ctx context.Context, nodeID, orgID string) (store.CanvasNode, error) {
	node, err := s.store.GetCanvasNode(ctx, nodeID)
	if err != nil {
		return store.CanvasNode{}, err
	}
	if node.OrganizationID != orgID {
		return store.CanvasNode{}, forbidden("Node belongs to a different organization")
	}
	return node, nil
}

// ── Canvases ──

func (s *Service) CreateCanvas(ctx context.Context, session Session, title, description string) (store.Canvas, error) {
	if strings.TrimSpace(title) == "" {
		return store.Canvas{}, validationError("title is required")
	}
	canvas := store.Canvas{
		ID:             util.NewID("canvas"),
		OrganizationID: session.OrgID,
		Title:          strings.TrimSpace(title),
		Description:    description,
		CreatedBy:      session.UserID,
	}
	if err := s.store.InsertCanvas(ctx, canvas); err != nil {
		return store.Canvas{}, err
	}
	return s.store.GetCanvas(ctx, canvas.ID)
}

func (s *Service) ListCanvases(ctx context.Context, session Session) ([]store.Canvas, error) {
	return s.store.ListCanvases(ctx, session.OrgID)
}

func (s *Service) GetCanvas(ctx context.Context, session Session, canvasID string) (store.Canvas, error) {
	return s.canvasForOrg(ctx, canvasID, session.OrgID)
}

func (s *Service) UpdateCanvas(ctx context.Context, session Session, canvasID, title, description string) (store.Canvas, error) {
	if _, err := s.canvasForOrg(ctx, canvasID, session.OrgID); err != nil {
		return store.Canvas{}, err
	}
	if strings.TrimSpace(title) == "" {
		return store.Canvas{}, validationError("title is required")
	}
	if err := s.store.UpdateCanvas(ctx, canvasID, strings.TrimSpace(title), description); err != nil {
		return store.Canvas{}, err
	}
	return s.store.GetCanvas(ctx, canvasID)
}

func (s *Service) DeleteCanvas(ctx context.Context, session Session, canvasID string) error {
	if _, err := s.canvasForOrg(ctx, canvasID, session.OrgID); err != nil {
		return err
	}
	nodes, err := s.store.ListCanvasNodes(ctx, canvasID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteCanvasCascade(ctx, canvasID); err != nil {
		return err
	}
	if s.search != nil {
		for _, node := range nodes {
			s.search.DeleteNode(node.ID)
		}
	}
	return nil
}

// ── Graph read ──

// NodeView is a CanvasNode joined with its typed payload for rendering.
type NodeView struct {
	Node    store.CanvasNode `json:"node"`
	Payload map[string]any   `json:"payload"`
}

type GraphView struct {
	Canvas store.Canvas       `json:"canvas"`
	Nodes  []NodeView         `json:"nodes"`
	Edges  []store.CanvasEdge `json:"edges"`
}

func (s *Service) Graph(ctx context.Context, session Session, canvasID string) (GraphView, error) {
	canvas, err := s.canvasForOrg(ctx, canvasID, session.OrgID)
	if err != nil {
		return GraphView{}, err
	}
	nodes, err := s.store.ListCanvasNodes(ctx, canvasID)
	if err != nil {
		return GraphView{}, err
	}
	edges, err := s.store.ListEdgesByCanvas(ctx, canvasID)
	if err != nil {
		return GraphView{}, err
	}

	views := make([]NodeView, 0, len(nodes))
	for _, node := range nodes {
		payload, err := s.payloadView(ctx, node)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				log.Printf("app: node %s has no %s payload, skipping", node.ID, node.NodeType)
				continue
			}
			return GraphView{}, err
		}
		views = append(views, NodeView{Node: node, Payload: payload})
	}
	return GraphView{Canvas: canvas, Nodes: views, Edges: edges}, nil
}

func (s *Service) payloadView(ctx context.Context, node store.CanvasNode) (map[string]any, error) {
	switch node.NodeType {
	case store.NodeTypeText:
		p, err := s.store.GetTextNode(ctx, node.DataNodeID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"content": p.Content}, nil
	case store.NodeTypeChat:
		p, err := s.store.GetChatNode(ctx, node.DataNodeID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"selectedThreadId": p.SelectedThreadID}, nil
	case store.NodeTypeYoutube:
		p, err := s.store.GetYoutubeNode(ctx, node.DataNodeID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"url": p.URL, "status": p.Status, "title": p.Title, "author": p.Author, "transcript": p.Transcript, "error": p.Error}, nil
	case store.NodeTypeTikTok:
		p, err := s.store.GetTikTokNode(ctx, node.DataNodeID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"url": p.URL, "status": p.Status, "title": p.Title, "author": p.Author, "transcript": p.Transcript, "error": p.Error}, nil
	case store.NodeTypeTwitter:
		p, err := s.store.GetTwitterNode(ctx, node.DataNodeID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"url": p.URL, "status": p.Status, "author": p.Author, "fullText": p.FullText, "error": p.Error}, nil
	case store.NodeTypeWebsite:
		p, err := s.store.GetWebsiteNode(ctx, node.DataNodeID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"url": p.URL, "status": p.Status, "title": p.Title, "markdown": p.Markdown, "error": p.Error}, nil
	case store.NodeTypeFacebookAd:
		p, err := s.store.GetFacebookAdNode(ctx, node.DataNodeID)
		if err != nil {
			return nil, err
		}
		view := map[string]any{"adId": p.AdID, "status": p.Status, "pageName": p.PageName, "body": p.Body, "mediaType": p.MediaType, "error": p.Error}
		media, err := s.store.ListFacebookAdMedia(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		mediaViews := make([]map[string]any, 0, len(media))
		for _, item := range media {
			mediaView := map[string]any{"kind": item.Kind, "position": item.Position}
			if s.blobs != nil {
				if mediaURL, err := s.blobs.URL(ctx, item.BlobRef); err == nil && mediaURL != "" {
					mediaView["url"] = mediaURL
				}
			}
			mediaViews = append(mediaViews, mediaView)
		}
		view["media"] = mediaViews
		return view, nil
	case store.NodeTypeImage:
		p, err := s.store.GetImageNode(ctx, node.DataNodeID)
		if err != nil {
			return nil, err
		}
		view := map[string]any{"prompt": p.Prompt, "isAiGenerated": p.IsAIGenerated, "status": p.Status, "width": p.Width, "height": p.Height, "error": p.Error}
		if p.BlobRef != "" && s.blobs != nil {
			if imageURL, err := s.blobs.URL(ctx, p.BlobRef); err == nil && imageURL != "" {
				view["imageUrl"] = imageURL
			}
		}
		return view, nil
	case store.NodeTypeGroup:
		p, err := s.store.GetGroupNode(ctx, node.DataNodeID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"title": p.Title}, nil
	}
	return nil, validationError("unknown node type " + node.NodeType)
}

// ── Node mutations ──

// CreateNodeInput carries the polymorphic creation arguments. Exactly the
// fields matching Type are consulted.
type CreateNodeInput struct {
	Type     string   `json:"type"`
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
	Width    *float64 `json:"width"`
	Height   *float64 `json:"height"`
	Content  string   `json:"content"`
	URL      string   `json:"url"`
	AdID     string   `json:"adId"`
	Prompt   string   `json:"prompt"`
	Title    string   `json:"title"`
	ThreadID *string  `json:"threadId"`
}

type CreatedNode struct {
	CanvasNodeID string `json:"canvasNodeId"`
	TypedNodeID  string `json:"typedNodeId"`
}

func (s *Service) CreateNode(ctx context.Context, session Session, canvasID string, input CreateNodeInput) (CreatedNode, error) {
	if _, err := s.canvasForOrg(ctx, canvasID, session.OrgID); err != nil {
		return CreatedNode{}, err
	}
	if !store.KnownType(input.Type) {
		return CreatedNode{}, validationError("unknown node type " + input.Type)
	}

	payload, typedID, err := buildPayload(canvasID, input)
	if err != nil {
		return CreatedNode{}, err
	}

	node := store.CanvasNode{
		ID:             util.NewID("cnode"),
		CanvasID:       canvasID,
		OrganizationID: session.OrgID,
		NodeType:       input.Type,
		X:              input.X,
		Y:              input.Y,
		Width:          input.Width,
		Height:         input.Height,
		DataNodeID:     typedID,
	}
	if err := s.store.CreateNode(ctx, node, payload); err != nil {
		return CreatedNode{}, err
	}

	if store.EnrichingType(input.Type) && s.queue != nil {
		if err := s.queue.Enqueue(enrich.Task{Kind: input.Type, NodeID: typedID}); err != nil {
			// The node exists but its one enrichment attempt is lost, so it
			// is marked failed rather than left pending forever.
			log.Printf("app: enqueue %s enrichment for %s: %v", input.Type, typedID, err)
			if statusErr := s.store.SetEnrichmentStatus(ctx, input.Type, typedID, store.StatusFailed, "Enrichment could not be scheduled."); statusErr != nil {
				log.Printf("app: mark %s failed: %v", typedID, statusErr)
			}
		}
	}
	return CreatedNode{CanvasNodeID: node.ID, TypedNodeID: typedID}, nil
}

func buildPayload(canvasID string, input CreateNodeInput) (store.NodePayload, string, error) {
	switch input.Type {
	case store.NodeTypeText:
		id := util.NewID("text")
		return store.TextNode{ID: id, Content: input.Content}, id, nil
	case store.NodeTypeChat:
		id := util.NewID("chat")
		return store.ChatNode{ID: id, CanvasID: canvasID, SelectedThreadID: input.ThreadID}, id, nil
	case store.NodeTypeYoutube:
		if err := validateURL(input.URL, "youtube.com", "youtu.be"); err != nil {
			return nil, "", err
		}
		id := util.NewID("yt")
		return store.YoutubeNode{ID: id, URL: input.URL, Status: store.StatusPending}, id, nil
	case store.NodeTypeTikTok:
		if err := validateURL(input.URL, "tiktok.com"); err != nil {
			return nil, "", err
		}
		id := util.NewID("tt")
		return store.TikTokNode{ID: id, URL: input.URL, Status: store.StatusPending}, id, nil
	case store.NodeTypeTwitter:
		if err := validateURL(input.URL, "twitter.com", "x.com"); err != nil {
			return nil, "", err
		}
		id := util.NewID("tw")
		return store.TwitterNode{ID: id, URL: input.URL, Status: store.StatusPending}, id, nil
	case store.NodeTypeWebsite:
		if err := validateURL(input.URL); err != nil {
			return nil, "", err
		}
		id := util.NewID("web")
		return store.WebsiteNode{ID: id, URL: input.URL, Status: store.StatusPending}, id, nil
	case store.NodeTypeFacebookAd:
		if strings.TrimSpace(input.AdID) == "" {
			return nil, "", validationError("adId is required")
		}
		id := util.NewID("fbad")
		return store.FacebookAdNode{ID: id, AdID: strings.TrimSpace(input.AdID), Status: store.StatusPending}, id, nil
	case store.NodeTypeImage:
		if strings.TrimSpace(input.Prompt) == "" {
			return nil, "", validationError("prompt is required")
		}
		id := util.NewID("img")
		return store.ImageNode{ID: id, Prompt: input.Prompt, IsAIGenerated: true, Status: store.StatusPending}, id, nil
	case store.NodeTypeGroup:
		id := util.NewID("group")
		return store.GroupNode{ID: id, Title: input.Title}, id, nil
	}
	return nil, "", validationError("unknown node type " + input.Type)
}

// validateURL checks the URL parses with an http(s) scheme and, when hosts
// are given, that the hostname matches one of them.
func validateURL(raw string, hosts ...string) error {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return validationError("a valid http(s) url is required")
	}
	if len(hosts) == 0 {
		return nil
	}
	hostname := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	for _, host := range hosts {
		if hostname == host || strings.HasSuffix(hostname, "."+host) {
			return nil
		}
	}
	return validationError("url host must be one of: " + strings.Join(hosts, ", "))
}

func (s *Service) UpdateNodePosition(ctx context.Context, session Session, nodeID string, x, y float64) error {
	if _, err := s.nodeForOrg(ctx, nodeID, session.OrgID); err != nil {
		return err
	}
	return s.store.UpdateNodePosition(ctx, nodeID, x, y)
}

// DropNode handles drag-release: persists the position, then runs the
// containment test and reparents the node when its center lands inside a
// group rectangle.
func (s *Service) DropNode(ctx context.Context, session Session, nodeID string, x, y float64) (*string, error) {
	node, err := s.nodeForOrg(ctx, nodeID, session.OrgID)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateNodePosition(ctx, nodeID, x, y); err != nil {
		return nil, err
	}
	if node.NodeType == store.NodeTypeGroup {
		return nil, nil
	}

	groups, err := s.store.ListGroupNodes(ctx, node.CanvasID)
	if err != nil {
		return nil, err
	}
	node.X, node.Y = x, y
	groupID := containingGroup(node, groups)
	if groupID == nil {
		return nil, nil
	}
	if err := s.store.SetNodeParentGroup(ctx, nodeID, groupID); err != nil {
		return nil, err
	}
	return groupID, nil
}

func (s *Service) UngroupNode(ctx context.Context, session Session, nodeID string) error {
	if _, err := s.nodeForOrg(ctx, nodeID, session.OrgID); err != nil {
		return err
	}
	return s.store.SetNodeParentGroup(ctx, nodeID, nil)
}

func (s *Service) UpdateNodeNotes(ctx context.Context, session Session, nodeID, notes string) error {
	if _, err := s.nodeForOrg(ctx, nodeID, session.OrgID); err != nil {
		return err
	}
	return s.store.UpdateNodeNotes(ctx, nodeID, notes)
}

func (s *Service) UpdateTextContent(ctx context.Context, session Session, nodeID, content string) error {
	node, err := s.nodeForOrg(ctx, nodeID, session.OrgID)
	if err != nil {
		return err
	}
	if node.NodeType != store.NodeTypeText {
		return validationError("only text nodes have editable content")
	}
	return s.store.UpdateTextContent(ctx, node.DataNodeID, content)
}

// SelectThread binds a conversation thread to a chat node.
func (s *Service) SelectThread(ctx context.Context, session Session, nodeID string, threadID *string) error {
	node, err := s.nodeForOrg(ctx, nodeID, session.OrgID)
	if err != nil {
		return err
	}
	if node.NodeType != store.NodeTypeChat {
		return validationError("only chat nodes select threads")
	}
	if threadID != nil {
		thread, err := s.store.GetThread(ctx, *threadID)
		if err != nil {
			return err
		}
		if thread.OrganizationID != session.OrgID {
			return forbidden("Thread belongs to a different organization")
		}
	}
	return s.store.SetChatSelectedThread(ctx, node.DataNodeID, threadID)
}

func (s *Service) DeleteNode(ctx context.Context, session Session, nodeID string) error {
	node, err := s.nodeForOrg(ctx, nodeID, session.OrgID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteNodeCascade(ctx, node); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteNode(node.ID)
	}
	return nil
}

// ── Edges ──

func (s *Service) CreateEdge(ctx context.Context, session Session, canvasID, source, target string, sourceHandle, targetHandle *string) (store.CanvasEdge, error) {
	if _, err := s.canvasForOrg(ctx, canvasID, session.OrgID); err != nil {
		return store.CanvasEdge{}, err
	}
	sourceNode, err := s.store.GetCanvasNode(ctx, source)
	if err != nil {
		return store.CanvasEdge{}, err
	}
	targetNode, err := s.store.GetCanvasNode(ctx, target)
	if err != nil {
		return store.CanvasEdge{}, err
	}
	if sourceNode.CanvasID != canvasID || targetNode.CanvasID != canvasID {
		return store.CanvasEdge{}, validationError("edge endpoints must belong to the canvas")
	}

	edge := store.CanvasEdge{
		ID:           util.NewID("edge"),
		CanvasID:     canvasID,
		Source:       source,
		Target:       target,
		SourceHandle: sourceHandle,
		TargetHandle: targetHandle,
	}
	if err := s.store.InsertEdge(ctx, edge); err != nil {
		return store.CanvasEdge{}, err
	}
	return s.store.GetEdge(ctx, edge.ID)
}

func (s *Service) DeleteEdge(ctx context.Context, session Session, edgeID string) error {
	edge, err := s.store.GetEdge(ctx, edgeID)
	if err != nil {
		return err
	}
	if _, err := s.canvasForOrg(ctx, edge.CanvasID, session.OrgID); err != nil {
		return err
	}
	return s.store.DeleteEdge(ctx, edgeID)
}

// ── Threads ──

func (s *Service) CreateThread(ctx context.Context, session Session, canvasID, agentThreadID, title string) (store.Thread, error) {
	if _, err := s.canvasForOrg(ctx, canvasID, session.OrgID); err != nil {
		return store.Thread{}, err
	}
	thread := store.Thread{
		ID:             util.NewID("thread"),
		OrganizationID: session.OrgID,
		CanvasID:       &canvasID,
		AgentThreadID:  agentThreadID,
		Title:          title,
	}
	if err := s.store.InsertThread(ctx, thread); err != nil {
		return store.Thread{}, err
	}
	return s.store.GetThread(ctx, thread.ID)
}

func (s *Service) ListThreads(ctx context.Context, session Session, canvasID string) ([]store.Thread, error) {
	if _, err := s.canvasForOrg(ctx, canvasID, session.OrgID); err != nil {
		return nil, err
	}
	return s.store.ListThreadsByCanvas(ctx, canvasID)
}

// ── Search ──

// SearchNodes requires a canvas filter so results stay organization scoped.
func (s *Service) SearchNodes(ctx context.Context, session Session, text, canvasID, nodeType string, limit, offset int) (search.Response, error) {
	if s.search == nil {
		return search.Response{}, domainError(503, "SEARCH_UNAVAILABLE", "Search is not configured", nil)
	}
	if canvasID == "" {
		return search.Response{}, validationError("canvasId is required")
	}
	if _, err := s.canvasForOrg(ctx, canvasID, session.OrgID); err != nil {
		return search.Response{}, err
	}
	return s.search.Search(ctx, search.Query{
		Text:           text,
		FilterCanvasID: canvasID,
		FilterNodeType: nodeType,
		Limit:          limit,
		Offset:         offset,
	}), nil
}

// ── Snapshots ──

func (s *Service) CreateSnapshot(ctx context.Context, session Session, canvasID, message string) (canvasrepo.CommitInfo, error) {
	if s.snapshots == nil {
		return canvasrepo.CommitInfo{}, domainError(503, "SNAPSHOTS_UNAVAILABLE", "Snapshots are not configured", nil)
	}
	canvas, err := s.canvasForOrg(ctx, canvasID, session.OrgID)
	if err != nil {
		return canvasrepo.CommitInfo{}, err
	}
	nodes, err := s.store.ListCanvasNodes(ctx, canvasID)
	if err != nil {
		return canvasrepo.CommitInfo{}, err
	}
	edges, err := s.store.ListEdgesByCanvas(ctx, canvasID)
	if err != nil {
		return canvasrepo.CommitInfo{}, err
	}
	if strings.TrimSpace(message) == "" {
		message = "Canvas snapshot"
	}
	snapshot := canvasrepo.Snapshot{Canvas: canvas, Nodes: nodes, Edges: edges}
	return s.snapshots.CommitSnapshot(canvasID, snapshot, session.UserName, message)
}

func (s *Service) ListSnapshots(ctx context.Context, session Session, canvasID string, limit int) ([]canvasrepo.CommitInfo, error) {
	if s.snapshots == nil {
		return nil, domainError(503, "SNAPSHOTS_UNAVAILABLE", "Snapshots are not configured", nil)
	}
	if _, err := s.canvasForOrg(ctx, canvasID, session.OrgID); err != nil {
		return nil, err
	}
	return s.snapshots.History(canvasID, limit)
}

// RestoreSnapshot reapplies the layout stored in a snapshot commit:
// positions and group membership of nodes that still exist. Nodes created
// or deleted since the snapshot are left alone; payload content is never
// rewound.
func (s *Service) RestoreSnapshot(ctx context.Context, session Session, canvasID, hash string) (int, error) {
	if s.snapshots == nil {
		return 0, domainError(503, "SNAPSHOTS_UNAVAILABLE", "Snapshots are not configured", nil)
	}
	if _, err := s.canvasForOrg(ctx, canvasID, session.OrgID); err != nil {
		return 0, err
	}
	snapshot, err := s.snapshots.GetSnapshotByHash(canvasID, hash)
	if err != nil {
		return 0, notFound("Snapshot not found")
	}

	current, err := s.store.ListCanvasNodes(ctx, canvasID)
	if err != nil {
		return 0, err
	}
	existing := make(map[string]struct{}, len(current))
	for _, node := range current {
		existing[node.ID] = struct{}{}
	}

	restored := 0
	for _, node := range snapshot.Nodes {
		if _, ok := existing[node.ID]; !ok {
			continue
		}
		if err := s.store.UpdateNodePosition(ctx, node.ID, node.X, node.Y); err != nil {
			return restored, err
		}
		if err := s.store.SetNodeParentGroup(ctx, node.ID, node.ParentGroupID); err != nil {
			return restored, err
		}
		restored++
	}
	return restored, nil
}
