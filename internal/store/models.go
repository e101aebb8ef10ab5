package store

import "time"

// Node type tags. Closed set: each tag selects the payload table that
// CanvasNode.DataNodeID indexes into.
const (
	NodeTypeText       = "text"
	NodeTypeChat       = "chat"
	NodeTypeYoutube    = "youtube"
	NodeTypeTikTok     = "tiktok"
	NodeTypeTwitter    = "twitter"
	NodeTypeWebsite    = "website"
	NodeTypeFacebookAd = "facebook_ad"
	NodeTypeImage      = "image"
	NodeTypeGroup      = "group"
)

// Enrichment status values. Transitions are monotonic:
// pending -> processing -> completed | failed.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Media kinds stored for facebook ad nodes.
const (
	MediaTypeVideo = "video"
	MediaTypeImage = "image"
	MediaTypeNone  = "none"
)

type Canvas struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	CreatedBy      string    `json:"createdBy"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// CanvasNode is the graph arena record: position, size, type tag and the
// foreign key into the matching payload table. A node with ParentGroupID set
// belongs to a group and is excluded from top-level traversal.
type CanvasNode struct {
	ID             string    `json:"id"`
	CanvasID       string    `json:"canvasId"`
	OrganizationID string    `json:"organizationId"`
	NodeType       string    `json:"nodeType"`
	X              float64   `json:"x"`
	Y              float64   `json:"y"`
	Width          *float64  `json:"width"`
	Height         *float64  `json:"height"`
	DataNodeID     string    `json:"dataNodeId"`
	ParentGroupID  *string   `json:"parentGroupId"`
	Notes          string    `json:"notes"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type CanvasEdge struct {
	ID           string    `json:"id"`
	CanvasID     string    `json:"canvasId"`
	Source       string    `json:"source"`
	Target       string    `json:"target"`
	SourceHandle *string   `json:"sourceHandle"`
	TargetHandle *string   `json:"targetHandle"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Thread struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	CanvasID       *string   `json:"canvasId"`
	AgentThreadID  string    `json:"agentThreadId"`
	Title          string    `json:"title"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Typed payloads, one record type per node type.

type TextNode struct {
	ID      string
	Content string
}

type ChatNode struct {
	ID               string
	CanvasID         string
	SelectedThreadID *string
}

type YoutubeNode struct {
	ID         string
	URL        string
	Status     string
	Title      string
	Author     string
	Transcript string
	Error      string
}

type TikTokNode struct {
	ID         string
	URL        string
	Status     string
	Title      string
	Author     string
	Transcript string
	Error      string
}

type TwitterNode struct {
	ID       string
	URL      string
	Status   string
	Author   string
	FullText string
	Error    string
}

type WebsiteNode struct {
	ID       string
	URL      string
	Status   string
	Title    string
	Markdown string
	Error    string
}

type FacebookAdNode struct {
	ID        string
	AdID      string
	Status    string
	PageName  string
	Body      string
	MediaType string
	Error     string
}

type FacebookAdMedia struct {
	ID       string
	AdNodeID string
	Kind     string
	BlobRef  string
	Position int
}

type ImageNode struct {
	ID             string
	Prompt         string
	IsAIGenerated  bool
	Status         string
	BlobRef        string
	ProviderTaskID string
	Width          int
	Height         int
	Error          string
}

type GroupNode struct {
	ID    string
	Title string
}

// payloadTables maps a node type tag to the table holding its payload.
var payloadTables = map[string]string{
	NodeTypeText:       "text_nodes",
	NodeTypeChat:       "chat_nodes",
	NodeTypeYoutube:    "youtube_nodes",
	NodeTypeTikTok:     "tiktok_nodes",
	NodeTypeTwitter:    "twitter_nodes",
	NodeTypeWebsite:    "website_nodes",
	NodeTypeFacebookAd: "facebook_ad_nodes",
	NodeTypeImage:      "image_nodes",
	NodeTypeGroup:      "group_nodes",
}

// EnrichingType reports whether nodes of this type run a background
// enrichment job after creation.
func EnrichingType(nodeType string) bool {
	switch nodeType {
	case NodeTypeYoutube, NodeTypeTikTok, NodeTypeTwitter, NodeTypeWebsite, NodeTypeFacebookAd, NodeTypeImage:
		return true
	}
	return false
}

// KnownType reports whether nodeType is part of the closed tag set.
func KnownType(nodeType string) bool {
	_, ok := payloadTables[nodeType]
	return ok
}
