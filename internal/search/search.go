// Package search indexes completed node content and serves canvas search,
// backed by Meilisearch with a Postgres ILIKE fallback.
package search

// NodeRecord is the data we index for a canvas node. Body holds whichever
// extracted field the node type produces (content, transcript, markdown,
// tweet text, ad body, prompt).
type NodeRecord struct {
	ID       string `json:"id"`
	CanvasID string `json:"canvasId"`
	NodeType string `json:"nodeType"`
	Title    string `json:"title"`
	Body     string `json:"body"`
}

// Query describes a node search request.
type Query struct {
	Text           string
	FilterCanvasID string
	FilterNodeType string // empty = all types
	Limit          int
	Offset         int
}

// Result is a single search hit returned to the caller.
type Result struct {
	ID       string `json:"id"`
	CanvasID string `json:"canvasId"`
	NodeType string `json:"nodeType"`
	Title    string `json:"title"`
	Snippet  string `json:"snippet"`
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}
