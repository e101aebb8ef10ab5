package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestFetchJSON(t *testing.T) {
	var gotPath, gotKey, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-api-key")
		gotQuery = r.URL.Query().Get("url")
		_ = json.NewEncoder(w).Encode(map[string]any{"title": "ok"})
	}))
	defer server.Close()

	client := NewClient(server.URL, "key-123")
	doc, err := client.FetchJSON(context.Background(), "/v1/youtube/video/transcript", url.Values{"url": {"https://youtu.be/abc"}})
	if err != nil {
		t.Fatalf("FetchJSON: %v", err)
	}
	if doc["title"] != "ok" {
		t.Fatalf("doc = %v", doc)
	}
	if gotPath != "/v1/youtube/video/transcript" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotKey != "key-123" {
		t.Fatalf("x-api-key = %q", gotKey)
	}
	if gotQuery != "https://youtu.be/abc" {
		t.Fatalf("query = %q", gotQuery)
	}
}

func TestFetchJSONNon2xxCarriesStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, "key-123")
	_, err := client.FetchJSON(context.Background(), "/v1/twitter/tweet", nil)
	if err == nil || !strings.Contains(err.Error(), "status 404") {
		t.Fatalf("got %v, want an error naming status 404", err)
	}
}

func TestPostJSON(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("request = %s %q", r.Method, r.Header.Get("Content-Type"))
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"markdown": "# hi"}})
	}))
	defer server.Close()

	client := NewClient(server.URL, "key-123")
	doc, err := client.PostJSON(context.Background(), "/v1/scrape", map[string]any{"url": "https://example.com"})
	if err != nil {
		t.Fatalf("PostJSON: %v", err)
	}
	if gotBody["url"] != "https://example.com" {
		t.Fatalf("request body = %v", gotBody)
	}
	data, _ := doc["data"].(map[string]any)
	if data["markdown"] != "# hi" {
		t.Fatalf("doc = %v", doc)
	}
}

func TestConfigured(t *testing.T) {
	if NewClient("https://api.example", "").Configured() {
		t.Fatal("client without a key reports configured")
	}
	if !NewClient("https://api.example", "k").Configured() {
		t.Fatal("client with a key reports unconfigured")
	}
}

func TestDownloadBytes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("jpeg-bytes"))
	}))
	defer server.Close()

	client := NewClient("https://unused.example", "")
	data, contentType, err := client.DownloadBytes(context.Background(), server.URL+"/media.jpg")
	if err != nil {
		t.Fatalf("DownloadBytes: %v", err)
	}
	if string(data) != "jpeg-bytes" || contentType != "image/jpeg" {
		t.Fatalf("got %q (%s)", data, contentType)
	}
}

func TestDownloadBytesDefaultContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil
		_, _ = w.Write([]byte{0x1})
	}))
	defer server.Close()

	client := NewClient("https://unused.example", "")
	_, contentType, err := client.DownloadBytes(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("DownloadBytes: %v", err)
	}
	if contentType != "application/octet-stream" {
		t.Fatalf("contentType = %q", contentType)
	}
}
