package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestImageGenDispatch(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/generate" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": 200,
			"data": map[string]any{"taskId": "task_42"},
		})
	}))
	defer server.Close()

	gen := NewImageGen(server.URL, "key-123")
	taskID, err := gen.Dispatch(context.Background(), "a watercolor fox", "https://api.tapestry.dev/enrichment/image-callback?nodeId=img_1")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if taskID != "task_42" {
		t.Fatalf("taskID = %q", taskID)
	}
	if gotBody["prompt"] != "a watercolor fox" {
		t.Fatalf("prompt = %v", gotBody["prompt"])
	}
	if gotBody["callBackUrl"] != "https://api.tapestry.dev/enrichment/image-callback?nodeId=img_1" {
		t.Fatalf("callBackUrl = %v", gotBody["callBackUrl"])
	}
}

func TestImageGenDispatchRejectedJob(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 501, "data": map[string]any{}})
	}))
	defer server.Close()

	gen := NewImageGen(server.URL, "key-123")
	_, err := gen.Dispatch(context.Background(), "p", "https://cb.example")
	if err == nil || !strings.Contains(err.Error(), "code 501") {
		t.Fatalf("got %v, want rejection carrying the provider code", err)
	}
}

func TestImageGenDispatchMissingTaskID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 200, "data": map[string]any{}})
	}))
	defer server.Close()

	gen := NewImageGen(server.URL, "key-123")
	_, err := gen.Dispatch(context.Background(), "p", "https://cb.example")
	if err == nil || !strings.Contains(err.Error(), "taskId") {
		t.Fatalf("got %v, want missing taskId error", err)
	}
}
