package canvasrepo

import (
	"testing"

	"tapestry/api/internal/store"
)

func testSnapshot(canvasID string, nodeX float64) Snapshot {
	return Snapshot{
		Canvas: store.Canvas{ID: canvasID, OrganizationID: "org_a", Title: "Board"},
		Nodes: []store.CanvasNode{
			{ID: "cnode_1", CanvasID: canvasID, NodeType: store.NodeTypeText, X: nodeX, Y: 20},
		},
		Edges: []store.CanvasEdge{},
	}
}

func TestCommitAndHistory(t *testing.T) {
	svc := New(t.TempDir())

	first, err := svc.CommitSnapshot("canvas_1", testSnapshot("canvas_1", 10), "Ada Lovelace", "first layout")
	if err != nil {
		t.Fatalf("first commit: %v", err)
	}
	if len(first.Hash) != 7 {
		t.Fatalf("hash = %q, want 7-char short hash", first.Hash)
	}
	if first.Author != "Ada Lovelace" || first.Message != "first layout" {
		t.Fatalf("commit = %+v", first)
	}

	second, err := svc.CommitSnapshot("canvas_1", testSnapshot("canvas_1", 99), "Ada Lovelace", "moved things")
	if err != nil {
		t.Fatalf("second commit: %v", err)
	}

	history, err := svc.History("canvas_1", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history = %d entries, want 2", len(history))
	}
	// newest first
	if history[0].Hash != second.Hash || history[1].Hash != first.Hash {
		t.Fatalf("history order = %q, %q", history[0].Hash, history[1].Hash)
	}
}

func TestHistoryLimit(t *testing.T) {
	svc := New(t.TempDir())
	for i := 0; i < 3; i++ {
		if _, err := svc.CommitSnapshot("canvas_1", testSnapshot("canvas_1", float64(i)), "Ada", "snapshot"); err != nil {
			t.Fatalf("commit %d: %v", i, err)
		}
	}
	history, err := svc.History("canvas_1", 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history = %d entries, want the limit applied", len(history))
	}
}

func TestHistoryOfUnknownCanvasIsEmpty(t *testing.T) {
	svc := New(t.TempDir())
	history, err := svc.History("canvas_missing", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("history = %d entries, want none", len(history))
	}
}

func TestGetSnapshotByHash(t *testing.T) {
	svc := New(t.TempDir())

	old, err := svc.CommitSnapshot("canvas_1", testSnapshot("canvas_1", 10), "Ada", "before")
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := svc.CommitSnapshot("canvas_1", testSnapshot("canvas_1", 99), "Ada", "after"); err != nil {
		t.Fatalf("commit: %v", err)
	}

	snapshot, err := svc.GetSnapshotByHash("canvas_1", old.Hash)
	if err != nil {
		t.Fatalf("get by hash: %v", err)
	}
	if len(snapshot.Nodes) != 1 || snapshot.Nodes[0].X != 10 {
		t.Fatalf("snapshot = %+v, want the older layout", snapshot.Nodes)
	}

	if _, err := svc.GetSnapshotByHash("canvas_1", "0000000"); err == nil {
		t.Fatal("want error for unknown hash")
	}
}

func TestRepositoriesAreIsolatedPerCanvas(t *testing.T) {
	svc := New(t.TempDir())

	if _, err := svc.CommitSnapshot("canvas_a", testSnapshot("canvas_a", 1), "Ada", "a"); err != nil {
		t.Fatalf("commit a: %v", err)
	}
	if _, err := svc.CommitSnapshot("canvas_b", testSnapshot("canvas_b", 2), "Ada", "b"); err != nil {
		t.Fatalf("commit b: %v", err)
	}

	historyA, err := svc.History("canvas_a", 10)
	if err != nil {
		t.Fatalf("history a: %v", err)
	}
	if len(historyA) != 1 || historyA[0].Message != "a" {
		t.Fatalf("history a = %+v", historyA)
	}
}

func TestSanitizeEmail(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Ada Lovelace", "Ada.Lovelace"},
		{"user_1", "user.1"},
		{"@@!!", "user"},
	}
	for _, tc := range cases {
		if got := sanitizeEmail(tc.in); got != tc.want {
			t.Errorf("sanitizeEmail(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
