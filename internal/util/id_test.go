package util

import (
	"strings"
	"testing"
)

func TestNewID(t *testing.T) {
	id := NewID("canvas")
	if !strings.HasPrefix(id, "canvas_") {
		t.Fatalf("id = %q, want canvas_ prefix", id)
	}
	if len(id) != len("canvas_")+32 {
		t.Fatalf("id = %q, want 32 hex chars after the prefix", id)
	}
	if id == NewID("canvas") {
		t.Fatal("two ids collided")
	}
}
