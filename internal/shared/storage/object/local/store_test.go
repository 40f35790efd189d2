package local

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
)

func TestSaveAndOpenRoundTrip(t *testing.T) {
	store := New(t.TempDir())

	body := []byte("RIFF fake audio payload")
	key, size, _, err := store.Save(context.Background(), "job-1", "call.wav", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if size != int64(len(body)) {
		t.Fatalf("expected size %d, got %d", len(body), size)
	}
	if strings.Contains(key, "..") {
		t.Fatalf("unexpected key %q", key)
	}

	rc, err := store.Open(context.Background(), key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, body) {
		t.Fatalf("round trip mismatch")
	}
}

func TestOpenRejectsTraversalKeys(t *testing.T) {
	store := New(t.TempDir())
	if _, err := store.Open(context.Background(), "../secrets"); err == nil {
		t.Fatalf("expected error for traversal key")
	}
	if _, err := store.Open(context.Background(), "/etc/passwd"); err == nil {
		t.Fatalf("expected error for absolute key")
	}
}

func TestSaveWithKeyWritesAtExactKey(t *testing.T) {
	store := New(t.TempDir())
	n, err := store.SaveWithKey(context.Background(), "results/job-1/results.json", "application/json", strings.NewReader(`{"ok":true}`))
	if err != nil {
		t.Fatalf("SaveWithKey: %v", err)
	}
	if n != int64(len(`{"ok":true}`)) {
		t.Fatalf("unexpected size %d", n)
	}

	rc, err := store.Open(context.Background(), "results/job-1/results.json")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != `{"ok":true}` {
		t.Fatalf("unexpected content %q", got)
	}
}
