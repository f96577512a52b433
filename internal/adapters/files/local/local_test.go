package local

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"cmi-tracker/internal/files"
)

func TestSaveOpenRoundTrip(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	content := []byte("contenido del informe")
	if err := s.Save(context.Background(), "abc123.pdf", bytes.NewReader(content)); err != nil {
		t.Fatalf("save: %v", err)
	}

	rc, err := s.Open(context.Background(), "abc123.pdf")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()

	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("content = %q, want %q", got, content)
	}
}

func TestOpenMissingReturnsNotFound(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if _, err := s.Open(context.Background(), "nope.pdf"); !errors.Is(err, files.ErrNotFound) {
		t.Fatalf("err = %v, want files.ErrNotFound", err)
	}
}

func TestRejectsPathTraversalIDs(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	for _, id := range []string{"", ".", "..", "../x", "a/b", "a\\b"} {
		if err := s.Save(context.Background(), id, bytes.NewReader([]byte("x"))); err == nil {
			t.Fatalf("save accepted invalid id %q", id)
		}
		if _, err := s.Open(context.Background(), id); !errors.Is(err, files.ErrNotFound) {
			t.Fatalf("open(%q) err = %v, want files.ErrNotFound", id, err)
		}
	}
}
