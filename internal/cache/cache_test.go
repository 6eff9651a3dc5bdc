package cache

import (
	"context"
	"testing"

	"github.com/dunamismax/imagekit/internal/domain"
)

func TestKeyForIsDeterministic(t *testing.T) {
	a := KeyFor("f=webp&q=80&url=https://e.example/a.jpg&w=400")
	b := KeyFor("f=webp&q=80&url=https://e.example/a.jpg&w=400")
	if a != b {
		t.Fatal("KeyFor must be deterministic for the same canonical string")
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars (sha256), got %d", len(a))
	}
}

func TestKeyForDiffersOnDifferentInput(t *testing.T) {
	a := KeyFor("w=400")
	b := KeyFor("w=401")
	if a == b {
		t.Fatal("expected different canonical strings to produce different keys")
	}
}

func TestEtagForIsQuoted(t *testing.T) {
	got := EtagFor("deadbeef")
	if got != `"deadbeef"` {
		t.Fatalf("got %q", got)
	}
}

func TestMemoryBackendGetMissThenPutThenHit(t *testing.T) {
	m := NewMemoryBackend()
	ctx := context.Background()

	if _, ok, err := m.Get(ctx, "k"); err != nil || ok {
		t.Fatalf("expected clean miss, ok=%v err=%v", ok, err)
	}

	if err := m.Put(ctx, "k", []byte("payload"), domain.FormatAVIF); err != nil {
		t.Fatalf("put: %v", err)
	}

	a, ok, err := m.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("expected hit, ok=%v err=%v", ok, err)
	}
	if string(a.Bytes) != "payload" || a.Format != domain.FormatAVIF {
		t.Fatalf("got %+v", a)
	}
}

func TestMemoryBackendStatsCountsEntriesAndBytes(t *testing.T) {
	m := NewMemoryBackend()
	ctx := context.Background()
	if err := m.Put(ctx, "a", []byte("1234"), domain.FormatJPEG); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := m.Put(ctx, "b", []byte("12345678"), domain.FormatWebP); err != nil {
		t.Fatalf("put: %v", err)
	}

	stats, err := m.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Entries != 2 {
		t.Fatalf("expected 2 entries, got %d", stats.Entries)
	}
	if stats.Bytes != 12 {
		t.Fatalf("expected 12 bytes, got %d", stats.Bytes)
	}
}

func TestMemoryBackendGetReturnsIndependentCopy(t *testing.T) {
	m := NewMemoryBackend()
	ctx := context.Background()
	original := []byte("payload")
	if err := m.Put(ctx, "k", original, domain.FormatJPEG); err != nil {
		t.Fatalf("put: %v", err)
	}

	a, _, _ := m.Get(ctx, "k")
	a.Bytes[0] = 'X'

	b, _, _ := m.Get(ctx, "k")
	if string(b.Bytes) != "payload" {
		t.Fatal("mutating a returned artifact must not affect stored state")
	}
}
