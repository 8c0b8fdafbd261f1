package services

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func fingerprintsFor(n int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		out[i] = []float32{float32(i), 1}
	}
	return out
}

func TestUpsertChunking(t *testing.T) {
	store := newFakeStore()
	writer := NewIndexWriter(store, 100)

	items := makeItems(250)
	upserted, failedChunks, err := writer.Upsert(context.Background(), items, fingerprintsFor(250))
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if upserted != 250 {
		t.Errorf("upserted = %d, want 250", upserted)
	}
	if failedChunks != 0 {
		t.Errorf("failedChunks = %d, want 0", failedChunks)
	}
	if store.upsertCall != 3 {
		t.Errorf("store saw %d upsert calls, want 3 (100+100+50)", store.upsertCall)
	}
	if len(store.vectors) != 250 {
		t.Errorf("store holds %d vectors, want 250", len(store.vectors))
	}
}

func TestUpsertArityMismatch(t *testing.T) {
	writer := NewIndexWriter(newFakeStore(), 100)

	_, _, err := writer.Upsert(context.Background(), makeItems(3), fingerprintsFor(2))
	var arity *ArityError
	if !errors.As(err, &arity) {
		t.Fatalf("want *ArityError, got %v", err)
	}
	if arity.Items != 3 || arity.Fingerprints != 2 {
		t.Errorf("arity counts = %d/%d, want 3/2", arity.Items, arity.Fingerprints)
	}
}

func TestUpsertToleratesChunkFailure(t *testing.T) {
	store := newFakeStore()
	store.failCalls = map[int]bool{2: true}
	writer := NewIndexWriter(store, 100)

	items := makeItems(250)
	upserted, failedChunks, err := writer.Upsert(context.Background(), items, fingerprintsFor(250))
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if upserted != 150 {
		t.Errorf("upserted = %d, want 150 (first and last chunk)", upserted)
	}
	if failedChunks != 1 {
		t.Errorf("failedChunks = %d, want 1", failedChunks)
	}
	// The chunk after the failed one must still land
	if _, ok := store.vectors["250"]; !ok {
		t.Error("vector from the final chunk missing")
	}
}

func TestVectorMetadataProjection(t *testing.T) {
	items := makeItems(1)
	items[0].Permalink = "https://shop.example.com/p/1"
	items[0].Description = strings.Repeat("x", 600)

	store := newFakeStore()
	writer := NewIndexWriter(store, 100)
	if _, _, err := writer.Upsert(context.Background(), items, fingerprintsFor(1)); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	meta := store.vectors["1"].Metadata
	if meta["product_id"] != "1" {
		t.Errorf("product_id = %q", meta["product_id"])
	}
	if meta["name"] != "Product 1" {
		t.Errorf("name = %q", meta["name"])
	}
	if meta["permalink"] != "https://shop.example.com/p/1" {
		t.Errorf("permalink = %q", meta["permalink"])
	}
	if len(meta["description"]) != 500 {
		t.Errorf("description length = %d, want 500", len(meta["description"]))
	}
}

func TestTruncateRuneSafe(t *testing.T) {
	s := strings.Repeat("é", 10)
	got := truncate(s, 4)
	if got != strings.Repeat("é", 4) {
		t.Errorf("truncate split a rune: %q", got)
	}
	if truncate("short", 500) != "short" {
		t.Error("truncate must not touch strings under the limit")
	}
}
