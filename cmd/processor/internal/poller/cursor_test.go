package poller_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/FAbreu6/TP3-IS/cmd/processor/internal/poller"
	"github.com/FAbreu6/TP3-IS/pkg/models"
)

func TestRedisCursorStore_MissingKeyIsZeroCursor(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := poller.NewRedisCursorStore(client)
	cursor, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load on empty store failed: %v", err)
	}
	if cursor.LastProcessedFilename != "" {
		t.Errorf("Expected zero cursor, got %+v", cursor)
	}
}

func TestRedisCursorStore_RoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := poller.NewRedisCursorStore(client)
	ctx := context.Background()

	want := models.ProcessorCursor{
		LastProcessedFilename: "raw/a1.csv",
		ProcessedAtUTC:        "2026-08-29T12:00:00Z",
	}
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got != want {
		t.Errorf("Expected %+v, got %+v", want, got)
	}

	// Overwrite: the cursor is a singleton.
	want.LastProcessedFilename = "raw/a2.csv"
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err = store.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.LastProcessedFilename != "raw/a2.csv" {
		t.Errorf("Cursor not overwritten: %+v", got)
	}
}
