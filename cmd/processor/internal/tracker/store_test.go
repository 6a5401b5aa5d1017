package tracker_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/FAbreu6/TP3-IS/cmd/processor/internal/tracker"
	"github.com/FAbreu6/TP3-IS/pkg/models"
)

func TestRedisPendingStore_RoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := tracker.NewRedisPendingStore(client)
	ctx := context.Background()

	created := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	if err := store.Save(ctx, models.PendingDelivery{
		CorrelationID: "r1",
		ArtifactRefs:  []string{"raw/a1.csv", "processed/transformed_a1.csv"},
		CreatedAtUTC:  created,
	}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Save(ctx, models.PendingDelivery{
		CorrelationID: "r2",
		ArtifactRefs:  []string{"raw/a2.csv"},
		CreatedAtUTC:  created,
	}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	entries, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}

	byID := make(map[string]models.PendingDelivery)
	for _, pd := range entries {
		byID[pd.CorrelationID] = pd
	}
	r1, ok := byID["r1"]
	if !ok {
		t.Fatal("r1 missing after round trip")
	}
	if len(r1.ArtifactRefs) != 2 || r1.ArtifactRefs[0] != "raw/a1.csv" {
		t.Errorf("Artifact refs corrupted: %v", r1.ArtifactRefs)
	}
	if !r1.CreatedAtUTC.Equal(created) {
		t.Errorf("Expected created_at %v, got %v", created, r1.CreatedAtUTC)
	}

	if err := store.Remove(ctx, "r1"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	entries, err = store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(entries) != 1 || entries[0].CorrelationID != "r2" {
		t.Errorf("Expected only r2 to remain, got %v", entries)
	}
}
