package tracker_test

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/FAbreu6/TP3-IS/cmd/processor/internal/testutils"
	"github.com/FAbreu6/TP3-IS/cmd/processor/internal/tracker"
	"github.com/FAbreu6/TP3-IS/pkg/models"
)

func setup() (*tracker.Tracker, *testutils.MockObjectStore, *testutils.MockPendingStore, *testutils.MockEventSink, *testutils.MockClock) {
	store := testutils.NewMockPendingStore()
	deleter := testutils.NewMockObjectStore()
	sink := &testutils.MockEventSink{}
	clock := &testutils.MockClock{CurrentTime: time.Unix(1700000000, 0)}
	tr := tracker.NewTracker(store, deleter, time.Hour, clock, zap.NewNop(), sink)
	return tr, deleter, store, sink, clock
}

func TestTracker_ConfirmedDeletesExactlyRegisteredArtifacts(t *testing.T) {
	tr, deleter, store, _, _ := setup()
	ctx := context.Background()

	tr.Register(ctx, "r1", []string{"raw/a1.csv", "processed/transformed_a1.csv"})
	tr.Register(ctx, "r2", []string{"raw/a2.csv"})

	tr.Resolve(ctx, models.ConfirmationEvent{CorrelationID: "r1", Outcome: models.OutcomeConfirmed, DocumentID: "42"})

	if tr.Has("r1") {
		t.Error("r1 should be removed from the pending mapping")
	}
	if !tr.Has("r2") {
		t.Error("r2 must not be affected")
	}

	deleter.Mu.Lock()
	defer deleter.Mu.Unlock()
	if len(deleter.Deleted) != 2 {
		t.Fatalf("Expected exactly 2 deletions, got %v", deleter.Deleted)
	}
	for _, want := range []string{"raw/a1.csv", "processed/transformed_a1.csv"} {
		found := false
		for _, got := range deleter.Deleted {
			if got == want {
				found = true
			}
		}
		if !found {
			t.Errorf("Artifact %s was not deleted", want)
		}
	}

	store.Mu.Lock()
	defer store.Mu.Unlock()
	if _, ok := store.Entries["r1"]; ok {
		t.Error("Durable entry for r1 should be removed")
	}
}

func TestTracker_RejectedKeepsArtifacts(t *testing.T) {
	tr, deleter, _, sink, _ := setup()
	ctx := context.Background()

	tr.Register(ctx, "r1", []string{"raw/a1.csv"})
	tr.Resolve(ctx, models.ConfirmationEvent{CorrelationID: "r1", Outcome: models.OutcomeValidationFailed, Message: "bad xml"})

	if tr.Has("r1") {
		t.Error("Rejected delivery should leave the pending mapping")
	}

	deleter.Mu.Lock()
	if len(deleter.Deleted) != 0 {
		t.Errorf("Rejection must not delete artifacts, got %v", deleter.Deleted)
	}
	deleter.Mu.Unlock()

	kinds := sink.Kinds()
	if len(kinds) != 2 || kinds[1] != tracker.EventRejected {
		t.Errorf("Expected registered+rejected events, got %v", kinds)
	}
}

func TestTracker_UnknownCorrelationIdIsNoOp(t *testing.T) {
	tr, deleter, _, sink, _ := setup()
	ctx := context.Background()

	tr.Resolve(ctx, models.ConfirmationEvent{CorrelationID: "ghost", Outcome: models.OutcomeConfirmed})

	if tr.Has("ghost") {
		t.Error("Unknown id must not create entries")
	}
	deleter.Mu.Lock()
	if len(deleter.Deleted) != 0 {
		t.Errorf("Unknown id must not delete anything, got %v", deleter.Deleted)
	}
	deleter.Mu.Unlock()
	if len(sink.Kinds()) != 0 {
		t.Errorf("Unknown id must not emit events, got %v", sink.Kinds())
	}
}

func TestTracker_DuplicateConfirmationIgnored(t *testing.T) {
	tr, deleter, _, _, _ := setup()
	ctx := context.Background()

	tr.Register(ctx, "r1", []string{"raw/a1.csv"})
	tr.Resolve(ctx, models.ConfirmationEvent{CorrelationID: "r1", Outcome: models.OutcomeConfirmed})
	tr.Resolve(ctx, models.ConfirmationEvent{CorrelationID: "r1", Outcome: models.OutcomeConfirmed})

	deleter.Mu.Lock()
	defer deleter.Mu.Unlock()
	if len(deleter.Deleted) != 1 {
		t.Errorf("Duplicate confirmation must not delete twice, got %v", deleter.Deleted)
	}
}

func TestTracker_ExpirySweepRetainsArtifacts(t *testing.T) {
	tr, deleter, store, sink, clock := setup()
	ctx := context.Background()

	tr.Register(ctx, "old", []string{"raw/old.csv"})
	clock.Advance(2 * time.Hour)
	tr.Sweep(ctx)

	if tr.Has("old") {
		t.Error("Expired entry should be removed")
	}
	deleter.Mu.Lock()
	if len(deleter.Deleted) != 0 {
		t.Errorf("Expiry is ambiguous, never success: artifacts must remain, got %v", deleter.Deleted)
	}
	deleter.Mu.Unlock()

	store.Mu.Lock()
	if _, ok := store.Entries["old"]; ok {
		t.Error("Expired durable entry should be removed")
	}
	store.Mu.Unlock()

	kinds := sink.Kinds()
	if kinds[len(kinds)-1] != tracker.EventExpired {
		t.Errorf("Expected expired event, got %v", kinds)
	}
}

func TestTracker_InFlightRefs(t *testing.T) {
	tr, _, _, _, _ := setup()
	ctx := context.Background()

	tr.Register(ctx, "r1", []string{"raw/a1.csv", "processed/t_a1.csv"})
	refs := tr.InFlightRefs()

	if !refs["raw/a1.csv"] || !refs["processed/t_a1.csv"] {
		t.Errorf("In-flight refs incomplete: %v", refs)
	}
}

func TestTracker_RestoreRebuildsPendingMap(t *testing.T) {
	store := testutils.NewMockPendingStore()
	deleter := testutils.NewMockObjectStore()
	clock := &testutils.MockClock{CurrentTime: time.Unix(1700000000, 0)}

	first := tracker.NewTracker(store, deleter, time.Hour, clock, zap.NewNop())
	first.Register(context.Background(), "r1", []string{"raw/a1.csv"})

	// Simulated restart: a fresh tracker over the same durable store.
	second := tracker.NewTracker(store, deleter, time.Hour, clock, zap.NewNop())
	if err := second.Restore(context.Background()); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	if !second.Has("r1") {
		t.Fatal("Restored tracker should know r1")
	}

	second.Resolve(context.Background(), models.ConfirmationEvent{CorrelationID: "r1", Outcome: models.OutcomeConfirmed})
	deleter.Mu.Lock()
	defer deleter.Mu.Unlock()
	if len(deleter.Deleted) != 1 {
		t.Errorf("Restored entry should drive deletion on confirmation, got %v", deleter.Deleted)
	}
}
