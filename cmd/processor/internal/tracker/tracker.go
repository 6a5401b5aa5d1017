package tracker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/FAbreu6/TP3-IS/cmd/processor/internal/ratelimit"
	"github.com/FAbreu6/TP3-IS/pkg/models"
)

// ArtifactDeleter removes an artifact from its backing store.
type ArtifactDeleter interface {
	Delete(ctx context.Context, path string) error
}

// Tracker owns the lifecycle between "accepted by transport" and
// "confirmed by downstream". Artifacts are deleted if and only if a
// delivery resolves with a confirmed outcome.
type Tracker struct {
	store   PendingStore
	deleter ArtifactDeleter
	sinks   []EventSink
	ttl     time.Duration
	clock   ratelimit.Clock
	logger  *zap.Logger

	mu      sync.Mutex
	pending map[string]models.PendingDelivery
}

func NewTracker(store PendingStore, deleter ArtifactDeleter, ttl time.Duration, clock ratelimit.Clock, logger *zap.Logger, sinks ...EventSink) *Tracker {
	return &Tracker{
		store:   store,
		deleter: deleter,
		sinks:   sinks,
		ttl:     ttl,
		clock:   clock,
		logger:  logger,
		pending: make(map[string]models.PendingDelivery),
	}
}

// Restore rebuilds the pending map from the durable store after a restart.
// Expiry timers are re-armed by the normal sweep.
func (t *Tracker) Restore(ctx context.Context) error {
	entries, err := t.store.LoadAll(ctx)
	if err != nil {
		return err
	}

	t.mu.Lock()
	for _, pd := range entries {
		t.pending[pd.CorrelationID] = pd
	}
	t.mu.Unlock()

	if len(entries) > 0 {
		t.logger.Info("Restored pending deliveries", zap.Int("count", len(entries)))
	}
	return nil
}

// Register records an accepted delivery. Called exactly once per accepted
// transport call, before the confirmation can arrive.
func (t *Tracker) Register(ctx context.Context, correlationID string, artifactRefs []string) error {
	pd := models.PendingDelivery{
		CorrelationID: correlationID,
		ArtifactRefs:  append([]string(nil), artifactRefs...),
		CreatedAtUTC:  t.clock.Now().UTC(),
	}

	if err := t.store.Save(ctx, pd); err != nil {
		return err
	}

	t.mu.Lock()
	t.pending[correlationID] = pd
	t.mu.Unlock()

	t.logger.Info("Delivery registered",
		zap.String("correlation_id", correlationID),
		zap.Strings("artifact_refs", pd.ArtifactRefs))

	t.emit(ctx, Event{
		Kind:          EventRegistered,
		CorrelationID: correlationID,
		ArtifactRefs:  pd.ArtifactRefs,
		At:            pd.CreatedAtUTC,
	})

	t.Sweep(ctx)
	return nil
}

// Resolve consumes one confirmation event. Unknown correlation ids are
// logged and ignored; they may be duplicate or post-expiry deliveries.
func (t *Tracker) Resolve(ctx context.Context, ev models.ConfirmationEvent) {
	t.mu.Lock()
	pd, ok := t.pending[ev.CorrelationID]
	if ok {
		delete(t.pending, ev.CorrelationID)
	}
	t.mu.Unlock()

	if !ok {
		t.logger.Warn("Confirmation for unknown correlation id, ignoring",
			zap.String("correlation_id", ev.CorrelationID),
			zap.String("status", ev.Outcome))
		return
	}

	if err := t.store.Remove(ctx, ev.CorrelationID); err != nil {
		t.logger.Error("Could not remove pending entry from store",
			zap.String("correlation_id", ev.CorrelationID), zap.Error(err))
	}

	switch ev.Outcome {
	case models.OutcomeConfirmed:
		for _, ref := range pd.ArtifactRefs {
			if err := t.deleter.Delete(ctx, ref); err != nil {
				t.logger.Error("Could not delete confirmed artifact",
					zap.String("artifact", ref), zap.Error(err))
			} else {
				t.logger.Info("Artifact deleted", zap.String("artifact", ref))
			}
		}
		t.logger.Info("Delivery confirmed",
			zap.String("correlation_id", ev.CorrelationID),
			zap.String("document_id", ev.DocumentID))
		t.emit(ctx, Event{
			Kind:          EventConfirmed,
			CorrelationID: ev.CorrelationID,
			ArtifactRefs:  pd.ArtifactRefs,
			DocumentID:    ev.DocumentID,
			At:            t.clock.Now().UTC(),
		})

	default:
		// Terminal, reported failure. Artifacts are retained and the
		// delivery is not retried automatically.
		t.logger.Error("Delivery rejected by downstream",
			zap.String("correlation_id", ev.CorrelationID),
			zap.String("status", ev.Outcome),
			zap.String("message", ev.Message))
		t.emit(ctx, Event{
			Kind:          EventRejected,
			CorrelationID: ev.CorrelationID,
			ArtifactRefs:  pd.ArtifactRefs,
			Message:       ev.Message,
			At:            t.clock.Now().UTC(),
		})
	}
}

// Sweep removes registered entries older than the timeout without deleting
// their artifacts: an unconfirmed delivery is ambiguous, never a success.
func (t *Tracker) Sweep(ctx context.Context) {
	cutoff := t.clock.Now().UTC().Add(-t.ttl)

	var expired []models.PendingDelivery
	t.mu.Lock()
	for id, pd := range t.pending {
		if pd.CreatedAtUTC.Before(cutoff) {
			delete(t.pending, id)
			expired = append(expired, pd)
		}
	}
	t.mu.Unlock()

	for _, pd := range expired {
		if err := t.store.Remove(ctx, pd.CorrelationID); err != nil {
			t.logger.Error("Could not remove expired entry from store",
				zap.String("correlation_id", pd.CorrelationID), zap.Error(err))
		}
		t.logger.Warn("Pending delivery expired without confirmation, artifacts retained",
			zap.String("correlation_id", pd.CorrelationID),
			zap.Time("created_at", pd.CreatedAtUTC))
		t.emit(ctx, Event{
			Kind:          EventExpired,
			CorrelationID: pd.CorrelationID,
			ArtifactRefs:  pd.ArtifactRefs,
			At:            t.clock.Now().UTC(),
		})
	}
}

// Run sweeps on a fixed interval until the context is cancelled.
func (t *Tracker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Sweep(ctx)
		}
	}
}

// Has reports whether a correlation id is currently registered.
func (t *Tracker) Has(correlationID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.pending[correlationID]
	return ok
}

// InFlightRefs returns every artifact referenced by a pending delivery.
// The retention sweeper must never delete these.
func (t *Tracker) InFlightRefs() map[string]bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	refs := make(map[string]bool)
	for _, pd := range t.pending {
		for _, ref := range pd.ArtifactRefs {
			refs[ref] = true
		}
	}
	return refs
}

func (t *Tracker) emit(ctx context.Context, ev Event) {
	for _, sink := range t.sinks {
		sink.Publish(ctx, ev)
	}
}
