package poller

import (
	"context"
	"path"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/FAbreu6/TP3-IS/cmd/processor/internal/delivery"
	"github.com/FAbreu6/TP3-IS/cmd/processor/internal/retention"
	"github.com/FAbreu6/TP3-IS/cmd/processor/internal/storage"
	"github.com/FAbreu6/TP3-IS/cmd/processor/internal/transform"
	"github.com/FAbreu6/TP3-IS/pkg/models"
)

// Enricher resolves market metadata for a set of symbols.
type Enricher interface {
	Enrich(ctx context.Context, symbols []string) map[string]models.Enrichment
}

// Registrar tracks accepted deliveries until confirmation.
type Registrar interface {
	Register(ctx context.Context, correlationID string, artifactRefs []string) error
	InFlightRefs() map[string]bool
}

// Options carries the per-deployment knobs of the orchestrator.
type Options struct {
	RawPrefix       string
	ProcessedPrefix string
	WebhookURL      string
	PollInterval    time.Duration
}

// Orchestrator drives one pipeline iteration per tick: detect a new source
// artifact, transform and enrich it, deliver it downstream and register the
// pending delivery. The cursor advances on transport acceptance only.
type Orchestrator struct {
	store     storage.ObjectStore
	engine    *transform.Engine
	enricher  Enricher
	transport delivery.Transport
	registrar Registrar
	cursor    CursorStore
	sweeper   *retention.Sweeper
	opts      Options
	logger    *zap.Logger

	running atomic.Bool
	newID   func() string
}

func NewOrchestrator(
	store storage.ObjectStore,
	engine *transform.Engine,
	enricher Enricher,
	transport delivery.Transport,
	registrar Registrar,
	cursor CursorStore,
	sweeper *retention.Sweeper,
	opts Options,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		store:     store,
		engine:    engine,
		enricher:  enricher,
		transport: transport,
		registrar: registrar,
		cursor:    cursor,
		sweeper:   sweeper,
		opts:      opts,
		logger:    logger,
		newID:     uuid.NewString,
	}
}

// Run ticks until the context is cancelled. Iterations run in their own
// goroutine so a slow one makes later ticks skip, never queue.
func (o *Orchestrator) Run(ctx context.Context) {
	o.logger.Info("Poll loop started", zap.Duration("interval", o.opts.PollInterval))

	ticker := time.NewTicker(o.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			go o.Tick(ctx)
		}
	}
}

// Tick runs at most one pipeline iteration. Reentrancy guard: overlapping
// ticks are skipped, never queued.
func (o *Orchestrator) Tick(ctx context.Context) {
	if !o.running.CompareAndSwap(false, true) {
		o.logger.Warn("Previous iteration still running, skipping tick")
		return
	}
	defer o.running.Store(false)

	if err := o.iterate(ctx); err != nil {
		o.logger.Error("Pipeline iteration aborted", zap.Error(err))
	}
}

func (o *Orchestrator) iterate(ctx context.Context) error {
	artifacts, err := o.store.List(ctx, o.opts.RawPrefix)
	if err != nil {
		return err
	}

	latest, ok := newestArtifact(artifacts)
	if !ok {
		o.logger.Debug("No source artifacts found")
		return nil
	}

	cursor, err := o.cursor.Load(ctx)
	if err != nil {
		return err
	}
	if cursor.LastProcessedFilename == latest.Name {
		o.logger.Debug("No new artifact", zap.String("last", cursor.LastProcessedFilename))
		return nil
	}

	o.logger.Info("New artifact detected", zap.String("artifact", latest.Name))

	raw, err := o.store.Download(ctx, latest.Name)
	if err != nil {
		return err
	}

	rows, err := o.engine.Parse(raw)
	if err != nil {
		return err
	}

	symbols := make([]string, 0, len(rows))
	for _, r := range rows {
		symbols = append(symbols, r.Symbol)
	}
	enrichment := o.enricher.Enrich(ctx, symbols)

	canon, err := o.engine.Transform(rows, enrichment)
	if err != nil {
		return err
	}

	serialized, err := transform.Serialize(canon)
	if err != nil {
		return err
	}

	processedRef := path.Join(o.opts.ProcessedPrefix, "transformed_"+path.Base(latest.Name))
	if err := o.store.Upload(ctx, processedRef, serialized); err != nil {
		return err
	}

	correlationID := o.newID()
	res, err := o.transport.Deliver(ctx, delivery.Request{
		CorrelationID: correlationID,
		Mapper:        DefaultMapper,
		WebhookURL:    o.opts.WebhookURL,
		CSV:           serialized,
	})
	if err != nil {
		return err
	}
	if !res.Accepted {
		o.logger.Error("Delivery rejected",
			zap.String("correlation_id", correlationID),
			zap.String("reason", res.RejectReason))
		return delivery.ErrTransportRejected
	}

	artifactRefs := []string{latest.Name, processedRef}
	if err := o.registrar.Register(ctx, correlationID, artifactRefs); err != nil {
		o.logger.Error("Could not register pending delivery",
			zap.String("correlation_id", correlationID), zap.Error(err))
	}

	// Advance on acceptance, regardless of the later confirmation outcome.
	if err := o.cursor.Save(ctx, models.ProcessorCursor{
		LastProcessedFilename: latest.Name,
		ProcessedAtUTC:        time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		o.logger.Error("Could not persist cursor", zap.Error(err))
	}

	o.logger.Info("Iteration complete",
		zap.String("artifact", latest.Name),
		zap.String("correlation_id", correlationID),
		zap.Int("rows", len(canon)))

	o.retain(ctx, artifactRefs)
	return nil
}

// retain caps stored artifacts, excluding this iteration's outputs and
// everything still referenced by a pending delivery.
func (o *Orchestrator) retain(ctx context.Context, currentRefs []string) {
	exclude := o.registrar.InFlightRefs()
	for _, ref := range currentRefs {
		exclude[ref] = true
	}
	o.sweeper.Sweep(ctx, o.opts.RawPrefix, exclude)
	o.sweeper.Sweep(ctx, o.opts.ProcessedPrefix, exclude)
}

// newestArtifact picks the most recently modified CSV, ties broken by
// identifier descending.
func newestArtifact(artifacts []models.SourceArtifact) (models.SourceArtifact, bool) {
	var best models.SourceArtifact
	found := false
	for _, a := range artifacts {
		if !strings.HasSuffix(a.Name, ".csv") {
			continue
		}
		if !found ||
			a.ModifiedAt.After(best.ModifiedAt) ||
			(a.ModifiedAt.Equal(best.ModifiedAt) && a.Name > best.Name) {
			best = a
			found = true
		}
	}
	return best, found
}
