package enrich

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/FAbreu6/TP3-IS/cmd/processor/internal/ratelimit"
	"github.com/FAbreu6/TP3-IS/pkg/models"
)

// Batcher deduplicates symbols, batches external lookups through the retry
// executor and merges results. Every requested symbol appears in the output
// map; permanently failed lookups are emitted with default values.
type Batcher struct {
	client    MarketClient
	exec      *ratelimit.Executor
	batchSize int
	logger    *zap.Logger

	mu    sync.Mutex
	cache map[string]models.Enrichment

	store CacheStore // optional, nil disables persistence
}

func NewBatcher(client MarketClient, exec *ratelimit.Executor, batchSize int, store CacheStore, logger *zap.Logger) *Batcher {
	b := &Batcher{
		client:    client,
		exec:      exec,
		batchSize: batchSize,
		logger:    logger,
		cache:     make(map[string]models.Enrichment),
		store:     store,
	}

	if store != nil {
		warm, err := store.LoadAll(context.Background())
		if err != nil {
			logger.Warn("Could not warm-start enrichment cache", zap.Error(err))
		} else if len(warm) > 0 {
			b.cache = warm
			logger.Info("Enrichment cache warm-started", zap.Int("entries", len(warm)))
		}
	}
	return b
}

// Enrich resolves metadata for the given symbols. Symbols are upper-cased
// and deduplicated; cached entries are reused for the process lifetime.
func (b *Batcher) Enrich(ctx context.Context, symbols []string) map[string]models.Enrichment {
	out := make(map[string]models.Enrichment)
	var misses []string
	seen := make(map[string]bool)

	b.mu.Lock()
	for _, s := range symbols {
		sym := strings.ToUpper(strings.TrimSpace(s))
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		if enr, ok := b.cache[sym]; ok {
			out[sym] = enr
		} else {
			misses = append(misses, sym)
		}
	}
	b.mu.Unlock()

	for start := 0; start < len(misses); start += b.batchSize {
		end := start + b.batchSize
		if end > len(misses) {
			end = len(misses)
		}
		batch := misses[start:end]

		var fetched map[string]models.Enrichment
		err := b.exec.Do(ctx, "enrichment_batch", func(ctx context.Context) error {
			var ferr error
			fetched, ferr = b.client.FetchBatch(ctx, batch)
			return ferr
		})

		// Partial batch failure does not abort the other batches, and a
		// symbol is never silently omitted from the output.
		if err != nil {
			b.logger.Warn("Enrichment batch failed, defaulting symbols",
				zap.Strings("symbols", batch), zap.Error(err))
		}
		for _, sym := range batch {
			enr, ok := fetched[sym]
			if err != nil || !ok {
				if err == nil {
					b.logger.Warn("Symbol missing from enrichment response, defaulting",
						zap.String("symbol", sym))
				}
				out[sym] = defaultEnrichment(sym)
				continue
			}

			out[sym] = enr
			b.mu.Lock()
			b.cache[sym] = enr
			b.mu.Unlock()
			if b.store != nil {
				if serr := b.store.Save(ctx, sym, enr); serr != nil {
					b.logger.Debug("Could not persist enrichment entry", zap.String("symbol", sym), zap.Error(serr))
				}
			}
		}
	}

	return out
}

func defaultEnrichment(symbol string) models.Enrichment {
	return models.Enrichment{
		Name:              symbol,
		Rank:              "0",
		MarketCap:         "0",
		CirculatingSupply: "0",
		Volume24h:         "0",
		Category:          "",
		Defaulted:         true,
	}
}
