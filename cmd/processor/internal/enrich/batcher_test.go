package enrich_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/FAbreu6/TP3-IS/cmd/processor/internal/enrich"
	"github.com/FAbreu6/TP3-IS/cmd/processor/internal/ratelimit"
	"github.com/FAbreu6/TP3-IS/cmd/processor/internal/testutils"
	"github.com/FAbreu6/TP3-IS/pkg/models"
)

type scriptedClient struct {
	Mu      sync.Mutex
	Known   map[string]models.Enrichment
	Batches [][]string
	Fail    bool
}

func (c *scriptedClient) FetchBatch(ctx context.Context, symbols []string) (map[string]models.Enrichment, error) {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	c.Batches = append(c.Batches, symbols)
	if c.Fail {
		return nil, errors.New("upstream down")
	}
	out := make(map[string]models.Enrichment)
	for _, s := range symbols {
		if enr, ok := c.Known[s]; ok {
			out[s] = enr
		}
	}
	return out, nil
}

func newExecutor() *ratelimit.Executor {
	clock := &testutils.MockClock{CurrentTime: time.Unix(0, 0)}
	return ratelimit.NewExecutor(ratelimit.NewLimiter(100, time.Second, clock), 1, time.Millisecond, clock, zap.NewNop())
}

func TestBatcher_EverySymbolPresent(t *testing.T) {
	client := &scriptedClient{Known: map[string]models.Enrichment{
		"BTC": {Name: "Bitcoin", Rank: "1"},
	}}
	b := enrich.NewBatcher(client, newExecutor(), 20, nil, zap.NewNop())

	out := b.Enrich(context.Background(), []string{"BTC", "NOPE"})

	if len(out) != 2 {
		t.Fatalf("Every requested symbol must appear in the output, got %d entries", len(out))
	}
	if out["BTC"].Name != "Bitcoin" {
		t.Errorf("BTC should be enriched, got %+v", out["BTC"])
	}
	if !out["NOPE"].Defaulted || out["NOPE"].Name != "NOPE" || out["NOPE"].Rank != "0" {
		t.Errorf("Unknown symbol should be defaulted, got %+v", out["NOPE"])
	}
}

func TestBatcher_PermanentFailureDefaults(t *testing.T) {
	client := &scriptedClient{Fail: true}
	b := enrich.NewBatcher(client, newExecutor(), 20, nil, zap.NewNop())

	out := b.Enrich(context.Background(), []string{"BTC", "ETH"})

	for _, sym := range []string{"BTC", "ETH"} {
		enr, ok := out[sym]
		if !ok {
			t.Fatalf("Symbol %s silently omitted", sym)
		}
		if !enr.Defaulted {
			t.Errorf("Symbol %s should carry default enrichment", sym)
		}
	}
}

func TestBatcher_SplitsIntoBatches(t *testing.T) {
	client := &scriptedClient{Known: map[string]models.Enrichment{}}
	b := enrich.NewBatcher(client, newExecutor(), 2, nil, zap.NewNop())

	b.Enrich(context.Background(), []string{"A1", "B2", "C3", "D4", "E5"})

	if len(client.Batches) != 3 {
		t.Fatalf("Expected 3 batches of size <= 2, got %d", len(client.Batches))
	}
	for _, batch := range client.Batches {
		if len(batch) > 2 {
			t.Errorf("Batch exceeds size limit: %v", batch)
		}
	}
}

func TestBatcher_CachesAcrossIterations(t *testing.T) {
	client := &scriptedClient{Known: map[string]models.Enrichment{
		"BTC": {Name: "Bitcoin"},
	}}
	b := enrich.NewBatcher(client, newExecutor(), 20, nil, zap.NewNop())

	b.Enrich(context.Background(), []string{"btc"})
	b.Enrich(context.Background(), []string{"BTC"})

	calls := 0
	for _, batch := range client.Batches {
		calls += len(batch)
	}
	if calls != 1 {
		t.Errorf("Cached symbol should be looked up once, got %d lookups", calls)
	}
}

func TestBatcher_FailedSymbolNotCached(t *testing.T) {
	client := &scriptedClient{Fail: true}
	b := enrich.NewBatcher(client, newExecutor(), 20, nil, zap.NewNop())

	b.Enrich(context.Background(), []string{"BTC"})

	client.Mu.Lock()
	client.Fail = false
	client.Known = map[string]models.Enrichment{"BTC": {Name: "Bitcoin"}}
	client.Mu.Unlock()

	out := b.Enrich(context.Background(), []string{"BTC"})
	if out["BTC"].Name != "Bitcoin" {
		t.Errorf("Defaulted symbol should be retried next iteration, got %+v", out["BTC"])
	}
}

func TestBatcher_DeduplicatesSymbols(t *testing.T) {
	client := &scriptedClient{Known: map[string]models.Enrichment{}}
	b := enrich.NewBatcher(client, newExecutor(), 20, nil, zap.NewNop())

	b.Enrich(context.Background(), []string{"btc", "BTC", " btc "})

	if len(client.Batches) != 1 || len(client.Batches[0]) != 1 {
		t.Errorf("Expected a single lookup for duplicate symbols, got %v", client.Batches)
	}
	if client.Batches[0][0] != "BTC" {
		t.Errorf("Symbols should be upper-cased, got %q", client.Batches[0][0])
	}
}
