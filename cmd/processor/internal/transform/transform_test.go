package transform_test

import (
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/FAbreu6/TP3-IS/cmd/processor/internal/transform"
	"github.com/FAbreu6/TP3-IS/pkg/models"
)

func TestValidateHeader_AnyOrder(t *testing.T) {
	headers := [][]string{
		{"symbol", "source_price", "change_24h", "timestamp"},
		{"timestamp", "symbol", "change_24h", "source_price"},
		{"change_24h", "timestamp", "source_price", "symbol"},
	}
	for _, h := range headers {
		if err := transform.ValidateHeader(h); err != nil {
			t.Errorf("Header %v should pass, got %v", h, err)
		}
	}
}

func TestValidateHeader_Mismatch(t *testing.T) {
	cases := [][]string{
		{"symbol", "source_price", "change_24h"},                          // missing
		{"symbol", "source_price", "change_24h", "timestamp", "extra"},    // extra
		{"symbol", "source_price", "change_24h", "observed_at"},           // renamed
		{"symbol", "symbol", "change_24h", "timestamp"},                   // duplicate
	}
	for _, h := range cases {
		err := transform.ValidateHeader(h)
		if !errors.Is(err, transform.ErrHeaderMismatch) {
			t.Errorf("Header %v should fail with ErrHeaderMismatch, got %v", h, err)
		}
	}
}

func TestParse_EmptyInput(t *testing.T) {
	engine := transform.NewEngine(zap.NewNop())

	_, err := engine.Parse([]byte("symbol,source_price,change_24h,timestamp\n"))
	if !errors.Is(err, transform.ErrEmptyInput) {
		t.Errorf("Expected ErrEmptyInput for header-only CSV, got %v", err)
	}
}

func TestParse_ColumnOrderIndependent(t *testing.T) {
	engine := transform.NewEngine(zap.NewNop())

	csv := "timestamp,symbol,change_24h,source_price\n2024-01-01T00:00:00Z,BTC,2.5,50000.00\n"
	rows, err := engine.Parse([]byte(csv))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("Expected 1 row, got %d", len(rows))
	}
	if rows[0].Symbol != "BTC" || rows[0].SourcePrice != "50000.00" {
		t.Errorf("Columns mapped incorrectly: %+v", rows[0])
	}
}

func TestTransform_RowCountInvariant(t *testing.T) {
	engine := transform.NewEngine(zap.NewNop())

	// Duplicate keys and fully-missing enrichment.
	rows := []transform.SourceRow{
		{Symbol: "BTC", SourcePrice: "50000", Change24h: "2.5", Timestamp: "t1"},
		{Symbol: "BTC", SourcePrice: "50010", Change24h: "2.6", Timestamp: "t2"},
		{Symbol: "UNKNOWN", SourcePrice: "1", Change24h: "0", Timestamp: "t3"},
	}

	out, err := engine.Transform(rows, map[string]models.Enrichment{})
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	if len(out) != len(rows) {
		t.Fatalf("Row count invariant violated: %d != %d", len(out), len(rows))
	}
}

func TestTransform_MissingEnrichmentDefaults(t *testing.T) {
	engine := transform.NewEngine(zap.NewNop())

	rows := []transform.SourceRow{{Symbol: "XYZ", SourcePrice: "10", Change24h: "1", Timestamp: "t"}}
	out, err := engine.Transform(rows, nil)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}

	row := out[0]
	if row.Name != "XYZ" {
		t.Errorf("Name should default to symbol, got %q", row.Name)
	}
	for field, val := range map[string]string{
		"rank": row.Rank, "market_cap": row.MarketCap,
		"circulating_supply": row.CirculatingSupply, "volume_24h": row.Volume24h,
	} {
		if val != "0" {
			t.Errorf("%s should default to \"0\", got %q", field, val)
		}
	}
}

func TestTransform_MergesEnrichment(t *testing.T) {
	engine := transform.NewEngine(zap.NewNop())

	rows := []transform.SourceRow{{Symbol: "btc", SourcePrice: "50000", Change24h: "2.5", Timestamp: "t"}}
	enrichment := map[string]models.Enrichment{
		"BTC": {Name: "Bitcoin", Rank: "1", MarketCap: "900000000000", CirculatingSupply: "19000000", Volume24h: "30000000000", Category: "cryptocurrency"},
	}

	out, err := engine.Transform(rows, enrichment)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	if out[0].Name != "Bitcoin" || out[0].Rank != "1" {
		t.Errorf("Enrichment not merged: %+v", out[0])
	}
	if out[0].Change24hAbs != "1250.00" {
		t.Errorf("Expected absolute change 1250.00, got %q", out[0].Change24hAbs)
	}
}

func TestSerialize_Escaping(t *testing.T) {
	rows := []models.CanonicalRow{{
		Symbol: "BTC", Price: "1", Change24hPct: "0", Change24hAbs: "0", Timestamp: "t",
		Name: `Coin, "The" One` + "\nsecond line", Rank: "1",
		MarketCap: "0", CirculatingSupply: "0", Volume24h: "0", Category: "c",
	}}

	out, err := transform.Serialize(rows)
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	s := string(out)
	if !strings.Contains(s, `"Coin, ""The"" One`) {
		t.Errorf("Field with separator/quotes should be quoted with doubled quotes, got:\n%s", s)
	}

	lines := strings.Split(strings.TrimSpace(s), "\n")
	if !strings.HasPrefix(lines[0], "symbol,price,change_24h_pct") {
		t.Errorf("Unexpected header: %s", lines[0])
	}
}
