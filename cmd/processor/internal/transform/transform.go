package transform

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/FAbreu6/TP3-IS/pkg/models"
)

var (
	ErrHeaderMismatch   = errors.New("csv header does not match expected schema")
	ErrEmptyInput       = errors.New("csv has no data rows")
	ErrRowCountMismatch = errors.New("transformed row count does not match input")
)

// expected source schema, any column order
var expectedHeader = []string{"symbol", "source_price", "change_24h", "timestamp"}

// canonical output schema
var canonicalHeader = []string{
	"symbol", "price", "change_24h_pct", "change_24h_abs", "timestamp",
	"name", "rank", "market_cap", "circulating_supply", "volume_24h", "category",
}

// SourceRow is one parsed line of the raw crawler CSV.
type SourceRow struct {
	Symbol      string
	SourcePrice string
	Change24h   string
	Timestamp   string
}

type Engine struct {
	logger *zap.Logger
}

func NewEngine(logger *zap.Logger) *Engine {
	return &Engine{logger: logger}
}

// ValidateHeader checks exact set equality with the expected schema:
// same cardinality, same names, any order.
func ValidateHeader(header []string) error {
	if len(header) != len(expectedHeader) {
		return fmt.Errorf("%w: got %d columns, want %d", ErrHeaderMismatch, len(header), len(expectedHeader))
	}
	seen := make(map[string]bool, len(header))
	for _, col := range header {
		seen[strings.TrimSpace(col)] = true
	}
	for _, col := range expectedHeader {
		if !seen[col] {
			return fmt.Errorf("%w: missing column %q", ErrHeaderMismatch, col)
		}
	}
	if len(seen) != len(expectedHeader) {
		return fmt.Errorf("%w: duplicate columns", ErrHeaderMismatch)
	}
	return nil
}

// Parse validates the header and decodes the data rows. Duplicate symbols
// are preserved.
func (e *Engine) Parse(raw []byte) ([]SourceRow, error) {
	r := csv.NewReader(bytes.NewReader(raw))
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmptyInput, err)
	}
	if err := ValidateHeader(header); err != nil {
		return nil, err
	}

	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[strings.TrimSpace(col)] = i
	}

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv rows: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrEmptyInput
	}

	rows := make([]SourceRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, SourceRow{
			Symbol:      strings.TrimSpace(rec[idx["symbol"]]),
			SourcePrice: strings.TrimSpace(rec[idx["source_price"]]),
			Change24h:   strings.TrimSpace(rec[idx["change_24h"]]),
			Timestamp:   strings.TrimSpace(rec[idx["timestamp"]]),
		})
	}
	return rows, nil
}

// Transform merges enrichment into each source row by the row's own symbol.
// Missing enrichment defaults every numeric field to "0" and name to the
// symbol. One output row per input row, checked.
func (e *Engine) Transform(rows []SourceRow, enrichment map[string]models.Enrichment) ([]models.CanonicalRow, error) {
	out := make([]models.CanonicalRow, 0, len(rows))

	for _, row := range rows {
		canon := models.CanonicalRow{
			Symbol:       row.Symbol,
			Price:        row.SourcePrice,
			Change24hPct: row.Change24h,
			Change24hAbs: absoluteChange(row.SourcePrice, row.Change24h),
			Timestamp:    row.Timestamp,
		}

		if enr, ok := enrichment[strings.ToUpper(row.Symbol)]; ok {
			canon.Name = enr.Name
			canon.Rank = enr.Rank
			canon.MarketCap = enr.MarketCap
			canon.CirculatingSupply = enr.CirculatingSupply
			canon.Volume24h = enr.Volume24h
			canon.Category = enr.Category
		} else {
			e.logger.Warn("No enrichment for symbol, defaulting", zap.String("symbol", row.Symbol))
			canon.Name = row.Symbol
			canon.Rank = "0"
			canon.MarketCap = "0"
			canon.CirculatingSupply = "0"
			canon.Volume24h = "0"
			canon.Category = ""
		}

		out = append(out, canon)
	}

	if len(out) != len(rows) {
		return nil, fmt.Errorf("%w: %d != %d", ErrRowCountMismatch, len(out), len(rows))
	}
	return out, nil
}

// Serialize writes the canonical CSV. encoding/csv quotes a field when it
// contains the separator, a quote or a line break, doubling embedded quotes.
func Serialize(rows []models.CanonicalRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(canonicalHeader); err != nil {
		return nil, err
	}
	for _, r := range rows {
		record := []string{
			r.Symbol, r.Price, r.Change24hPct, r.Change24hAbs, r.Timestamp,
			r.Name, r.Rank, r.MarketCap, r.CirculatingSupply, r.Volume24h, r.Category,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// absoluteChange derives the 24h move in currency units from the current
// price and the percentage change. Unparseable inputs yield "0".
func absoluteChange(price, changePct string) string {
	p, err1 := strconv.ParseFloat(price, 64)
	c, err2 := strconv.ParseFloat(changePct, 64)
	if err1 != nil || err2 != nil {
		return "0"
	}
	return strconv.FormatFloat(p*c/100, 'f', 2, 64)
}
