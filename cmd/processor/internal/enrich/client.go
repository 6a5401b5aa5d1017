package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/FAbreu6/TP3-IS/pkg/models"
)

// MarketClient looks up market metadata for a batch of symbols.
type MarketClient interface {
	FetchBatch(ctx context.Context, symbols []string) (map[string]models.Enrichment, error)
}

// CoinGeckoClient queries the CoinGecko markets endpoint.
type CoinGeckoClient struct {
	baseURL string
	client  *http.Client
}

func NewCoinGeckoClient(baseURL string, timeout time.Duration) *CoinGeckoClient {
	return &CoinGeckoClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type marketEntry struct {
	Symbol            string      `json:"symbol"`
	Name              string      `json:"name"`
	MarketCapRank     json.Number `json:"market_cap_rank"`
	MarketCap         json.Number `json:"market_cap"`
	CirculatingSupply json.Number `json:"circulating_supply"`
	TotalVolume       json.Number `json:"total_volume"`
}

// FetchBatch returns enrichment keyed by upper-cased symbol. Symbols absent
// from the response are simply absent from the map.
func (c *CoinGeckoClient) FetchBatch(ctx context.Context, symbols []string) (map[string]models.Enrichment, error) {
	lower := make([]string, len(symbols))
	for i, s := range symbols {
		lower[i] = strings.ToLower(s)
	}

	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("symbols", strings.Join(lower, ","))
	q.Set("per_page", fmt.Sprintf("%d", len(symbols)))

	reqURL := fmt.Sprintf("%s/coins/markets?%s", c.baseURL, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("market lookup failed: HTTP %d", resp.StatusCode)
	}

	var entries []marketEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("market lookup decode: %w", err)
	}

	out := make(map[string]models.Enrichment, len(entries))
	for _, e := range entries {
		out[strings.ToUpper(e.Symbol)] = models.Enrichment{
			Name:              e.Name,
			Rank:              numberOrZero(e.MarketCapRank),
			MarketCap:         numberOrZero(e.MarketCap),
			CirculatingSupply: numberOrZero(e.CirculatingSupply),
			Volume24h:         numberOrZero(e.TotalVolume),
			Category:          "cryptocurrency",
		}
	}
	return out, nil
}

func numberOrZero(n json.Number) string {
	if n.String() == "" {
		return "0"
	}
	return n.String()
}
