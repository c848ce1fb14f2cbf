// Package discovery is the external collaborator that feeds the
// orchestrator its initial instrument list at startup. It is explicitly a
// cold-path boundary shim, not part of the latency-sensitive core: its
// only contract with the core is "a finite list of UTF-8 byte strings".
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// refreshRate caps how often Discover is allowed to actually hit the
// network: callers may poll on whatever schedule they like, but repeated
// calls inside one second collapse onto the limiter's wait.
const refreshRate = 1.0 // requests per second

// tickerEntry is the subset of a 24h-ticker response this package reads.
type tickerEntry struct {
	Symbol      string `json:"symbol"`
	QuoteVolume string `json:"quoteVolume"`
}

// Fetcher discovers a filtered instrument list from a single HTTP
// endpoint returning a JSON array of tickerEntry.
type Fetcher struct {
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
}

// NewFetcher builds a Fetcher against the given 24h-ticker endpoint.
func NewFetcher(endpoint string) *Fetcher {
	return &Fetcher{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		limiter:  rate.NewLimiter(rate.Limit(refreshRate), 1),
	}
}

// Discover fetches the ticker list and returns the symbols whose quote
// volume is at least minVolume24h. Malformed or unparseable entries are
// skipped rather than failing the whole call.
func (f *Fetcher) Discover(ctx context.Context, minVolume24h float64) ([]string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("discovery: rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("discovery: build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("discovery: fetch %s: %w", f.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discovery: %s returned HTTP %d", f.endpoint, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("discovery: read response: %w", err)
	}

	var entries []tickerEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("discovery: parse response: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Symbol == "" {
			continue
		}
		volume, err := strconv.ParseFloat(e.QuoteVolume, 64)
		if err != nil {
			continue
		}
		if volume >= minVolume24h {
			names = append(names, e.Symbol)
		}
	}
	return names, nil
}
