package poisource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/FACorreiaa/go-trip-studio/internal/types"
)

// SearchProvider is the live external POI search. It is rate-limited and
// slow relative to typical HTTP timeouts; callers treat it as best-effort.
type SearchProvider interface {
	Search(ctx context.Context, area, category string, limit int) ([]types.POICandidate, error)
}

var _ SearchProvider = (*HTTPSearchProvider)(nil)

// HTTPSearchProvider talks to an external place-search API. Requests pass
// through a client-side rate limiter so planning bursts cannot exhaust the
// provider quota.
type HTTPSearchProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
}

func NewHTTPSearchProvider(baseURL, apiKey string, timeout time.Duration, rps int) *HTTPSearchProvider {
	if rps <= 0 {
		rps = 5
	}
	return &HTTPSearchProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}
}

type searchResponse struct {
	Results []struct {
		ID          string   `json:"id"`
		Name        string   `json:"name"`
		Category    string   `json:"category"`
		Latitude    float64  `json:"latitude"`
		Longitude   float64  `json:"longitude"`
		Tags        []string `json:"tags"`
		Rating      float64  `json:"rating"`
		PriceTier   string   `json:"price_tier"`
		OpenMinute  int      `json:"open_minute"`
		CloseMinute int      `json:"close_minute"`
	} `json:"results"`
}

func (p *HTTPSearchProvider) Search(ctx context.Context, area, category string, limit int) ([]types.POICandidate, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	q := url.Values{}
	q.Set("area", area)
	q.Set("category", category)
	q.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("live search call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("live search returned status %d", resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	candidates := make([]types.POICandidate, 0, len(body.Results))
	for _, r := range body.Results {
		candidates = append(candidates, types.POICandidate{
			ExternalID:  r.ID,
			Name:        r.Name,
			Category:    r.Category,
			Latitude:    r.Latitude,
			Longitude:   r.Longitude,
			Tags:        r.Tags,
			Rating:      r.Rating,
			PriceTier:   r.PriceTier,
			OpenMinute:  r.OpenMinute,
			CloseMinute: r.CloseMinute,
			Cached:      false,
		})
	}
	return candidates, nil
}
