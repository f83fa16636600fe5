package trends

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	serpAPIDefaultURL       = "https://serpapi.com/search.json"
	serpAPIMaxResponseBytes = 4 << 20 // 4MB
	serpAPIClientTimeout    = 30 * time.Second
)

// SerpAPIProvider 通过 SerpApi 的 google_trends_trending_now 引擎拉取 Google 实时热搜
type SerpAPIProvider struct {
	apiKey  string
	geo     string
	baseURL string
	client  *http.Client
}

func NewSerpAPIProvider(apiKey, geo string) *SerpAPIProvider {
	if geo == "" {
		geo = "IN"
	}
	return &SerpAPIProvider{
		apiKey:  apiKey,
		geo:     geo,
		baseURL: serpAPIDefaultURL,
		client:  &http.Client{Timeout: serpAPIClientTimeout},
	}
}

type serpAPIResp struct {
	Error            string            `json:"error"`
	TrendingSearches []json.RawMessage `json:"trending_searches"`
	TrendingNow      []json.RawMessage `json:"trending_now"`
}

type serpAPITrend struct {
	Query          string   `json:"query"`
	Title          string   `json:"title"`
	TrendBreakdown []string `json:"trend_breakdown"`
}

func (p *SerpAPIProvider) FetchTrendingTopics(ctx context.Context) ([]Topic, error) {
	q := url.Values{}
	q.Set("engine", "google_trends_trending_now")
	q.Set("geo", p.geo)
	q.Set("api_key", p.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("serpapi: build request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serpapi: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, serpAPIMaxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("serpapi: read body: %w", err)
	}

	var data serpAPIResp
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("serpapi: decode (status %d): %w", resp.StatusCode, err)
	}
	if data.Error != "" {
		return nil, fmt.Errorf("serpapi: %s", data.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serpapi: unexpected status %d", resp.StatusCode)
	}

	entries := data.TrendingSearches
	if entries == nil {
		entries = data.TrendingNow
	}
	if entries == nil {
		return nil, errors.New("serpapi: unexpected response format, no trending_searches")
	}

	raw := make([]Topic, 0, len(entries))
	for _, e := range entries {
		raw = append(raw, decodeSerpAPITrend(e))
	}
	return rankTopics(raw), nil
}

// decodeSerpAPITrend 兼容两种形态：字符串，或带 query/title 的对象
func decodeSerpAPITrend(e json.RawMessage) Topic {
	var s string
	if err := json.Unmarshal(e, &s); err == nil {
		return Topic{Query: s}
	}
	var t serpAPITrend
	if err := json.Unmarshal(e, &t); err != nil {
		return Topic{}
	}
	query := t.Query
	if strings.TrimSpace(t.Title) != "" {
		query = t.Title
	}
	return Topic{Query: query, Breakdown: t.TrendBreakdown}
}
