package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	hnDefaultBaseURL    = "https://hacker-news.firebaseio.com/v0"
	hnDefaultMaxItems   = 30
	hnMaxResponseBytes  = 1 << 20 // 1MB
	hnConcurrency       = 10
	hnItemClientTimeout = 5 * time.Second
)

var htmlTagRe = regexp.MustCompile(`<[^>]+>`)

// HackerNewsFetcher 通过官方 Firebase API 抓取 Hacker News 热门故事
type HackerNewsFetcher struct {
	name     string
	baseURL  string
	maxItems int
	client   *http.Client
	now      func() time.Time
}

func NewHackerNewsFetcher(name, baseURL string, maxItems int) *HackerNewsFetcher {
	if name == "" {
		name = "Hacker News"
	}
	if baseURL == "" {
		baseURL = hnDefaultBaseURL
	}
	if maxItems <= 0 {
		maxItems = hnDefaultMaxItems
	}
	return &HackerNewsFetcher{
		name:     name,
		baseURL:  strings.TrimRight(baseURL, "/"),
		maxItems: maxItems,
		client:   &http.Client{Timeout: hnItemClientTimeout},
		now:      time.Now,
	}
}

func (h *HackerNewsFetcher) Name() string {
	return h.name
}

type hnItem struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Text  string `json:"text"`
	Type  string `json:"type"`
}

func (h *HackerNewsFetcher) Scrape(ctx context.Context) ([]RawArticle, error) {
	var ids []int
	if err := h.getJSON(ctx, h.baseURL+"/topstories.json", &ids); err != nil {
		return nil, fmt.Errorf("hackernews: fetch top stories: %w", err)
	}
	if len(ids) > h.maxItems {
		ids = ids[:h.maxItems]
	}

	type indexedItem struct {
		idx  int
		item hnItem
	}

	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		sem   = make(chan struct{}, hnConcurrency)
		items = make([]indexedItem, 0, len(ids))
	)

	for i, id := range ids {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx, id int) {
			defer wg.Done()
			defer func() { <-sem }()

			var it hnItem
			if err := h.getJSON(ctx, fmt.Sprintf("%s/item/%d.json", h.baseURL, id), &it); err != nil {
				// 单条失败不影响整体
				return
			}
			if it.Title == "" || it.Type != "story" {
				return
			}

			mu.Lock()
			items = append(items, indexedItem{idx: idx, item: it})
			mu.Unlock()
		}(i, id)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("hackernews: %w", err)
	}

	// 并发拉取打乱了顺序，按榜单位置还原
	sort.Slice(items, func(i, j int) bool { return items[i].idx < items[j].idx })

	fetchedAt := h.now()
	results := make([]RawArticle, 0, len(items))
	for _, ii := range items {
		results = append(results, RawArticle{
			Title:       strings.TrimSpace(ii.item.Title),
			Description: stripHTML(ii.item.Text),
			Source:      h.name,
			FetchedAt:   fetchedAt,
		})
	}
	return results, nil
}

func (h *HackerNewsFetcher) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(io.LimitReader(resp.Body, hnMaxResponseBytes)).Decode(out)
}

func stripHTML(s string) string {
	s = htmlTagRe.ReplaceAllString(s, " ")
	return cleanText(html.UnescapeString(s))
}
