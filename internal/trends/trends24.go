package trends

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

const (
	trends24DefaultURL   = "https://trends24.in/"
	trends24MaxItems     = 50
	trends24MaxBodyBytes = 2 << 20 // 2MB，防止超大 HTML 导致 DoS
	trends24Timeout      = 15 * time.Second
	browserUserAgent     = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// <a href="https://twitter.com/search?q=..." ...>标题</a>（class 可有可无、顺序任意）
var trendLinkRe = regexp.MustCompile(`<a\s+[^>]*href="(https://(?:twitter|x)\.com/search\?q=[^"]+)"[^>]*>([^<]+)</a>`)

// Trends24Provider 抓取 X (Twitter) 热搜，数据来自 trends24.in。geo 为空时取全球榜
type Trends24Provider struct {
	pageURL string
	client  *http.Client
}

// NewTrends24Provider geo 形如 "india"、"united-states"
func NewTrends24Provider(geo string) *Trends24Provider {
	geo = strings.Trim(strings.ToLower(strings.TrimSpace(geo)), "/")
	if geo == "in" {
		geo = "india"
	}
	page := trends24DefaultURL
	if geo != "" {
		page += geo + "/"
	}
	return &Trends24Provider{pageURL: page, client: &http.Client{Timeout: trends24Timeout}}
}

func (p *Trends24Provider) FetchTrendingTopics(ctx context.Context) ([]Topic, error) {
	titles, err := p.fetchWithColly(ctx)
	if len(titles) == 0 {
		// colly 解析不到时退回到正则
		var httpErr error
		titles, httpErr = p.fetchWithHTTP(ctx)
		if httpErr != nil {
			return nil, errors.Join(err, httpErr)
		}
	}
	if len(titles) > trends24MaxItems {
		titles = titles[:trends24MaxItems]
	}

	raw := make([]Topic, 0, len(titles))
	for _, t := range titles {
		raw = append(raw, Topic{Query: t})
	}
	return rankTopics(raw), nil
}

func (p *Trends24Provider) fetchWithColly(ctx context.Context) ([]string, error) {
	c := colly.NewCollector(colly.UserAgent(browserUserAgent))
	c.SetRequestTimeout(trends24Timeout)

	var list []string
	seen := make(map[string]bool)

	c.OnHTML("a.trend-link, a[href*='twitter.com/search'], a[href*='x.com/search']", func(e *colly.HTMLElement) {
		if ctx.Err() != nil {
			return
		}
		// 页面上同一榜单会按小时重复出现，只保留第一次（最新）的顺序
		title := strings.TrimSpace(e.Text)
		if title == "" || len(title) > 200 || seen[title] {
			return
		}
		seen[title] = true
		list = append(list, title)
	})

	if err := c.Visit(p.pageURL); err != nil {
		return nil, fmt.Errorf("trends24 (colly): %w", err)
	}
	return list, nil
}

// fetchWithHTTP 备用：直接 GET 后用正则从 HTML 中提取 trend 链接
func (p *Trends24Provider) fetchWithHTTP(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", browserUserAgent)
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trends24 (http): %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("trends24 (http): unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, trends24MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("trends24 (http): read body: %w", err)
	}
	return parseTrendLinks(string(body)), nil
}

// parseTrendLinks 优先取链接文本，文本为空时用 q= 参数解码
func parseTrendLinks(html string) []string {
	seen := make(map[string]bool)
	var list []string
	for _, m := range trendLinkRe.FindAllStringSubmatch(html, -1) {
		title := strings.TrimSpace(m[2])
		if title == "" {
			if u, err := url.Parse(m[1]); err == nil {
				title = strings.TrimSpace(u.Query().Get("q"))
			}
		}
		if title == "" || len(title) > 200 || seen[title] {
			continue
		}
		seen[title] = true
		list = append(list, title)
	}
	return list
}
