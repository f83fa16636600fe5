package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

const htmlRequestTimeout = 15 * time.Second

// HTMLSelectors 描述列表页的 DOM 结构，Item 为每条新闻的容器
type HTMLSelectors struct {
	Item        string `yaml:"item"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Image       string `yaml:"image"`
}

// HTMLScraper 用 colly 抓取没有 RSS 的站点，按配置的 CSS 选择器解析
type HTMLScraper struct {
	name      string
	url       string
	userAgent string
	sel       HTMLSelectors
	now       func() time.Time
}

func NewHTMLScraper(name, url, userAgent string, sel HTMLSelectors) *HTMLScraper {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &HTMLScraper{name: name, url: url, userAgent: userAgent, sel: sel, now: time.Now}
}

func (h *HTMLScraper) Name() string {
	return h.name
}

func (h *HTMLScraper) Scrape(ctx context.Context) ([]RawArticle, error) {
	c := colly.NewCollector(colly.UserAgent(h.userAgent))
	timeout := htmlRequestTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left > 0 && left < timeout {
			timeout = left
		}
	}
	c.SetRequestTimeout(timeout)

	fetchedAt := h.now()
	results := make([]RawArticle, 0, 32)

	// 页面结构可能调整，此处基于配置的选择器做"尽力而为"的解析
	c.OnHTML(h.sel.Item, func(e *colly.HTMLElement) {
		if ctx.Err() != nil {
			return
		}
		title := cleanText(e.ChildText(h.sel.Title))
		if title == "" {
			return
		}

		desc := ""
		if h.sel.Description != "" {
			desc = cleanText(e.ChildText(h.sel.Description))
		}
		if desc == "" {
			desc = longestParagraph(e, title)
		}

		img := ""
		if h.sel.Image != "" {
			src := e.ChildAttr(h.sel.Image, "src")
			if src == "" {
				src = e.ChildAttr(h.sel.Image, "data-src")
			}
			if src != "" {
				img = e.Request.AbsoluteURL(src)
			}
		}

		results = append(results, RawArticle{
			Title:       title,
			Description: desc,
			ImageURL:    img,
			Source:      h.name,
			FetchedAt:   fetchedAt,
		})
	})

	if err := c.Visit(h.url); err != nil {
		return nil, fmt.Errorf("html %s: %w", h.name, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("html %s: %w", h.name, err)
	}
	return results, nil
}

// longestParagraph 兜底：取条目内除标题外最长的段落作为简介
func longestParagraph(e *colly.HTMLElement, title string) string {
	var best string
	e.DOM.Find("p").Each(func(_ int, s *goquery.Selection) {
		t := cleanText(s.Text())
		if t == "" || t == title {
			return
		}
		if len(t) > len(best) {
			best = t
		}
	})
	return best
}

// cleanText 折叠多余空白
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
