package collector

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

const rssClientTimeout = 20 * time.Second

// RSSScraper 通过 gofeed 解析 RSS/Atom，一个实例对应一个 feed 地址
type RSSScraper struct {
	name   string
	url    string
	parser *gofeed.Parser
	now    func() time.Time
}

func NewRSSScraper(name, url, userAgent string) *RSSScraper {
	p := gofeed.NewParser()
	p.Client = &http.Client{Timeout: rssClientTimeout}
	if userAgent != "" {
		p.UserAgent = userAgent
	}
	return &RSSScraper{name: name, url: url, parser: p, now: time.Now}
}

func (r *RSSScraper) Name() string {
	return r.name
}

func (r *RSSScraper) Scrape(ctx context.Context) ([]RawArticle, error) {
	feed, err := r.parser.ParseURLWithContext(r.url, ctx)
	if err != nil {
		return nil, fmt.Errorf("rss %s: %w", r.name, err)
	}

	fetchedAt := r.now()
	results := make([]RawArticle, 0, len(feed.Items))
	for _, it := range feed.Items {
		if it == nil {
			continue
		}
		title := strings.TrimSpace(it.Title)
		if title == "" {
			continue
		}
		results = append(results, RawArticle{
			Title:       title,
			Description: strings.TrimSpace(it.Description),
			ImageURL:    itemImageURL(it),
			Source:      r.name,
			FetchedAt:   fetchedAt,
		})
	}
	return results, nil
}

// itemImageURL 依次尝试 media:content、media:thumbnail、图片类型的 enclosure 和 <image>
func itemImageURL(it *gofeed.Item) string {
	if media, ok := it.Extensions["media"]; ok {
		for _, key := range []string{"content", "thumbnail"} {
			for _, ext := range media[key] {
				if u := strings.TrimSpace(ext.Attrs["url"]); u != "" {
					return u
				}
			}
		}
	}
	for _, enc := range it.Enclosures {
		if enc != nil && enc.URL != "" && strings.HasPrefix(enc.Type, "image/") {
			return enc.URL
		}
	}
	if it.Image != nil {
		return it.Image.URL
	}
	return ""
}
