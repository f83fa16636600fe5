package collector

import (
	"context"
	"time"
)

// RawArticle 采集源输出的原始文章，发出后不再修改
type RawArticle struct {
	Title       string
	Description string
	// 可选，空字符串表示没有配图
	ImageURL  string
	Source    string
	FetchedAt time.Time
}

// Scraper 抽象每一个新闻源。返回空切片是合法结果，error 表示该源本轮失败
type Scraper interface {
	Name() string
	Scrape(ctx context.Context) ([]RawArticle, error)
}
