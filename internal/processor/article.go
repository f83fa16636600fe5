package processor

import (
	"strings"
	"time"

	"github.com/LJTian/TrendingNews/internal/collector"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Article 是通过热搜匹配的候选文章，也是写入存储层的统一结构
type Article struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ImageURL    string    `json:"image_url,omitempty"`
	Source      string    `json:"source"`
	FetchedAt   time.Time `json:"fetched_at"`
	// Rank 直接沿用匹配话题的排名，不重新计算
	Rank     int       `json:"rank"`
	Topic    string    `json:"topic"`
	NewsID   string    `json:"news_id"`
	StoredAt time.Time `json:"stored_at"`
}

// NewArticle 由原始文章和匹配结果构造候选文章，NewsID 稍后由 AssignID 填充
func NewArticle(raw collector.RawArticle, m TrendMatch) Article {
	return Article{
		Title:       raw.Title,
		Description: raw.Description,
		ImageURL:    raw.ImageURL,
		Source:      raw.Source,
		FetchedAt:   raw.FetchedAt,
		Rank:        m.Topic.Rank,
		Topic:       m.Topic.Query,
	}
}

// lower 使用 Unicode 规则转小写。cases.Caser 不能并发复用，每次新建
func lower(s string) string {
	return cases.Lower(language.Und).String(s)
}

func words(s string) []string {
	return strings.Fields(lower(s))
}
