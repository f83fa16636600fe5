package trends

import (
	"context"
	"strings"
)

// Topic 热搜话题。Rank 从 1 开始，1 表示最热，由 provider 返回顺序决定
type Topic struct {
	Query     string   `json:"query"`
	Rank      int      `json:"rank"`
	Breakdown []string `json:"breakdown,omitempty"`
}

// Provider 提供按热度排序的话题列表
type Provider interface {
	FetchTrendingTopics(ctx context.Context) ([]Topic, error)
}

// rankTopics 规范化 query（小写、去首尾空白、去掉 # 前缀），丢弃空 query。
// 排名取原始列表中的位置，被丢弃的条目不会让后面的话题前移
func rankTopics(raw []Topic) []Topic {
	out := make([]Topic, 0, len(raw))
	for i, t := range raw {
		q := normalizeQuery(t.Query)
		if q == "" {
			continue
		}
		var breakdown []string
		for _, b := range t.Breakdown {
			if b = normalizeQuery(b); b != "" {
				breakdown = append(breakdown, b)
			}
		}
		out = append(out, Topic{Query: q, Rank: i + 1, Breakdown: breakdown})
	}
	return out
}

func normalizeQuery(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "#")
	return strings.ToLower(strings.TrimSpace(s))
}
