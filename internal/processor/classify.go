package processor

import (
	"strings"
	"unicode/utf8"

	"github.com/LJTian/TrendingNews/internal/collector"
	"github.com/LJTian/TrendingNews/internal/trends"
)

// MatchKind 记录文章是通过话题本身还是相关词命中的
type MatchKind int

const (
	MatchQuery MatchKind = iota + 1
	MatchBreakdown
)

func (k MatchKind) String() string {
	switch k {
	case MatchQuery:
		return "query"
	case MatchBreakdown:
		return "breakdown"
	default:
		return "none"
	}
}

// TrendMatch 文章命中的唯一话题
type TrendMatch struct {
	Topic trends.Topic
	By    MatchKind
}

// Classify 按 topics 的给定顺序查找文章命中的第一个话题。
// 先对所有话题做 query 子串匹配，全部未命中再做 breakdown 子串匹配。
// 只有这两步能确定排名，模糊相关性见 Related
func Classify(article collector.RawArticle, topics []trends.Topic) (TrendMatch, bool) {
	text := articleText(article)

	for _, t := range topics {
		if q := lower(t.Query); q != "" && strings.Contains(text, q) {
			return TrendMatch{Topic: t, By: MatchQuery}, true
		}
	}
	for _, t := range topics {
		for _, b := range t.Breakdown {
			if b = lower(b); b != "" && strings.Contains(text, b) {
				return TrendMatch{Topic: t, By: MatchBreakdown}, true
			}
		}
	}
	return TrendMatch{}, false
}

// 短于 minRelatedWordLen 个字符的词和常见虚词不参与词级比较，
// 否则 "a"、"in" 这类词几乎被任何话题词包含
const minRelatedWordLen = 3

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "from": {}, "are": {},
	"was": {}, "has": {}, "its": {}, "but": {}, "not": {}, "you": {},
}

// Related 是更宽松的相关性判断：子串命中，或标题中任一词与话题中任一词相似/互相包含。
// 它无法给出排名，只用于统计
func Related(article collector.RawArticle, topics []trends.Topic) bool {
	text := articleText(article)
	for _, t := range topics {
		if q := lower(t.Query); q != "" && strings.Contains(text, q) {
			return true
		}
	}

	titleWords := relatedWords(article.Title)
	for _, t := range topics {
		for _, tw := range relatedWords(t.Query) {
			for _, w := range titleWords {
				if strings.Contains(w, tw) || strings.Contains(tw, w) || Similar(w, tw, DefaultThreshold) {
					return true
				}
			}
		}
	}
	return false
}

// ClassifyAll 对一批原始文章分类，保持输入顺序。
// related 为仅通过宽松判断、因没有排名而被丢弃的文章数
func ClassifyAll(batch []collector.RawArticle, topics []trends.Topic) (matched []Article, related int) {
	for _, raw := range batch {
		if m, ok := Classify(raw, topics); ok {
			matched = append(matched, NewArticle(raw, m))
			continue
		}
		if Related(raw, topics) {
			related++
		}
	}
	return matched, related
}

func articleText(a collector.RawArticle) string {
	return lower(a.Title) + " " + lower(a.Description)
}

func relatedWords(s string) []string {
	var out []string
	for _, w := range words(s) {
		if utf8.RuneCountInString(w) < minRelatedWordLen {
			continue
		}
		if _, ok := stopWords[w]; ok {
			continue
		}
		out = append(out, w)
	}
	return out
}
