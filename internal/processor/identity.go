package processor

import (
	"crypto/sha1"
	"encoding/hex"
	"time"
)

const (
	// IDHashLength 取标题哈希的末尾字符数，同一轮内存在极小的碰撞概率
	IDHashLength = 4
	// RunTimestampLayout newsId 中的时间戳格式
	RunTimestampLayout = "20060102150405"
)

// RunTimestamp 按 UTC 格式化一轮运行的开始时间
func RunTimestamp(t time.Time) string {
	return t.UTC().Format(RunTimestampLayout)
}

// AssignID 生成 NEWS_<runTimestamp>_<标题 sha1 的末 4 位>
func AssignID(article Article, runTimestamp string) string {
	h := hashTitle(article.Title)
	return "NEWS_" + runTimestamp + "_" + h[len(h)-IDHashLength:]
}

// AssignIDs 为每篇文章填充 NewsID，返回新切片
func AssignIDs(articles []Article, runTimestamp string) []Article {
	out := make([]Article, len(articles))
	for i, a := range articles {
		a.NewsID = AssignID(a, runTimestamp)
		out[i] = a
	}
	return out
}

func hashTitle(title string) string {
	h := sha1.New()
	h.Write([]byte(title))
	return hex.EncodeToString(h.Sum(nil))
}
