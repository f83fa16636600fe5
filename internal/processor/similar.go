package processor

import (
	"github.com/pmezard/go-difflib/difflib"
)

// DefaultThreshold 是相似度判断的默认阈值
const DefaultThreshold = 0.6

// Similar 忽略大小写比较两个字符串，相似度严格大于 threshold 时返回 true
func Similar(a, b string, threshold float64) bool {
	return Ratio(a, b) > threshold
}

// Ratio 返回 [0,1] 的序列匹配相似度 2*M/T（Ratcliff/Obershelp）。
// 匹配算法本身对参数顺序敏感，这里先把两个参数排成固定顺序，保证 Ratio(a,b) == Ratio(b,a)
func Ratio(a, b string) float64 {
	a, b = lower(a), lower(b)
	if b < a {
		a, b = b, a
	}
	m := difflib.NewMatcher(runeStrings(a), runeStrings(b))
	return m.Ratio()
}

func runeStrings(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
