package processor

// OverlapThreshold 标题词重合比例超过该值即视为同一事件
const OverlapThreshold = 0.4

// Deduplicate 去除报道同一事件的文章，先出现者保留，输出保持输入顺序。
// 重合比例 |W∩S|/|W| 的分母是当前文章的词数，因此结果依赖处理顺序
func Deduplicate(articles []Article) []Article {
	out := make([]Article, 0, len(articles))
	seen := make([]map[string]struct{}, 0, len(articles))

	for _, a := range articles {
		w := wordSet(a.Title)
		if isDuplicate(w, seen) {
			continue
		}
		out = append(out, a)
		seen = append(seen, w)
	}
	return out
}

func isDuplicate(w map[string]struct{}, seen []map[string]struct{}) bool {
	// 没有词的标题无法计算比例，视为不重复
	if len(w) == 0 {
		return false
	}
	for _, s := range seen {
		common := 0
		for word := range w {
			if _, ok := s[word]; ok {
				common++
			}
		}
		if float64(common)/float64(len(w)) > OverlapThreshold {
			return true
		}
	}
	return false
}

func wordSet(title string) map[string]struct{} {
	ws := words(title)
	set := make(map[string]struct{}, len(ws))
	for _, w := range ws {
		set[w] = struct{}{}
	}
	return set
}
