package processor

import "testing"

func titled(titles ...string) []Article {
	out := make([]Article, 0, len(titles))
	for i, t := range titles {
		out = append(out, Article{Title: t, Rank: i + 1})
	}
	return out
}

func titlesOf(articles []Article) []string {
	out := make([]string, 0, len(articles))
	for _, a := range articles {
		out = append(out, a.Title)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestDeduplicateCollapsesNearDuplicates(t *testing.T) {
	in := titled("India wins match", "India wins the match today", "Budget announced")
	got := titlesOf(Deduplicate(in))
	want := []string{"India wins match", "Budget announced"}
	if !equalStrings(got, want) {
		t.Fatalf("Deduplicate = %v, want %v", got, want)
	}
}

func TestDeduplicateIsOrderSensitive(t *testing.T) {
	// 比例的分母是当前标题的词数：长标题先出现时，短标题 3/3 重合被判重复；
	// 反过来短标题先出现时，长标题 3/7 > 0.4 也被判重复。两种顺序保留的文章不同
	long := "India wins the big final match today"
	short := "India wins match"

	got := titlesOf(Deduplicate(titled(long, short)))
	if !equalStrings(got, []string{long}) {
		t.Fatalf("long-first = %v", got)
	}
	got = titlesOf(Deduplicate(titled(short, long)))
	if !equalStrings(got, []string{short}) {
		t.Fatalf("short-first = %v", got)
	}
}

func TestDeduplicateAsymmetricRatio(t *testing.T) {
	// "a b c d e" 先出现；"a b x y z" 与之重合 2/5 = 0.4，不超过阈值，保留
	got := titlesOf(Deduplicate(titled("a b c d e", "a b x y z")))
	if len(got) != 2 {
		t.Fatalf("ratio equal to threshold must not drop: %v", got)
	}
	// "a b x" 与第一条重合 2/3 > 0.4，丢弃
	got = titlesOf(Deduplicate(titled("a b c d e", "A B x")))
	if len(got) != 1 {
		t.Fatalf("expected case-insensitive duplicate to be dropped: %v", got)
	}
}

func TestDeduplicateIdempotent(t *testing.T) {
	in := titled(
		"India wins match",
		"India wins the match today",
		"Budget announced",
		"Budget announced for farmers",
		"Monsoon arrives early",
		"",
		"Election results declared",
	)
	once := Deduplicate(in)
	twice := Deduplicate(once)
	if !equalStrings(titlesOf(once), titlesOf(twice)) {
		t.Fatalf("not idempotent: %v vs %v", titlesOf(once), titlesOf(twice))
	}
}

func TestDeduplicateEmptyInputs(t *testing.T) {
	if got := Deduplicate(nil); len(got) != 0 {
		t.Fatalf("Deduplicate(nil) = %v", got)
	}
	got := Deduplicate(titled("", "  ", "Budget"))
	if len(got) != 3 {
		t.Fatalf("titles without words are never duplicates: %v", titlesOf(got))
	}
}
