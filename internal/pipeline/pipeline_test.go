package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/LJTian/TrendingNews/internal/collector"
	"github.com/LJTian/TrendingNews/internal/processor"
	"github.com/LJTian/TrendingNews/internal/trends"
	"github.com/sirupsen/logrus"
)

type fakeProvider struct {
	topics []trends.Topic
	err    error
}

func (f *fakeProvider) FetchTrendingTopics(ctx context.Context) ([]trends.Topic, error) {
	return f.topics, f.err
}

type funcScraper struct {
	name string
	fn   func(ctx context.Context) ([]collector.RawArticle, error)
}

func (s funcScraper) Name() string { return s.name }

func (s funcScraper) Scrape(ctx context.Context) ([]collector.RawArticle, error) {
	return s.fn(ctx)
}

func staticScraper(name string, titles ...string) funcScraper {
	return funcScraper{name: name, fn: func(context.Context) ([]collector.RawArticle, error) {
		out := make([]collector.RawArticle, 0, len(titles))
		for _, t := range titles {
			out = append(out, collector.RawArticle{Title: t, Source: name})
		}
		return out, nil
	}}
}

type fakeStore struct {
	mu    sync.Mutex
	calls int
	saved []processor.Article
	err   error
}

func (s *fakeStore) ReplaceAll(ctx context.Context, articles []processor.Article) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	s.saved = articles
	return len(articles), nil
}

type recordingHook struct {
	results  []*RunResult
	articles [][]processor.Article
	err      error
}

func (h *recordingHook) Name() string { return "recording" }

func (h *recordingHook) AfterRun(ctx context.Context, r *RunResult, a []processor.Article) error {
	h.results = append(h.results, r)
	h.articles = append(h.articles, a)
	return h.err
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

var testTopics = []trends.Topic{
	{Query: "cricket", Rank: 1},
	{Query: "election", Rank: 2},
}

func newTestPipeline(provider trends.Provider, scrapers []collector.Scraper, store Store, opts Options, hooks ...Hook) *Pipeline {
	p := New(Deps{
		Provider: provider,
		Scrapers: scrapers,
		Store:    store,
		Logger:   quietLogger(),
		Hooks:    hooks,
	}, opts)
	p.now = func() time.Time { return time.Date(2024, 1, 3, 9, 30, 5, 0, time.UTC) }
	return p
}

func TestRunEndToEnd(t *testing.T) {
	scrapers := []collector.Scraper{
		staticScraper("ht",
			"India wins cricket world cup final",
			"Monsoon rains hit Mumbai",
			"Election results announced in Delhi",
		),
		staticScraper("toi",
			"India cricket team wins world cup again",
			"Stock markets close flat",
		),
	}
	store := &fakeStore{}
	p := newTestPipeline(&fakeProvider{topics: testTopics}, scrapers, store, Options{})

	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res.Status != StatusSuccess {
		t.Fatalf("status = %q", res.Status)
	}
	if res.RunID != "20240103093005" {
		t.Fatalf("run id = %q", res.RunID)
	}
	if res.Topics != 2 || res.Matched != 3 || res.Duplicates != 1 || res.Persisted != 2 {
		t.Fatalf("unexpected counters: %+v", res)
	}
	if len(res.Sources) != 2 || res.Sources[0].Name != "ht" || res.Sources[0].Fetched != 3 || res.Sources[0].Matched != 2 {
		t.Fatalf("unexpected source reports: %+v", res.Sources)
	}

	if store.calls != 1 || len(store.saved) != 2 {
		t.Fatalf("store calls=%d saved=%d", store.calls, len(store.saved))
	}
	first, second := store.saved[0], store.saved[1]
	if first.Title != "India wins cricket world cup final" || first.Rank != 1 || first.Topic != "cricket" {
		t.Fatalf("unexpected first article: %+v", first)
	}
	if second.Title != "Election results announced in Delhi" || second.Rank != 2 {
		t.Fatalf("unexpected second article: %+v", second)
	}
	if first.NewsID != "NEWS_20240103093005_352d" || second.NewsID != "NEWS_20240103093005_6b63" {
		t.Fatalf("unexpected ids: %s %s", first.NewsID, second.NewsID)
	}
	if p.State() != StateIdle {
		t.Fatalf("state after run = %s", p.State())
	}
}

func TestRunIsolatesFailingScrapers(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	scrapers := []collector.Scraper{
		funcScraper{name: "broken", fn: func(context.Context) ([]collector.RawArticle, error) {
			return nil, errors.New("connection refused")
		}},
		funcScraper{name: "panicky", fn: func(context.Context) ([]collector.RawArticle, error) {
			panic("nil selector")
		}},
		// 完全不理会 ctx 的采集源
		funcScraper{name: "stuck", fn: func(context.Context) ([]collector.RawArticle, error) {
			<-release
			return nil, nil
		}},
		staticScraper("good", "Election results announced in Delhi"),
	}
	store := &fakeStore{}
	p := newTestPipeline(&fakeProvider{topics: testTopics}, scrapers, store, Options{ScrapeTimeout: 50 * time.Millisecond})

	done := make(chan struct{})
	var (
		res *RunResult
		err error
	)
	go func() {
		res, err = p.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run blocked on a stuck scraper")
	}

	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res.Persisted != 1 || len(store.saved) != 1 || store.saved[0].Source != "good" {
		t.Fatalf("expected only the good source to be persisted, got %+v", store.saved)
	}
	for i, name := range []string{"broken", "panicky", "stuck"} {
		if res.Sources[i].Name != name || res.Sources[i].Error == "" {
			t.Fatalf("source %d report = %+v", i, res.Sources[i])
		}
	}
	if res.Sources[3].Error != "" {
		t.Fatalf("good source reported error: %s", res.Sources[3].Error)
	}
}

func TestScrapeOneWrapsErrors(t *testing.T) {
	p := newTestPipeline(&fakeProvider{}, nil, &fakeStore{}, Options{ScrapeTimeout: 20 * time.Millisecond})

	out := p.scrapeOne(context.Background(), funcScraper{name: "slow", fn: func(ctx context.Context) ([]collector.RawArticle, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}})
	var se *ScraperError
	if !errors.As(out.err, &se) || se.Source != "slow" {
		t.Fatalf("expected ScraperError for slow, got %v", out.err)
	}
	if !errors.Is(out.err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", out.err)
	}
}

func TestScrapeOneFillsSource(t *testing.T) {
	p := newTestPipeline(&fakeProvider{}, nil, &fakeStore{}, Options{})
	out := p.scrapeOne(context.Background(), funcScraper{name: "feed", fn: func(context.Context) ([]collector.RawArticle, error) {
		return []collector.RawArticle{{Title: "a"}, {Title: "b", Source: "other"}}, nil
	}})
	if out.err != nil {
		t.Fatalf("unexpected error: %v", out.err)
	}
	if out.articles[0].Source != "feed" || out.articles[1].Source != "other" {
		t.Fatalf("unexpected sources: %+v", out.articles)
	}
}

func TestRunProviderFailureWritesNothing(t *testing.T) {
	cases := []struct {
		name     string
		provider *fakeProvider
	}{
		{"error", &fakeProvider{err: errors.New("quota exceeded")}},
		{"empty", &fakeProvider{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			scraped := false
			scrapers := []collector.Scraper{funcScraper{name: "s", fn: func(context.Context) ([]collector.RawArticle, error) {
				scraped = true
				return nil, nil
			}}}
			store := &fakeStore{}
			hook := &recordingHook{}
			p := newTestPipeline(tc.provider, scrapers, store, Options{}, hook)

			res, err := p.Run(context.Background())
			var pe *ProviderError
			if !errors.As(err, &pe) {
				t.Fatalf("expected ProviderError, got %v", err)
			}
			if res == nil || res.Status != StatusFailed || res.Error == "" {
				t.Fatalf("unexpected result: %+v", res)
			}
			if store.calls != 0 || scraped {
				t.Fatalf("nothing should run after provider failure (store calls=%d scraped=%v)", store.calls, scraped)
			}
			if len(hook.results) != 1 || hook.articles[0] != nil {
				t.Fatalf("hook should see the failed run without articles")
			}
		})
	}
}

func TestRunFillsMissingRanks(t *testing.T) {
	provider := &fakeProvider{topics: []trends.Topic{{Query: "budget"}, {Query: "election"}}}
	store := &fakeStore{}
	p := newTestPipeline(provider, []collector.Scraper{
		staticScraper("s", "Election results announced in Delhi"),
	}, store, Options{})

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if store.saved[0].Rank != 2 {
		t.Fatalf("rank = %d, want 2", store.saved[0].Rank)
	}
}

func TestFillMissingRanksKeepsRanksUnique(t *testing.T) {
	topics := []trends.Topic{
		{Query: "budget"},
		{Query: "cricket", Rank: 1},
		{Query: "monsoon"},
		{Query: "election", Rank: 2},
	}
	fillMissingRanks(topics)

	want := map[string]int{"cricket": 1, "election": 2, "budget": 3, "monsoon": 4}
	seen := make(map[int]bool)
	for _, tp := range topics {
		if tp.Rank != want[tp.Query] {
			t.Fatalf("%s rank = %d, want %d", tp.Query, tp.Rank, want[tp.Query])
		}
		if seen[tp.Rank] {
			t.Fatalf("duplicate rank %d in %+v", tp.Rank, topics)
		}
		seen[tp.Rank] = true
	}
}

func TestRunStoreFailure(t *testing.T) {
	store := &fakeStore{err: errors.New("READONLY")}
	hook := &recordingHook{}
	p := newTestPipeline(&fakeProvider{topics: testTopics}, []collector.Scraper{
		staticScraper("s", "India wins cricket world cup final"),
	}, store, Options{}, hook)

	res, err := p.Run(context.Background())
	var se *StoreError
	if !errors.As(err, &se) {
		t.Fatalf("expected StoreError, got %v", err)
	}
	if res.Status != StatusFailed || res.Persisted != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if hook.articles[0] != nil {
		t.Fatalf("failed run must not hand articles to hooks")
	}
}

func TestRunWithoutMatchesKeepsPreviousSet(t *testing.T) {
	store := &fakeStore{}
	p := newTestPipeline(&fakeProvider{topics: testTopics}, []collector.Scraper{
		staticScraper("s", "Stock markets close flat"),
	}, store, Options{})

	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res.Status != StatusSuccess || res.Persisted != 0 || store.calls != 0 {
		t.Fatalf("expected no write, got result %+v calls=%d", res, store.calls)
	}
}

func TestRunHookErrorDoesNotFailRun(t *testing.T) {
	hook := &recordingHook{err: errors.New("disk full")}
	p := newTestPipeline(&fakeProvider{topics: testTopics}, []collector.Scraper{
		staticScraper("s", "India wins cricket world cup final"),
	}, &fakeStore{}, Options{}, hook)

	res, err := p.Run(context.Background())
	if err != nil || res.Status != StatusSuccess {
		t.Fatalf("hook failure leaked into run: %v %+v", err, res)
	}
	if len(hook.articles) != 1 || len(hook.articles[0]) != 1 {
		t.Fatalf("hook did not receive persisted articles")
	}
}

func TestRunGuard(t *testing.T) {
	var once sync.Once
	entered := make(chan struct{})
	release := make(chan struct{})
	scrapers := []collector.Scraper{funcScraper{name: "slow", fn: func(context.Context) ([]collector.RawArticle, error) {
		once.Do(func() { close(entered) })
		<-release
		return nil, nil
	}}}
	p := newTestPipeline(&fakeProvider{topics: testTopics}, scrapers, &fakeStore{}, Options{ScrapeTimeout: 5 * time.Second})

	done := make(chan error, 1)
	go func() {
		_, err := p.Run(context.Background())
		done <- err
	}()

	<-entered
	if p.State() != StateScraping {
		t.Fatalf("state = %s, want scraping", p.State())
	}
	if _, err := p.Run(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("second Run = %v, want ErrRunInProgress", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first Run error: %v", err)
	}
	if p.State() != StateIdle {
		t.Fatalf("state = %s, want idle", p.State())
	}
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run after completion: %v", err)
	}
}

func TestStateString(t *testing.T) {
	if StatePersisting.String() != "persisting" || State(42).String() != "unknown" {
		t.Fatalf("unexpected state names")
	}
}

type fakeLock struct {
	held     bool
	err      error
	acquired int
	released int
}

func (l *fakeLock) Acquire(ctx context.Context) (func(context.Context) error, bool, error) {
	if l.err != nil {
		return nil, false, l.err
	}
	if l.held {
		return nil, false, nil
	}
	l.held = true
	l.acquired++
	return func(context.Context) error {
		l.held = false
		l.released++
		return nil
	}, true, nil
}

func TestRunRespectsSharedLock(t *testing.T) {
	scrapers := []collector.Scraper{staticScraper("ht", "India wins cricket world cup final")}

	// 另一进程持有锁
	store := &fakeStore{}
	lock := &fakeLock{held: true}
	p := newTestPipeline(&fakeProvider{topics: testTopics}, scrapers, store, Options{})
	p.lock = lock
	if _, err := p.Run(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("Run with foreign lock = %v, want ErrRunInProgress", err)
	}
	if store.calls != 0 {
		t.Fatalf("store called %d times while lock was held elsewhere", store.calls)
	}

	lock.held = false
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if lock.acquired != 1 || lock.released != 1 || lock.held {
		t.Fatalf("lock acquired=%d released=%d held=%v", lock.acquired, lock.released, lock.held)
	}
	if store.calls != 1 {
		t.Fatalf("store calls = %d", store.calls)
	}
}

func TestRunLockErrorWritesNothing(t *testing.T) {
	store := &fakeStore{}
	p := newTestPipeline(&fakeProvider{topics: testTopics}, nil, store, Options{})
	p.lock = &fakeLock{err: errors.New("redis down")}

	res, err := p.Run(context.Background())
	if err == nil || errors.Is(err, ErrRunInProgress) || res != nil {
		t.Fatalf("Run = %v, %v", res, err)
	}
	if store.calls != 0 || p.State() != StateIdle {
		t.Fatalf("store calls=%d state=%s", store.calls, p.State())
	}
}
