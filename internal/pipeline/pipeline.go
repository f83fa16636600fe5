package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LJTian/TrendingNews/internal/collector"
	"github.com/LJTian/TrendingNews/internal/processor"
	"github.com/LJTian/TrendingNews/internal/trends"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	defaultTopicsTimeout = 20 * time.Second
	defaultScrapeTimeout = 30 * time.Second
)

// Store 是流水线唯一依赖的写接口，ReplaceAll 必须整体替换旧数据
type Store interface {
	ReplaceAll(ctx context.Context, articles []processor.Article) (int, error)
}

// Hook 在每轮结束后调用（成功或失败），失败时 articles 为 nil。Hook 的错误只记录日志
type Hook interface {
	Name() string
	AfterRun(ctx context.Context, result *RunResult, articles []processor.Article) error
}

// Locker 跨进程的运行锁，cmd/api 与 cmd/collect 共用同一把锁。
// acquired 为 false 表示另一进程正在运行
type Locker interface {
	Acquire(ctx context.Context) (release func(context.Context) error, acquired bool, err error)
}

// Deps 注入流水线的外部协作者，Lock 可为 nil
type Deps struct {
	Provider trends.Provider
	Scrapers []collector.Scraper
	Store    Store
	Lock     Locker
	Logger   logrus.FieldLogger
	Hooks    []Hook
}

// Options 超时与并发设置，零值使用默认值
type Options struct {
	TopicsTimeout time.Duration
	ScrapeTimeout time.Duration
	Concurrency   int
}

// Pipeline 串联 拉热搜 → 采集 → 分类 → 去重 → 分配 ID → 入库
type Pipeline struct {
	provider trends.Provider
	scrapers []collector.Scraper
	store    Store
	lock     Locker
	hooks    []Hook
	log      logrus.FieldLogger
	opts     Options
	now      func() time.Time

	running sync.Mutex
	state   atomic.Int32
}

func New(deps Deps, opts Options) *Pipeline {
	if opts.TopicsTimeout <= 0 {
		opts.TopicsTimeout = defaultTopicsTimeout
	}
	if opts.ScrapeTimeout <= 0 {
		opts.ScrapeTimeout = defaultScrapeTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = len(deps.Scrapers)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	log := deps.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Pipeline{
		provider: deps.Provider,
		scrapers: deps.Scrapers,
		store:    deps.Store,
		lock:     deps.Lock,
		hooks:    deps.Hooks,
		log:      log,
		opts:     opts,
		now:      time.Now,
	}
}

// State 返回当前阶段，可与 Run 并发调用
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

func (p *Pipeline) setState(s State) {
	p.state.Store(int32(s))
}

// Run 执行一轮完整流程。本进程或持有运行锁的其它进程正在运行时立即返回 ErrRunInProgress。
// 拉热搜失败返回 *ProviderError，入库失败返回 *StoreError，两者都不会写入任何数据
func (p *Pipeline) Run(ctx context.Context) (*RunResult, error) {
	if !p.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer p.running.Unlock()

	if p.lock != nil {
		release, acquired, err := p.lock.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquire run lock: %w", err)
		}
		if !acquired {
			return nil, ErrRunInProgress
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				p.log.WithError(err).Warn("release run lock failed")
			}
		}()
	}
	defer p.setState(StateIdle)

	started := p.now()
	res := &RunResult{
		RunID:     processor.RunTimestamp(started),
		Status:    StatusFailed,
		StartedAt: started,
	}
	log := p.log.WithField("run_id", res.RunID)
	log.Info("start collect job...")

	articles, err := p.run(ctx, res, log)
	res.FinishedAt = p.now()
	if err != nil {
		res.Error = err.Error()
		log.WithError(err).Error("collect job failed")
	} else {
		res.Status = StatusSuccess
		log.WithFields(logrus.Fields{
			"topics":     res.Topics,
			"matched":    res.Matched,
			"related":    res.Related,
			"duplicates": res.Duplicates,
			"persisted":  res.Persisted,
			"elapsed":    res.FinishedAt.Sub(res.StartedAt).String(),
		}).Info("collect job done")
	}

	for _, h := range p.hooks {
		if hookErr := h.AfterRun(ctx, res, articles); hookErr != nil {
			log.WithError(hookErr).WithField("hook", h.Name()).Warn("post-run hook failed")
		}
	}
	return res, err
}

func (p *Pipeline) run(ctx context.Context, res *RunResult, log logrus.FieldLogger) ([]processor.Article, error) {
	p.setState(StateFetchingTopics)
	topics, err := p.fetchTopics(ctx)
	if err != nil {
		return nil, &ProviderError{Err: err}
	}
	res.Topics = len(topics)
	log.WithField("topics", len(topics)).Info("trending topics fetched")

	p.setState(StateScraping)
	outcomes := p.scrapeAll(ctx)

	// 按注册顺序拼接，保证去重看到的顺序稳定
	p.setState(StateClassifying)
	var candidates []processor.Article
	res.Sources = make([]SourceReport, 0, len(outcomes))
	for _, o := range outcomes {
		report := SourceReport{Name: o.name, Fetched: len(o.articles)}
		slog := log.WithField("source", o.name)
		if o.err != nil {
			report.Error = o.err.Error()
			slog.WithError(o.err).Warn("scrape failed, source skipped")
		}

		matched, related := processor.ClassifyAll(o.articles, topics)
		report.Matched = len(matched)
		res.Related += related
		candidates = append(candidates, matched...)
		res.Sources = append(res.Sources, report)

		if o.err == nil {
			slog.WithFields(logrus.Fields{
				"fetched": report.Fetched,
				"matched": report.Matched,
				"elapsed": o.elapsed.String(),
			}).Info("source done")
		}
	}
	res.Matched = len(candidates)

	p.setState(StateDeduplicating)
	unique := processor.Deduplicate(candidates)
	res.Duplicates = len(candidates) - len(unique)
	final := processor.AssignIDs(unique, res.RunID)

	// 没有任何匹配时保留上一轮的数据
	if len(final) == 0 {
		log.Warn("no trending articles found, keeping previous set")
		return final, nil
	}

	p.setState(StatePersisting)
	n, err := p.store.ReplaceAll(ctx, final)
	if err != nil {
		return nil, &StoreError{Err: err}
	}
	res.Persisted = n
	return final, nil
}

func (p *Pipeline) fetchTopics(ctx context.Context) ([]trends.Topic, error) {
	ctx, cancel := context.WithTimeout(ctx, p.opts.TopicsTimeout)
	defer cancel()

	topics, err := p.provider.FetchTrendingTopics(ctx)
	if err != nil {
		return nil, err
	}
	if len(topics) == 0 {
		return nil, errNoTopics
	}
	fillMissingRanks(topics)
	return topics, nil
}

// fillMissingRanks 补齐 provider 未给出的排名，已有排名保持不变。
// 全部缺失时按返回顺序编号；部分缺失时从已有最大排名之后依次编号，保证排名不重复
func fillMissingRanks(topics []trends.Topic) {
	maxRank, missing := 0, 0
	for _, t := range topics {
		if t.Rank <= 0 {
			missing++
		} else if t.Rank > maxRank {
			maxRank = t.Rank
		}
	}
	if missing == 0 {
		return
	}
	next := maxRank
	for i := range topics {
		if topics[i].Rank > 0 {
			continue
		}
		if maxRank == 0 {
			topics[i].Rank = i + 1
			continue
		}
		next++
		topics[i].Rank = next
	}
}

type scrapeOutcome struct {
	name     string
	articles []collector.RawArticle
	err      error
	elapsed  time.Duration
}

// scrapeAll 并发执行所有采集源，结果按注册顺序返回。单个源失败不影响其它源
func (p *Pipeline) scrapeAll(ctx context.Context) []scrapeOutcome {
	outcomes := make([]scrapeOutcome, len(p.scrapers))

	var g errgroup.Group
	g.SetLimit(p.opts.Concurrency)
	for i, s := range p.scrapers {
		g.Go(func() error {
			outcomes[i] = p.scrapeOne(ctx, s)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (p *Pipeline) scrapeOne(ctx context.Context, s collector.Scraper) scrapeOutcome {
	name := s.Name()
	ctx, cancel := context.WithTimeout(ctx, p.opts.ScrapeTimeout)
	defer cancel()

	type result struct {
		articles []collector.RawArticle
		err      error
	}
	ch := make(chan result, 1)
	start := time.Now()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		articles, err := s.Scrape(ctx)
		ch <- result{articles: articles, err: err}
	}()

	out := scrapeOutcome{name: name}
	// 不响应 ctx 的采集源也会在超时后被放弃
	select {
	case r := <-ch:
		if r.err != nil {
			out.err = &ScraperError{Source: name, Err: r.err}
			break
		}
		out.articles = make([]collector.RawArticle, 0, len(r.articles))
		for _, a := range r.articles {
			if a.Source == "" {
				a.Source = name
			}
			out.articles = append(out.articles, a)
		}
	case <-ctx.Done():
		out.err = &ScraperError{Source: name, Err: ctx.Err()}
	}
	out.elapsed = time.Since(start)
	return out
}
