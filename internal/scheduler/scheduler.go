package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/LJTian/TrendingNews/internal/pipeline"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Runner 由 pipeline.Pipeline 实现
type Runner interface {
	Run(ctx context.Context) (*pipeline.RunResult, error)
}

type Scheduler struct {
	cron         *cron.Cron
	runner       Runner
	startupDelay time.Duration
	log          logrus.FieldLogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	// mu 保护 timer 和 stopped，stopped 置位后不再 wg.Add
	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// New spec 为标准 5 段 cron 表达式
func New(spec string, runner Runner, startupDelay time.Duration, log logrus.FieldLogger) (*Scheduler, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:         cron.New(),
		runner:       runner,
		startupDelay: startupDelay,
		log:          log,
		ctx:          ctx,
		cancel:       cancel,
	}

	if _, err := s.cron.AddFunc(spec, s.runOnce); err != nil {
		cancel()
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	// 延迟执行首轮采集，避免与启动时的其它初始化争抢资源
	if s.startupDelay <= 0 {
		return
	}
	s.mu.Lock()
	s.timer = time.AfterFunc(s.startupDelay, s.runOnce)
	s.mu.Unlock()
}

// Stop 停止调度，取消正在执行的一轮并等待其退出；ctx 到期后直接返回
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()

	s.cancel()
	cronDone := s.cron.Stop()

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (s *Scheduler) runOnce() {
	s.mu.Lock()
	if s.stopped || s.ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	_, err := s.runner.Run(s.ctx)
	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		s.log.Info("previous collect job still running, skip this tick")
	case err != nil:
		// 详细错误已由 pipeline 记录
		s.log.WithError(err).Debug("scheduled run failed")
	}
}
