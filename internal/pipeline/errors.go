package pipeline

import (
	"errors"
	"fmt"
)

// ErrRunInProgress 表示已有一轮采集在执行，本次触发被忽略
var ErrRunInProgress = errors.New("pipeline: run already in progress")

var errNoTopics = errors.New("provider returned no topics")

// ProviderError 拉取热搜失败，整轮放弃
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("fetch trending topics: %v", e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ScraperError 单个采集源失败，只影响该源
type ScraperError struct {
	Source string
	Err    error
}

func (e *ScraperError) Error() string {
	return fmt.Sprintf("scrape %s: %v", e.Source, e.Err)
}

func (e *ScraperError) Unwrap() error { return e.Err }

// StoreError 写入存储失败，之前的数据保持不变
type StoreError struct {
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("persist articles: %v", e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
