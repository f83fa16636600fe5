package pipeline

import "time"

// State 一轮运行所处的阶段
type State int32

const (
	StateIdle State = iota
	StateFetchingTopics
	StateScraping
	StateClassifying
	StateDeduplicating
	StatePersisting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetchingTopics:
		return "fetching_topics"
	case StateScraping:
		return "scraping"
	case StateClassifying:
		return "classifying"
	case StateDeduplicating:
		return "deduplicating"
	case StatePersisting:
		return "persisting"
	default:
		return "unknown"
	}
}

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// SourceReport 单个采集源本轮的结果
type SourceReport struct {
	Name    string `json:"name"`
	Fetched int    `json:"fetched"`
	Matched int    `json:"matched"`
	Error   string `json:"error,omitempty"`
}

// RunResult 一轮运行的汇总，返回给调用方而不是保存在全局变量里
type RunResult struct {
	RunID      string         `json:"run_id"`
	Status     string         `json:"status"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Topics     int            `json:"topics"`
	Sources    []SourceReport `json:"sources"`
	// Matched 为通过热搜匹配的文章数，Related 为仅模糊相关、因没有排名被丢弃的文章数
	Matched    int    `json:"matched"`
	Related    int    `json:"related"`
	Duplicates int    `json:"duplicates"`
	Persisted  int    `json:"persisted"`
	Error      string `json:"error,omitempty"`
}
