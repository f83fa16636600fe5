package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/LJTian/TrendingNews/internal/pipeline"
	"github.com/LJTian/TrendingNews/internal/processor"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	runErrorMaxRunes = 1000
	defaultRunsLimit = 20
	maxRunsLimit     = 200
)

// RunRecord 每轮采集的汇总记录，只在配置了 PostgreSQL 时保存
type RunRecord struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	RunID      string         `gorm:"size:32;index" json:"runId"`
	Status     string         `gorm:"size:16;index" json:"status"`
	StartedAt  time.Time      `gorm:"index" json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	Topics     int            `json:"topics"`
	Matched    int            `json:"matched"`
	Related    int            `json:"related"`
	Duplicates int            `json:"duplicates"`
	Persisted  int            `json:"persisted"`
	Error      string         `gorm:"size:1024" json:"error,omitempty"`
	Sources    datatypes.JSON `gorm:"type:jsonb" json:"sources"`

	CreatedAt time.Time `json:"createdAt"`
}

// RunStore 运行历史，实现 pipeline.Hook
type RunStore struct {
	DB *gorm.DB
}

func NewRunStore(dsn string) (*RunStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&RunRecord{}); err != nil {
		return nil, err
	}
	return &RunStore{DB: db}, nil
}

func (s *RunStore) Name() string {
	return "run-history"
}

// AfterRun 记录每一轮，包括失败的运行
func (s *RunStore) AfterRun(ctx context.Context, result *pipeline.RunResult, _ []processor.Article) error {
	rec, err := newRunRecord(result)
	if err != nil {
		return err
	}
	return s.DB.WithContext(ctx).Create(rec).Error
}

// ListRuns 按开始时间倒序返回最近的运行记录
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = defaultRunsLimit
	}
	if limit > maxRunsLimit {
		limit = maxRunsLimit
	}
	var list []RunRecord
	err := s.DB.WithContext(ctx).Order("started_at DESC").Order("id DESC").Limit(limit).Find(&list).Error
	return list, err
}

func newRunRecord(r *pipeline.RunResult) (*RunRecord, error) {
	sources := r.Sources
	if sources == nil {
		sources = []pipeline.SourceReport{}
	}
	bs, err := json.Marshal(sources)
	if err != nil {
		return nil, err
	}
	return &RunRecord{
		RunID:      r.RunID,
		Status:     r.Status,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Topics:     r.Topics,
		Matched:    r.Matched,
		Related:    r.Related,
		Duplicates: r.Duplicates,
		Persisted:  r.Persisted,
		Error:      truncateRunes(toValidUTF8(r.Error), runErrorMaxRunes),
		Sources:    datatypes.JSON(bs),
	}, nil
}
