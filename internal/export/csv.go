package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/LJTian/TrendingNews/internal/pipeline"
	"github.com/LJTian/TrendingNews/internal/processor"
	"github.com/sirupsen/logrus"
)

const (
	filePrefix = "articles_"
	fileSuffix = ".csv"
	dateLayout = "20060102"
)

var header = []string{"title", "description", "image_url", "source", "scraped_at", "rank", "topic", "news_id"}

// CSVExporter 每轮成功后把文章写入 articles_YYYYMMDD.csv（同一天覆盖），并清理过期文件
type CSVExporter struct {
	dir           string
	retentionDays int
	log           logrus.FieldLogger
	now           func() time.Time
}

func NewCSVExporter(dir string, retentionDays int, log logrus.FieldLogger) *CSVExporter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &CSVExporter{dir: dir, retentionDays: retentionDays, log: log, now: time.Now}
}

func (e *CSVExporter) Name() string {
	return "csv-export"
}

// AfterRun 失败的运行或没有文章时不导出
func (e *CSVExporter) AfterRun(ctx context.Context, result *pipeline.RunResult, articles []processor.Article) error {
	if result.Status != pipeline.StatusSuccess || len(articles) == 0 {
		return nil
	}
	path, err := e.Write(articles)
	if err != nil {
		return err
	}
	e.log.WithFields(logrus.Fields{"file": path, "articles": len(articles)}).Info("articles exported")

	if _, err := e.Cleanup(); err != nil {
		return err
	}
	return nil
}

// Write 返回写入的文件路径
func (e *CSVExporter) Write(articles []processor.Article) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(e.dir, filePrefix+e.now().Format(dateLayout)+fileSuffix)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return "", err
	}
	for _, a := range articles {
		row := []string{
			a.Title,
			a.Description,
			a.ImageURL,
			a.Source,
			a.FetchedAt.Format(time.RFC3339),
			strconv.Itoa(a.Rank),
			a.Topic,
			a.NewsID,
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, f.Close()
}

// Cleanup 删除文件名日期距今超过 retentionDays 天的导出文件，返回删除数量。
// 文件名无法解析的跳过
func (e *CSVExporter) Cleanup() (int, error) {
	if e.retentionDays <= 0 {
		return 0, nil
	}
	matches, err := filepath.Glob(filepath.Join(e.dir, filePrefix+"*"+fileSuffix))
	if err != nil {
		return 0, err
	}

	now := e.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	removed := 0
	for _, path := range matches {
		name := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), filePrefix), fileSuffix)
		day, err := time.ParseInLocation(dateLayout, name, now.Location())
		if err != nil {
			e.log.WithField("file", path).Warn("skipping export file with invalid name")
			continue
		}
		age := int(today.Sub(day).Hours() / 24)
		if age <= e.retentionDays {
			continue
		}
		if err := os.Remove(path); err != nil {
			return removed, fmt.Errorf("remove %s: %w", path, err)
		}
		removed++
		e.log.WithField("file", path).Info("old export removed")
	}
	return removed, nil
}
